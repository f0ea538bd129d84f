// Package policy implements platform policy rules and the content
// checker that evaluates ad content and campaigns against them.
package policy

import (
	"regexp"
	"time"
)

// Rule is a platform-scoped content constraint. Patterns are compiled
// at admission time; a rule with an unparsable pattern never enters
// the store.
type Rule struct {
	ID               string   `json:"id" yaml:"id"`
	Platform         string   `json:"platform" yaml:"platform"`
	Category         string   `json:"category" yaml:"category"`
	Description      string   `json:"description" yaml:"description"`
	RegexPatterns    []string `json:"regex_patterns" yaml:"regex_patterns"`
	ForbiddenWords   []string `json:"forbidden_words" yaml:"forbidden_words"`
	RequiredElements []string `json:"required_elements" yaml:"required_elements"`
	MaxLength        *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MinLength        *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	IsActive         bool     `json:"is_active" yaml:"is_active"`
}

// RuleUpdate is a partial update over the closed rule schema. Nil
// fields are left untouched; there is no way to smuggle unknown keys
// into a rule.
type RuleUpdate struct {
	Platform         *string   `json:"platform,omitempty"`
	Category         *string   `json:"category,omitempty"`
	Description      *string   `json:"description,omitempty"`
	RegexPatterns    *[]string `json:"regex_patterns,omitempty"`
	ForbiddenWords   *[]string `json:"forbidden_words,omitempty"`
	RequiredElements *[]string `json:"required_elements,omitempty"`
	MaxLength        *int      `json:"max_length,omitempty"`
	MinLength        *int      `json:"min_length,omitempty"`
	IsActive         *bool     `json:"is_active,omitempty"`
}

// Violation is a single failed constraint instance. Immutable once
// returned; the checker keeps a cached copy keyed by content
// fingerprint.
type Violation struct {
	RuleID      string    `json:"rule_id"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Location    string    `json:"location"`
	Context     string    `json:"context"`
	Timestamp   time.Time `json:"timestamp"`
}

// compiledRule pairs a rule with its admission-time artifacts.
type compiledRule struct {
	rule     Rule
	patterns []*regexp.Regexp
	words    map[string]struct{}
	required map[string]struct{}
}

func newCompiledRule(rule Rule) (*compiledRule, error) {
	cr := &compiledRule{
		rule:     rule,
		patterns: make([]*regexp.Regexp, 0, len(rule.RegexPatterns)),
		words:    make(map[string]struct{}, len(rule.ForbiddenWords)),
		required: make(map[string]struct{}, len(rule.RequiredElements)),
	}
	for _, p := range rule.RegexPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		cr.patterns = append(cr.patterns, re)
	}
	for _, w := range rule.ForbiddenWords {
		cr.words[normalizeWord(w)] = struct{}{}
	}
	for _, el := range rule.RequiredElements {
		cr.required[el] = struct{}{}
	}
	return cr, nil
}
