package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/cache"
	"github.com/admeshlabs/comply/internal/compliance/metrics"
)

const cacheNamespace = "policy"

// Categories assigned to the parts of a campaign during campaign-level
// checks.
const (
	CategoryCampaignSettings = "campaign_settings"
	CategoryAdContent        = "ad_content"
)

// Checker evaluates content against the applicable policy rules and
// reports every violation found. It never fails fast: a single rule
// can contribute several violations and every applicable rule runs.
type Checker struct {
	logger  *zap.Logger
	store   *RuleStore
	cache   cache.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewChecker creates a checker over the given store. Cache and metrics
// may be nil.
func NewChecker(logger *zap.Logger, store *RuleStore, c cache.Store, m *metrics.Metrics) *Checker {
	return &Checker{
		logger:  logger,
		store:   store,
		cache:   c,
		metrics: m,
		now:     time.Now,
	}
}

// CheckContent evaluates one content payload against all rules active
// for the platform, optionally narrowed to the given categories. An
// empty result means the content is fully compliant. Results are
// cached by content fingerprint; a repeat call with identical
// arguments and no intervening rule mutation returns the cached list.
func (c *Checker) CheckContent(ctx context.Context, content map[string]any, platform string, categories []string) ([]Violation, error) {
	start := c.now()

	canonical, err := CanonicalContent(content)
	if err != nil {
		return nil, err
	}
	key := cacheKey(Fingerprint(canonical), platform, categories)

	if cached, ok := c.cachedResult(ctx, key); ok {
		c.count("hit", platform, cached)
		return cached, nil
	}

	violations := []Violation{}
	for _, cr := range c.store.applicable(platform, categories) {
		violations = append(violations, c.evaluateRule(cr, canonical, content)...)
	}

	c.storeResult(ctx, key, violations)
	c.count("miss", platform, violations)
	if c.metrics != nil {
		c.metrics.CheckDuration.WithLabelValues("policy").Observe(c.now().Sub(start).Seconds())
	}
	c.logger.Debug("checked content",
		zap.String("platform", platform),
		zap.Strings("categories", categories),
		zap.Int("violations", len(violations)))
	return violations, nil
}

// CheckCampaign checks campaign settings and every ad, returning only
// the entries that produced at least one violation. Settings are keyed
// "settings"; ads are keyed by their id.
func (c *Checker) CheckCampaign(ctx context.Context, campaign map[string]any, platform string) (map[string][]Violation, error) {
	results := make(map[string][]Violation)

	if settings, ok := campaign["settings"].(map[string]any); ok {
		violations, err := c.CheckContent(ctx, settings, platform, []string{CategoryCampaignSettings})
		if err != nil {
			return nil, errors.Wrap(err, "checking campaign settings")
		}
		if len(violations) > 0 {
			results["settings"] = violations
		}
	}

	ads, _ := campaign["ads"].([]any)
	for i, raw := range ads {
		ad, ok := raw.(map[string]any)
		if !ok {
			return nil, compliance.NewValidationError("ads", fmt.Sprintf("ad at index %d is not an object", i))
		}
		id, ok := ad["id"].(string)
		if !ok || id == "" {
			return nil, compliance.NewValidationError("ads", fmt.Sprintf("ad at index %d has no id", i))
		}
		violations, err := c.CheckContent(ctx, ad, platform, []string{CategoryAdContent})
		if err != nil {
			return nil, errors.Wrapf(err, "checking ad %s", id)
		}
		if len(violations) > 0 {
			results[id] = violations
		}
	}
	return results, nil
}

// evaluateRule runs the per-rule checks in their fixed order: regex
// matches, forbidden words, required elements, max length, min length.
func (c *Checker) evaluateRule(cr *compiledRule, canonical string, content map[string]any) []Violation {
	now := c.now()
	rule := cr.rule
	var out []Violation

	for i, re := range cr.patterns {
		for _, loc := range re.FindAllStringIndex(canonical, -1) {
			out = append(out, Violation{
				RuleID:      rule.ID,
				Description: fmt.Sprintf("Matched forbidden pattern: %s", rule.RegexPatterns[i]),
				Severity:    compliance.SeverityHigh,
				Location:    fmt.Sprintf("pos %d-%d", loc[0], loc[1]),
				Context:     canonical[loc[0]:loc[1]],
				Timestamp:   now,
			})
		}
	}

	if len(cr.words) > 0 {
		tokens := tokenize(canonical)
		var found []string
		for w := range cr.words {
			if _, ok := tokens[w]; ok {
				found = append(found, w)
			}
		}
		if len(found) > 0 {
			sort.Strings(found)
			joined := strings.Join(found, ", ")
			out = append(out, Violation{
				RuleID:      rule.ID,
				Description: fmt.Sprintf("Found forbidden words: %s", joined),
				Severity:    compliance.SeverityMedium,
				Location:    "text",
				Context:     joined,
				Timestamp:   now,
			})
		}
	}

	if len(cr.required) > 0 {
		var missing []string
		for el := range cr.required {
			if _, ok := content[el]; !ok {
				missing = append(missing, el)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			joined := strings.Join(missing, ", ")
			out = append(out, Violation{
				RuleID:      rule.ID,
				Description: fmt.Sprintf("Missing required elements: %s", joined),
				Severity:    compliance.SeverityHigh,
				Location:    "structure",
				Context:     fmt.Sprintf("Missing: %s", joined),
				Timestamp:   now,
			})
		}
	}

	length := len(canonical)
	if rule.MaxLength != nil && length > *rule.MaxLength {
		out = append(out, Violation{
			RuleID:      rule.ID,
			Description: fmt.Sprintf("Content exceeds max length of %d", *rule.MaxLength),
			Severity:    compliance.SeverityMedium,
			Location:    "length",
			Context:     fmt.Sprintf("Length: %d", length),
			Timestamp:   now,
		})
	}
	if rule.MinLength != nil && length < *rule.MinLength {
		out = append(out, Violation{
			RuleID:      rule.ID,
			Description: fmt.Sprintf("Content below min length of %d", *rule.MinLength),
			Severity:    compliance.SeverityMedium,
			Location:    "length",
			Context:     fmt.Sprintf("Length: %d", length),
			Timestamp:   now,
		})
	}
	return out
}

func (c *Checker) cachedResult(ctx context.Context, key string) ([]Violation, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, cacheNamespace, key)
	if err != nil {
		c.logger.Warn("policy cache read failed", zap.Error(err))
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var violations []Violation
	if err := json.Unmarshal([]byte(raw), &violations); err != nil {
		c.logger.Warn("discarding undecodable cached result", zap.Error(err))
		return nil, false
	}
	return violations, true
}

func (c *Checker) storeResult(ctx context.Context, key string, violations []Violation) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(violations)
	if err != nil {
		c.logger.Warn("policy cache encode failed", zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, cacheNamespace, key, string(raw)); err != nil {
		c.logger.Warn("policy cache write failed", zap.Error(err))
	}
}

func (c *Checker) count(outcome, platform string, violations []Violation) {
	if c.metrics == nil {
		return
	}
	c.metrics.ChecksTotal.WithLabelValues("policy", platform).Inc()
	if outcome == "hit" {
		c.metrics.CacheHits.WithLabelValues("policy").Inc()
		return
	}
	c.metrics.CacheMisses.WithLabelValues("policy").Inc()
	for _, v := range violations {
		c.metrics.ViolationsTotal.WithLabelValues("policy", v.Severity, platform).Inc()
	}
}

func cacheKey(fingerprint, platform string, categories []string) string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	return fingerprint + "|" + platform + "|" + strings.Join(sorted, ",")
}
