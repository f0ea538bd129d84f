package policy

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/cache"
)

// RuleStore holds the authoritative policy rule set. Reads take the
// read lock; mutations take the write lock and purge the result cache
// before releasing it, so no reader can observe stale cached results
// alongside a changed rule set.
type RuleStore struct {
	mu     sync.RWMutex
	logger *zap.Logger
	cache  cache.Store
	rules  map[string]*compiledRule
}

// NewRuleStore creates an empty rule store. The cache may be nil when
// no result caching is wired in (tests mostly do this).
func NewRuleStore(logger *zap.Logger, c cache.Store) *RuleStore {
	return &RuleStore{
		logger: logger,
		cache:  c,
		rules:  make(map[string]*compiledRule),
	}
}

// Load reads a JSON array of rule records. Invalid records are logged
// and skipped; the load itself does not abort. Returns the number of
// rules admitted.
func (s *RuleStore) Load(ctx context.Context, r io.Reader) (int, error) {
	var records []Rule
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, errors.Wrap(err, "decoding rule definitions")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		cr, err := validateRule(rec)
		if err != nil {
			s.logger.Warn("skipping invalid rule",
				zap.String("rule_id", rec.ID),
				zap.Error(err))
			continue
		}
		s.rules[rec.ID] = cr
		loaded++
	}
	s.purgeCacheLocked(ctx)
	s.logger.Info("loaded policy rules", zap.Int("count", loaded))
	return loaded, nil
}

// LoadFile loads rules from a JSON file on disk.
func (s *RuleStore) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "opening rules file %s", path)
	}
	defer f.Close()
	return s.Load(ctx, f)
}

// Add validates and inserts a rule, overwriting any rule with the same
// id, and invalidates all cached results.
func (s *RuleStore) Add(ctx context.Context, rule Rule) error {
	cr, err := validateRule(rule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = cr
	s.purgeCacheLocked(ctx)
	s.logger.Info("added policy rule", zap.String("rule_id", rule.ID))
	return nil
}

// Update applies a partial update to an existing rule. The merged rule
// is re-validated before committing; on failure the stored rule is
// unchanged.
func (s *RuleStore) Update(ctx context.Context, id string, upd RuleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[id]
	if !ok {
		return errors.Wrapf(compliance.ErrNotFound, "rule %s", id)
	}

	merged := existing.rule
	if upd.Platform != nil {
		merged.Platform = *upd.Platform
	}
	if upd.Category != nil {
		merged.Category = *upd.Category
	}
	if upd.Description != nil {
		merged.Description = *upd.Description
	}
	if upd.RegexPatterns != nil {
		merged.RegexPatterns = *upd.RegexPatterns
	}
	if upd.ForbiddenWords != nil {
		merged.ForbiddenWords = *upd.ForbiddenWords
	}
	if upd.RequiredElements != nil {
		merged.RequiredElements = *upd.RequiredElements
	}
	if upd.MaxLength != nil {
		merged.MaxLength = upd.MaxLength
	}
	if upd.MinLength != nil {
		merged.MinLength = upd.MinLength
	}
	if upd.IsActive != nil {
		merged.IsActive = *upd.IsActive
	}

	cr, err := validateRule(merged)
	if err != nil {
		return err
	}
	s.rules[id] = cr
	s.purgeCacheLocked(ctx)
	s.logger.Info("updated policy rule", zap.String("rule_id", id))
	return nil
}

// Delete removes a rule by id.
func (s *RuleStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return errors.Wrapf(compliance.ErrNotFound, "rule %s", id)
	}
	delete(s.rules, id)
	s.purgeCacheLocked(ctx)
	s.logger.Info("deleted policy rule", zap.String("rule_id", id))
	return nil
}

// Get returns a copy of the rule with the given id.
func (s *RuleStore) Get(id string) (Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cr, ok := s.rules[id]
	if !ok {
		return Rule{}, errors.Wrapf(compliance.ErrNotFound, "rule %s", id)
	}
	return cr.rule, nil
}

// List returns every stored rule sorted by id.
func (s *RuleStore) List() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, cr := range s.rules {
		out = append(out, cr.rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of stored rules.
func (s *RuleStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// applicable returns the active rules matching platform and the
// optional category filter, sorted by rule id so evaluation and the
// returned violation order are deterministic.
func (s *RuleStore) applicable(platform string, categories []string) []*compiledRule {
	catFilter := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		catFilter[c] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*compiledRule, 0, len(s.rules))
	for _, cr := range s.rules {
		if !cr.rule.IsActive || cr.rule.Platform != platform {
			continue
		}
		if len(catFilter) > 0 {
			if _, ok := catFilter[cr.rule.Category]; !ok {
				continue
			}
		}
		out = append(out, cr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rule.ID < out[j].rule.ID })
	return out
}

// purgeCacheLocked invalidates every cached result. Callers hold the
// write lock. Conservative by design of the cache contract: any rule
// change drops the whole cache.
func (s *RuleStore) purgeCacheLocked(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PurgeAll(ctx); err != nil {
		s.logger.Warn("purging policy result cache", zap.Error(err))
	}
}

// validateRule checks a rule and returns its compiled form. The error
// is always a *compliance.ValidationError.
func validateRule(rule Rule) (*compiledRule, error) {
	if rule.ID == "" {
		return nil, compliance.NewValidationError("id", "must not be empty")
	}
	if rule.Platform == "" {
		return nil, compliance.NewValidationError("platform", "must not be empty")
	}
	if rule.Category == "" {
		return nil, compliance.NewValidationError("category", "must not be empty")
	}
	for _, el := range rule.RequiredElements {
		if el == "" {
			return nil, compliance.NewValidationError("required_elements", "elements must be non-empty strings")
		}
	}
	if rule.MaxLength != nil && *rule.MaxLength < 0 {
		return nil, compliance.NewValidationError("max_length", "must not be negative")
	}
	if rule.MinLength != nil && *rule.MinLength < 0 {
		return nil, compliance.NewValidationError("min_length", "must not be negative")
	}
	if rule.MaxLength != nil && rule.MinLength != nil && *rule.MaxLength < *rule.MinLength {
		return nil, compliance.NewValidationError("max_length", "must not be below min_length")
	}
	cr, err := newCompiledRule(rule)
	if err != nil {
		return nil, compliance.NewValidationError("regex_patterns", err.Error())
	}
	return cr, nil
}
