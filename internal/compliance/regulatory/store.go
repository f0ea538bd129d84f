package regulatory

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/cache"
)

// RegulationStore holds the authoritative regulation set under the
// same locking discipline as the policy rule store: reads under the
// read lock, mutations and cache purge under the write lock. The
// background refresher mutates through Add and therefore takes the
// same write path as callers.
type RegulationStore struct {
	mu     sync.RWMutex
	logger *zap.Logger
	cache  cache.Store
	regs   map[string]Regulation
}

// NewRegulationStore creates an empty regulation store. The cache may
// be nil.
func NewRegulationStore(logger *zap.Logger, c cache.Store) *RegulationStore {
	return &RegulationStore{
		logger: logger,
		cache:  c,
		regs:   make(map[string]Regulation),
	}
}

// Load reads a YAML list of regulation records. Invalid records are
// logged and skipped. Returns the number admitted.
func (s *RegulationStore) Load(ctx context.Context, r io.Reader) (int, error) {
	var records []Regulation
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		return 0, errors.Wrap(err, "decoding regulation definitions")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		if err := validateRegulation(rec); err != nil {
			s.logger.Warn("skipping invalid regulation",
				zap.String("regulation_id", rec.ID),
				zap.Error(err))
			continue
		}
		s.regs[rec.ID] = rec
		loaded++
	}
	s.purgeCacheLocked(ctx)
	s.logger.Info("loaded regulations", zap.Int("count", loaded))
	return loaded, nil
}

// LoadDir loads every .yml/.yaml file in dir.
func (s *RegulationStore) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "reading regulations dir %s", dir)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return total, errors.Wrapf(err, "opening %s", entry.Name())
		}
		n, err := s.Load(ctx, f)
		f.Close()
		if err != nil {
			return total, errors.Wrapf(err, "loading %s", entry.Name())
		}
		total += n
	}
	return total, nil
}

// Add validates and inserts a regulation, overwriting by id, and
// invalidates all cached results.
func (s *RegulationStore) Add(ctx context.Context, reg Regulation) error {
	if err := validateRegulation(reg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg.ID] = reg
	s.purgeCacheLocked(ctx)
	s.logger.Info("added regulation", zap.String("regulation_id", reg.ID))
	return nil
}

// Update applies a partial update to an existing regulation,
// re-validating the merged result before committing.
func (s *RegulationStore) Update(ctx context.Context, id string, upd RegulationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, ok := s.regs[id]
	if !ok {
		return errors.Wrapf(compliance.ErrNotFound, "regulation %s", id)
	}
	if upd.Region != nil {
		merged.Region = *upd.Region
	}
	if upd.Industry != nil {
		merged.Industry = *upd.Industry
	}
	if upd.Description != nil {
		merged.Description = *upd.Description
	}
	if upd.Requirements != nil {
		merged.Requirements = *upd.Requirements
	}
	if upd.EffectiveDate != nil {
		merged.EffectiveDate = *upd.EffectiveDate
	}
	if upd.ExpiryDate != nil {
		merged.ExpiryDate = upd.ExpiryDate
	}
	if upd.IsActive != nil {
		merged.IsActive = *upd.IsActive
	}

	if err := validateRegulation(merged); err != nil {
		return err
	}
	s.regs[id] = merged
	s.purgeCacheLocked(ctx)
	s.logger.Info("updated regulation", zap.String("regulation_id", id))
	return nil
}

// Delete removes a regulation by id.
func (s *RegulationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.regs[id]; !ok {
		return errors.Wrapf(compliance.ErrNotFound, "regulation %s", id)
	}
	delete(s.regs, id)
	s.purgeCacheLocked(ctx)
	s.logger.Info("deleted regulation", zap.String("regulation_id", id))
	return nil
}

// Get returns the regulation with the given id.
func (s *RegulationStore) Get(id string) (Regulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[id]
	if !ok {
		return Regulation{}, errors.Wrapf(compliance.ErrNotFound, "regulation %s", id)
	}
	return reg, nil
}

// List returns every stored regulation sorted by id.
func (s *RegulationStore) List() []Regulation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Regulation, 0, len(s.regs))
	for _, reg := range s.regs {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of stored regulations.
func (s *RegulationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs)
}

// applicable returns the active regulations matching the exact region
// and industry whose effective window contains now, sorted by id.
func (s *RegulationStore) applicable(region, industry string, now time.Time) []Regulation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Regulation, 0, len(s.regs))
	for _, reg := range s.regs {
		if !reg.IsActive || reg.Region != region || reg.Industry != industry {
			continue
		}
		if reg.EffectiveDate.After(now) {
			continue
		}
		if reg.ExpiryDate != nil && !reg.ExpiryDate.After(now) {
			continue
		}
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *RegulationStore) purgeCacheLocked(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PurgeAll(ctx); err != nil {
		s.logger.Warn("purging regulatory result cache", zap.Error(err))
	}
}

func validateRegulation(reg Regulation) error {
	if reg.ID == "" {
		return compliance.NewValidationError("id", "must not be empty")
	}
	if reg.Region == "" {
		return compliance.NewValidationError("region", "must not be empty")
	}
	if reg.Industry == "" {
		return compliance.NewValidationError("industry", "must not be empty")
	}
	if len(reg.Requirements) == 0 {
		return compliance.NewValidationError("requirements", "must not be empty")
	}
	if reg.ExpiryDate != nil && reg.EffectiveDate.After(*reg.ExpiryDate) {
		return compliance.NewValidationError("expiry_date", "must not be before effective_date")
	}
	return nil
}
