package regulatory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/cache"
	"github.com/admeshlabs/comply/internal/compliance/metrics"
)

const cacheNamespace = "regulatory"

// Monitor evaluates content against the applicable regulations.
// Results are cached per (content id, regulation id): re-checking the
// same content against an unchanged regulation set replays the cached
// checks.
type Monitor struct {
	logger  *zap.Logger
	store   *RegulationStore
	cache   cache.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewMonitor creates a monitor over the given store. Cache and metrics
// may be nil.
func NewMonitor(logger *zap.Logger, store *RegulationStore, c cache.Store, m *metrics.Metrics) *Monitor {
	return &Monitor{
		logger:  logger,
		store:   store,
		cache:   c,
		metrics: m,
		now:     time.Now,
	}
}

// CheckCompliance evaluates content against every regulation active
// for the region and industry right now. Content must carry a
// non-empty string "id"; it keys the per-regulation result cache.
func (m *Monitor) CheckCompliance(ctx context.Context, content map[string]any, region, industry string) ([]Check, error) {
	contentID, ok := content["id"].(string)
	if !ok || contentID == "" {
		return nil, compliance.NewValidationError("id", "content must carry a non-empty string id")
	}

	now := m.now()
	results := []Check{}
	for _, reg := range m.store.applicable(region, industry, now) {
		key := contentID + "|" + reg.ID
		if cached, ok := m.cachedCheck(ctx, key); ok {
			results = append(results, cached)
			m.count("hit", region, cached)
			continue
		}

		var missing []string
		for _, req := range reg.Requirements {
			if !requirementMet(req, content) {
				missing = append(missing, req)
			}
		}

		check := Check{
			RegulationID:        reg.ID,
			ContentID:           contentID,
			IsCompliant:         len(missing) == 0,
			MissingRequirements: missing,
			Details: map[string]any{
				"region":       region,
				"industry":     industry,
				"regulation":   reg.Description,
				"content_type": content["type"],
			},
			Timestamp: now,
		}
		m.storeCheck(ctx, key, check)
		m.count("miss", region, check)
		results = append(results, check)
	}

	m.logger.Debug("checked regulatory compliance",
		zap.String("content_id", contentID),
		zap.String("region", region),
		zap.String("industry", industry),
		zap.Int("checks", len(results)))
	return results, nil
}

// CheckCampaign checks campaign settings and every ad, returning only
// the entries that produced at least one check result. Settings are
// keyed "settings"; ads are keyed by their id.
func (m *Monitor) CheckCampaign(ctx context.Context, campaign map[string]any, region, industry string) (map[string][]Check, error) {
	results := make(map[string][]Check)

	if settings, ok := campaign["settings"].(map[string]any); ok {
		checks, err := m.CheckCompliance(ctx, settings, region, industry)
		if err != nil {
			return nil, errors.Wrap(err, "checking campaign settings")
		}
		if len(checks) > 0 {
			results["settings"] = checks
		}
	}

	ads, _ := campaign["ads"].([]any)
	for i, raw := range ads {
		ad, ok := raw.(map[string]any)
		if !ok {
			return nil, compliance.NewValidationError("ads", fmt.Sprintf("ad at index %d is not an object", i))
		}
		id, _ := ad["id"].(string)
		checks, err := m.CheckCompliance(ctx, ad, region, industry)
		if err != nil {
			return nil, errors.Wrapf(err, "checking ad %s", id)
		}
		if len(checks) > 0 {
			results[id] = checks
		}
	}
	return results, nil
}

func (m *Monitor) cachedCheck(ctx context.Context, key string) (Check, bool) {
	if m.cache == nil {
		return Check{}, false
	}
	raw, err := m.cache.Get(ctx, cacheNamespace, key)
	if err != nil {
		m.logger.Warn("regulatory cache read failed", zap.Error(err))
		return Check{}, false
	}
	if raw == "" {
		return Check{}, false
	}
	var check Check
	if err := json.Unmarshal([]byte(raw), &check); err != nil {
		m.logger.Warn("discarding undecodable cached check", zap.Error(err))
		return Check{}, false
	}
	return check, true
}

func (m *Monitor) storeCheck(ctx context.Context, key string, check Check) {
	if m.cache == nil {
		return
	}
	raw, err := json.Marshal(check)
	if err != nil {
		m.logger.Warn("regulatory cache encode failed", zap.Error(err))
		return
	}
	if err := m.cache.Set(ctx, cacheNamespace, key, string(raw)); err != nil {
		m.logger.Warn("regulatory cache write failed", zap.Error(err))
	}
}

func (m *Monitor) count(outcome, region string, check Check) {
	if m.metrics == nil {
		return
	}
	m.metrics.ChecksTotal.WithLabelValues("regulatory", region).Inc()
	if outcome == "hit" {
		m.metrics.CacheHits.WithLabelValues("regulatory").Inc()
		return
	}
	m.metrics.CacheMisses.WithLabelValues("regulatory").Inc()
	if !check.IsCompliant {
		m.metrics.ViolationsTotal.WithLabelValues("regulatory", compliance.SeverityHigh, region).Inc()
	}
}
