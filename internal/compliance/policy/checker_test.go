package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/cache"
)

var fixedTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestChecker(t *testing.T, c cache.Store, rules ...Rule) (*Checker, *RuleStore) {
	t.Helper()
	store := NewRuleStore(zap.NewNop(), c)
	for _, r := range rules {
		require.NoError(t, store.Add(context.Background(), r))
	}
	checker := NewChecker(zap.NewNop(), store, c, nil)
	checker.now = func() time.Time { return fixedTime }
	return checker, store
}

func TestForbiddenWordAndMissingElement(t *testing.T) {
	rule := validRule("r1")
	rule.ForbiddenWords = []string{"bad"}
	rule.RequiredElements = []string{"disclaimer"}

	checker, _ := newTestChecker(t, nil, rule)
	violations, err := checker.CheckContent(context.Background(),
		map[string]any{"text": "this is bad"}, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	assert.Equal(t, compliance.SeverityMedium, violations[0].Severity)
	assert.Contains(t, violations[0].Context, "bad")
	assert.Equal(t, "text", violations[0].Location)

	assert.Equal(t, compliance.SeverityHigh, violations[1].Severity)
	assert.Contains(t, violations[1].Context, "disclaimer")
	assert.Equal(t, "structure", violations[1].Location)
}

func TestRegexViolationsPerMatch(t *testing.T) {
	rule := validRule("r1")
	rule.RegexPatterns = []string{"bad"}

	checker, _ := newTestChecker(t, nil, rule)
	violations, err := checker.CheckContent(context.Background(),
		map[string]any{"text": "bad bad"}, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	// canonical form is {"text":"bad bad"}
	assert.Equal(t, "pos 9-12", violations[0].Location)
	assert.Equal(t, "bad", violations[0].Context)
	assert.Equal(t, compliance.SeverityHigh, violations[0].Severity)
	assert.Equal(t, "pos 13-16", violations[1].Location)
}

func TestLengthBounds(t *testing.T) {
	rule := validRule("r1")
	rule.MinLength = intPtr(10)

	checker, _ := newTestChecker(t, nil, rule)

	// canonical {"a":"b"} is 9 chars, below the bound
	violations, err := checker.CheckContent(context.Background(),
		map[string]any{"a": "b"}, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "length", violations[0].Location)
	assert.Equal(t, compliance.SeverityMedium, violations[0].Severity)

	// canonical {"ab":"b"} is exactly 10 chars
	violations, err = checker.CheckContent(context.Background(),
		map[string]any{"ab": "b"}, "facebook", nil)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestMaxLengthViolation(t *testing.T) {
	rule := validRule("r1")
	rule.MaxLength = intPtr(5)

	checker, _ := newTestChecker(t, nil, rule)
	violations, err := checker.CheckContent(context.Background(),
		map[string]any{"text": "long enough to exceed"}, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Description, "max length")
}

func TestNoLengthChecksWhenUnset(t *testing.T) {
	checker, _ := newTestChecker(t, nil, validRule("r1"))
	violations, err := checker.CheckContent(context.Background(),
		map[string]any{"text": "anything at all"}, "facebook", nil)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckContentIdempotentViaCache(t *testing.T) {
	rule := validRule("r1")
	rule.ForbiddenWords = []string{"bad"}

	mem := cache.NewMemoryStore(100, 0)
	checker, _ := newTestChecker(t, mem, rule)

	content := map[string]any{"text": "bad"}
	first, err := checker.CheckContent(context.Background(), content, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// shift the clock: a recomputation would carry a new timestamp
	checker.now = func() time.Time { return fixedTime.Add(time.Hour) }
	second, err := checker.CheckContent(context.Background(), content, "facebook", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMutationInvalidatesCache(t *testing.T) {
	rule := validRule("r1")
	rule.ForbiddenWords = []string{"bad"}

	mem := cache.NewMemoryStore(100, 0)
	checker, store := newTestChecker(t, mem, rule)

	content := map[string]any{"text": "bad miracle"}
	first, err := checker.CheckContent(context.Background(), content, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	rule2 := validRule("r2")
	rule2.ForbiddenWords = []string{"miracle"}
	require.NoError(t, store.Add(context.Background(), rule2))

	second, err := checker.CheckContent(context.Background(), content, "facebook", nil)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	rule := validRule("r1")
	rule.ForbiddenWords = []string{"bad"}

	mem := cache.NewMemoryStore(100, 0)
	checker, store := newTestChecker(t, mem, rule)

	content := map[string]any{"text": "bad"}
	first, err := checker.CheckContent(context.Background(), content, "facebook", nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, store.Delete(context.Background(), "r1"))

	second, err := checker.CheckContent(context.Background(), content, "facebook", nil)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestCheckCampaign(t *testing.T) {
	adRule := validRule("ad_rule")
	adRule.ForbiddenWords = []string{"miracle"}

	settingsRule := validRule("settings_rule")
	settingsRule.Category = CategoryCampaignSettings
	settingsRule.RequiredElements = []string{"budget"}

	checker, _ := newTestChecker(t, nil, adRule, settingsRule)

	campaign := map[string]any{
		"settings": map[string]any{"schedule": "daily"},
		"ads": []any{
			map[string]any{"id": "ad1", "text": "a miracle product"},
			map[string]any{"id": "ad2", "text": "a normal product"},
		},
	}

	results, err := checker.CheckCampaign(context.Background(), campaign, "facebook")
	require.NoError(t, err)

	// clean entries are omitted
	require.Len(t, results, 2)
	assert.Contains(t, results, "settings")
	assert.Contains(t, results, "ad1")
	assert.NotContains(t, results, "ad2")
}

func TestCheckCampaignRejectsAdWithoutID(t *testing.T) {
	checker, _ := newTestChecker(t, nil)
	campaign := map[string]any{
		"ads": []any{map[string]any{"text": "no id here"}},
	}
	_, err := checker.CheckCampaign(context.Background(), campaign, "facebook")
	assert.True(t, compliance.IsValidationError(err))
}

func TestCategoriesNarrowRuleSelection(t *testing.T) {
	rule := validRule("r1")
	rule.ForbiddenWords = []string{"bad"}

	checker, _ := newTestChecker(t, nil, rule)
	violations, err := checker.CheckContent(context.Background(),
		map[string]any{"text": "bad"}, "facebook", []string{"campaign_settings"})
	require.NoError(t, err)
	assert.Empty(t, violations)
}
