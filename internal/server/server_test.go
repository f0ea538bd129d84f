package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance/events"
	"github.com/admeshlabs/comply/internal/compliance/policy"
	"github.com/admeshlabs/comply/internal/compliance/regulatory"
)

type capturePublisher struct {
	events []events.CheckEvent
}

func (p *capturePublisher) Publish(_ context.Context, event events.CheckEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newTestServer(t *testing.T) (*gin.Engine, *capturePublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ruleStore := policy.NewRuleStore(logger, nil)
	require.NoError(t, ruleStore.Add(context.Background(), policy.Rule{
		ID:             "no_guarantee",
		Platform:       "facebook",
		Category:       policy.CategoryAdContent,
		Description:    "no absolute claims",
		ForbiddenWords: []string{"guaranteed"},
		IsActive:       true,
	}))
	checker := policy.NewChecker(logger, ruleStore, nil, nil)

	regStore := regulatory.NewRegulationStore(logger, nil)
	require.NoError(t, regStore.Add(context.Background(), regulatory.Regulation{
		ID:            "us_privacy",
		Region:        "US",
		Industry:      "healthcare",
		Description:   "privacy notice required",
		Requirements:  []string{"privacy_notice:required"},
		EffectiveDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
	}))
	monitor := regulatory.NewMonitor(logger, regStore, nil, nil)

	publisher := &capturePublisher{}
	srv := NewServer(logger, checker, ruleStore, monitor, regStore, nil, nil, publisher)
	return srv.Router(), publisher
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPolicyCheck(t *testing.T) {
	router, publisher := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/policy/check",
		`{"content": {"id": "ad1", "text": "guaranteed results"}, "platform": "facebook"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Violations []policy.Violation `json:"violations"`
		Compliant  bool               `json:"compliant"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Compliant)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, "no_guarantee", resp.Violations[0].RuleID)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "policy", publisher.events[0].Kind)
	assert.Equal(t, "ad1", publisher.events[0].ContentID)
	assert.Equal(t, 1, publisher.events[0].Violations)
}

func TestPolicyCheckCompliantPublishesNothing(t *testing.T) {
	router, publisher := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/policy/check",
		`{"content": {"text": "plain copy"}, "platform": "facebook"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, publisher.events)
}

func TestPolicyCheckMissingPlatform(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/policy/check",
		`{"content": {"text": "x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPolicyCampaign(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/policy/campaign",
		`{"campaign": {"ads": [{"id": "ad1", "text": "guaranteed"}]}, "platform": "facebook"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results   map[string][]policy.Violation `json:"results"`
		Compliant bool                          `json:"compliant"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Compliant)
	assert.Contains(t, resp.Results, "ad1")
}

func TestPolicyCampaignAdWithoutID(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/policy/campaign",
		`{"campaign": {"ads": [{"text": "no id"}]}, "platform": "facebook"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuleCRUD(t *testing.T) {
	router, _ := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/policy/rules",
		`{"id": "r2", "platform": "google", "category": "ad_content",
		  "description": "length cap", "max_length": 50, "is_active": true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/policy/rules/r2", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/policy/rules", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Rules []policy.Rule `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Rules, 2)

	w = doRequest(router, http.MethodPut, "/api/v1/policy/rules/r2",
		`{"description": "tighter length cap"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated policy.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "tighter length cap", updated.Description)

	w = doRequest(router, http.MethodDelete, "/api/v1/policy/rules/r2", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/policy/rules/r2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddRuleRejectsInvalid(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/policy/rules",
		`{"id": "bad", "platform": "google", "category": "ad_content",
		  "regex_patterns": ["[unclosed"], "is_active": true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegulatoryCheck(t *testing.T) {
	router, publisher := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/regulatory/check",
		`{"content": {"id": "c1", "body": "no notice"}, "region": "US", "industry": "healthcare"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Checks []regulatory.Check `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Checks, 1)
	assert.False(t, resp.Checks[0].IsCompliant)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "regulatory", publisher.events[0].Kind)
	assert.Equal(t, "US", publisher.events[0].Region)
}

func TestRegulatoryCheckRequiresContentID(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/regulatory/check",
		`{"content": {"body": "x"}, "region": "US", "industry": "healthcare"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegulatoryCampaign(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/regulatory/campaign",
		`{"campaign": {"ads": [{"id": "ad1"}]}, "region": "US", "industry": "healthcare"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results map[string][]regulatory.Check `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Results, "ad1")
}

func TestRegulationCRUD(t *testing.T) {
	router, _ := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/regulatory/regulations",
		`{"id": "eu_gdpr", "region": "EU", "industry": "healthcare",
		  "description": "consent", "requirements": ["consent:required"],
		  "effective_date": "2020-01-01T00:00:00Z", "is_active": true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/regulatory/regulations/eu_gdpr",
		`{"description": "explicit consent"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, "/api/v1/regulatory/regulations/eu_gdpr", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/regulatory/regulations/eu_gdpr", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateRejectsUnknownFields(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPut, "/api/v1/policy/rules/no_guarantee",
		`{"descriptino": "typo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertRoutesAbsentWithoutStore(t *testing.T) {
	router, _ := newTestServer(t)
	w := doRequest(router, http.MethodPost, "/api/v1/alerts", `[]`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/reports?start=2025-01-01T00:00:00Z&end=2025-02-01T00:00:00Z", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
