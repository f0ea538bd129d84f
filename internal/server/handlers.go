package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance"
	"github.com/admeshlabs/comply/internal/compliance/events"
	"github.com/admeshlabs/comply/internal/compliance/policy"
	"github.com/admeshlabs/comply/internal/compliance/regulatory"
	"github.com/admeshlabs/comply/internal/compliance/reporting"
)

type checkContentRequest struct {
	Content    map[string]any `json:"content" binding:"required"`
	Platform   string         `json:"platform" binding:"required"`
	Categories []string       `json:"categories"`
}

type checkCampaignRequest struct {
	Campaign map[string]any `json:"campaign" binding:"required"`
	Platform string         `json:"platform" binding:"required"`
}

type regulatoryCheckRequest struct {
	Content  map[string]any `json:"content" binding:"required"`
	Region   string         `json:"region" binding:"required"`
	Industry string         `json:"industry" binding:"required"`
}

type regulatoryCampaignRequest struct {
	Campaign map[string]any `json:"campaign" binding:"required"`
	Region   string         `json:"region" binding:"required"`
	Industry string         `json:"industry" binding:"required"`
}

type resolveAlertRequest struct {
	Notes string `json:"notes" binding:"required"`
}

func (s *Server) handleCheckContent(c *gin.Context) {
	var req checkContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	violations, err := s.checker.CheckContent(c.Request.Context(), req.Content, req.Platform, req.Categories)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.publishPolicyEvent(c, req.Content, req.Platform, len(violations))
	c.JSON(http.StatusOK, gin.H{"violations": violations, "compliant": len(violations) == 0})
}

func (s *Server) handleCheckCampaign(c *gin.Context) {
	var req checkCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := s.checker.CheckCampaign(c.Request.Context(), req.Campaign, req.Platform)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "compliant": len(results) == 0})
}

func (s *Server) handleListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": s.ruleStore.List()})
}

func (s *Server) handleAddRule(c *gin.Context) {
	var rule policy.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ruleStore.Add(c.Request.Context(), rule); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) handleGetRule(c *gin.Context) {
	rule, err := s.ruleStore.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(c *gin.Context) {
	var upd policy.RuleUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := s.ruleStore.Update(c.Request.Context(), id, upd); err != nil {
		s.writeError(c, err)
		return
	}
	rule, err := s.ruleStore.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(c *gin.Context) {
	if err := s.ruleStore.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRegulatoryCheck(c *gin.Context) {
	var req regulatoryCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	checks, err := s.monitor.CheckCompliance(c.Request.Context(), req.Content, req.Region, req.Industry)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.publishRegulatoryEvent(c, req, checks)
	c.JSON(http.StatusOK, gin.H{"checks": checks})
}

func (s *Server) handleRegulatoryCampaign(c *gin.Context) {
	var req regulatoryCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := s.monitor.CheckCampaign(c.Request.Context(), req.Campaign, req.Region, req.Industry)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleListRegulations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"regulations": s.regStore.List()})
}

func (s *Server) handleAddRegulation(c *gin.Context) {
	var reg regulatory.Regulation
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.regStore.Add(c.Request.Context(), reg); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reg)
}

func (s *Server) handleGetRegulation(c *gin.Context) {
	reg, err := s.regStore.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (s *Server) handleUpdateRegulation(c *gin.Context) {
	var upd regulatory.RegulationUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := s.regStore.Update(c.Request.Context(), id, upd); err != nil {
		s.writeError(c, err)
		return
	}
	reg, err := s.regStore.Get(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (s *Server) handleDeleteRegulation(c *gin.Context) {
	if err := s.regStore.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateAlerts(c *gin.Context) {
	var payloads []reporting.ViolationPayload
	if err := c.ShouldBindJSON(&payloads); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alerts, err := s.alerts.Create(c.Request.Context(), payloads...)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alerts": alerts})
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	var req resolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.alerts.Resolve(c.Request.Context(), c.Param("id"), req.Notes); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGenerateReport(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be RFC3339"})
		return
	}
	report, err := s.reporter.GenerateReport(c.Request.Context(), start, end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// writeError maps the compliance error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case compliance.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, compliance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) publishPolicyEvent(c *gin.Context, content map[string]any, platform string, violations int) {
	if s.publisher == nil || violations == 0 {
		return
	}
	contentID, _ := content["id"].(string)
	event := events.CheckEvent{
		Kind:       "policy",
		ContentID:  contentID,
		Platform:   platform,
		Violations: violations,
		Timestamp:  time.Now(),
	}
	if err := s.publisher.Publish(c.Request.Context(), event); err != nil {
		s.logger.Warn("publishing policy check event", zap.Error(err))
	}
}

func (s *Server) publishRegulatoryEvent(c *gin.Context, req regulatoryCheckRequest, checks []regulatory.Check) {
	if s.publisher == nil {
		return
	}
	failed := 0
	for _, check := range checks {
		if !check.IsCompliant {
			failed++
		}
	}
	if failed == 0 {
		return
	}
	contentID, _ := req.Content["id"].(string)
	event := events.CheckEvent{
		Kind:       "regulatory",
		ContentID:  contentID,
		Region:     req.Region,
		Industry:   req.Industry,
		Violations: failed,
		Timestamp:  time.Now(),
	}
	if err := s.publisher.Publish(c.Request.Context(), event); err != nil {
		s.logger.Warn("publishing regulatory check event", zap.Error(err))
	}
}
