// Package server exposes the compliance core over HTTP.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/admeshlabs/comply/internal/compliance/events"
	"github.com/admeshlabs/comply/internal/compliance/policy"
	"github.com/admeshlabs/comply/internal/compliance/regulatory"
	"github.com/admeshlabs/comply/internal/compliance/reporting"
)

// Server wires the compliance services into a gin router.
type Server struct {
	logger    *zap.Logger
	checker   *policy.Checker
	ruleStore *policy.RuleStore
	monitor   *regulatory.Monitor
	regStore  *regulatory.RegulationStore
	alerts    *reporting.AlertStore
	reporter  *reporting.Reporter
	publisher events.Publisher
}

// NewServer creates the HTTP server. Alerts, reporter, and publisher
// are optional; the corresponding routes 404 or no-op when absent.
func NewServer(
	logger *zap.Logger,
	checker *policy.Checker,
	ruleStore *policy.RuleStore,
	monitor *regulatory.Monitor,
	regStore *regulatory.RegulationStore,
	alerts *reporting.AlertStore,
	reporter *reporting.Reporter,
	publisher events.Publisher,
) *Server {
	return &Server{
		logger:    logger,
		checker:   checker,
		ruleStore: ruleStore,
		monitor:   monitor,
		regStore:  regStore,
		alerts:    alerts,
		reporter:  reporter,
		publisher: publisher,
	}
}

// Router creates the HTTP router. Request bodies with unknown fields
// are rejected rather than silently dropped, so partial updates cannot
// misspell a field and no-op.
func (s *Server) Router() *gin.Engine {
	binding.EnableDecoderDisallowUnknownFields = true
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			pol := v1.Group("/policy")
			{
				pol.POST("/check", s.handleCheckContent)
				pol.POST("/campaign", s.handleCheckCampaign)

				rules := pol.Group("/rules")
				{
					rules.GET("", s.handleListRules)
					rules.POST("", s.handleAddRule)
					rules.GET("/:id", s.handleGetRule)
					rules.PUT("/:id", s.handleUpdateRule)
					rules.DELETE("/:id", s.handleDeleteRule)
				}
			}

			reg := v1.Group("/regulatory")
			{
				reg.POST("/check", s.handleRegulatoryCheck)
				reg.POST("/campaign", s.handleRegulatoryCampaign)

				regs := reg.Group("/regulations")
				{
					regs.GET("", s.handleListRegulations)
					regs.POST("", s.handleAddRegulation)
					regs.GET("/:id", s.handleGetRegulation)
					regs.PUT("/:id", s.handleUpdateRegulation)
					regs.DELETE("/:id", s.handleDeleteRegulation)
				}
			}

			if s.alerts != nil {
				alerts := v1.Group("/alerts")
				{
					alerts.POST("", s.handleCreateAlerts)
					alerts.POST("/:id/resolve", s.handleResolveAlert)
				}
			}
			if s.reporter != nil {
				v1.GET("/reports", s.handleGenerateReport)
			}
		}
	}
	return router
}
