package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/admeshlabs/comply/internal/compliance/cache"
	"github.com/admeshlabs/comply/internal/compliance/events"
	"github.com/admeshlabs/comply/internal/compliance/metrics"
	"github.com/admeshlabs/comply/internal/compliance/policy"
	"github.com/admeshlabs/comply/internal/compliance/regulatory"
	"github.com/admeshlabs/comply/internal/compliance/reporting"
	"github.com/admeshlabs/comply/internal/config"
	"github.com/admeshlabs/comply/internal/server"
	"github.com/admeshlabs/comply/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.New(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	resultCache, err := newCache(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to create result cache", zap.Error(err))
	}

	m := metrics.New()

	ruleStore := policy.NewRuleStore(zapLogger, resultCache)
	if n, err := ruleStore.LoadFile(ctx, cfg.Policy.RulesPath); err != nil {
		zapLogger.Fatal("Failed to load policy rules", zap.Error(err))
	} else {
		m.RulesLoaded.WithLabelValues("policy").Set(float64(n))
	}
	checker := policy.NewChecker(zapLogger, ruleStore, resultCache, m)

	regStore := regulatory.NewRegulationStore(zapLogger, resultCache)
	if n, err := regStore.LoadDir(ctx, cfg.Regulatory.RegulationsDir); err != nil {
		zapLogger.Fatal("Failed to load regulations", zap.Error(err))
	} else {
		m.RulesLoaded.WithLabelValues("regulatory").Set(float64(n))
	}
	monitor := regulatory.NewMonitor(zapLogger, regStore, resultCache, m)

	var refresher *regulatory.Refresher
	if cfg.Regulatory.RefreshURL != "" {
		refresher = regulatory.NewRefresher(
			zapLogger, regStore,
			cfg.Regulatory.RefreshURL, cfg.Regulatory.RefreshAPIKey,
			cfg.Regulatory.RefreshInterval, m,
		)
		refresher.Start(ctx)
		defer refresher.Stop()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}

	var channels []reporting.Channel
	if cfg.Alerts.WebhookURL != "" {
		channels = append(channels, reporting.NewWebhookChannel(cfg.Alerts.WebhookURL, nil, 0, zapLogger))
	}
	alertStore, err := reporting.NewAlertStore(db, zapLogger, reporting.SeverityThresholds{
		High:   cfg.Alerts.HighThreshold,
		Medium: cfg.Alerts.MediumThreshold,
	}, channels)
	if err != nil {
		zapLogger.Fatal("Failed to create alert store", zap.Error(err))
	}
	reporter, err := reporting.NewReporter(alertStore, cfg.Alerts.BaselineVolume, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create reporter", zap.Error(err))
	}

	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
		defer kp.Close()
		publisher = kp
	}

	srv := server.NewServer(zapLogger, checker, ruleStore, monitor, regStore, alertStore, reporter, publisher)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
}

func newCache(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisStore(cfg.Cache.RedisURL, cfg.Cache.TTL)
	}
	return cache.NewMemoryStore(cfg.Cache.Size, cfg.Cache.TTL), nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver == "postgres" {
		return gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
}
