package reporting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/admeshlabs/comply/internal/compliance"
)

// ViolationPayload is the input for alert creation: one violation with
// enough context to score and route it.
type ViolationPayload struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ContentID   string         `json:"content_id"`
	Type        string         `json:"type"`
	ImpactScore float64        `json:"impact_score"`
	Details     map[string]any `json:"details,omitempty"`
}

// SeverityThresholds maps impact scores to severities. Scores at or
// above High are high, at or above Medium are medium, everything else
// low.
type SeverityThresholds struct {
	High   float64
	Medium float64
}

// Severity classifies an impact score.
func (t SeverityThresholds) Severity(score float64) string {
	switch {
	case score >= t.High:
		return compliance.SeverityHigh
	case score >= t.Medium:
		return compliance.SeverityMedium
	default:
		return compliance.SeverityLow
	}
}

// AlertStore persists alerts and dispatches high-severity ones to the
// configured channels immediately.
type AlertStore struct {
	db         *gorm.DB
	logger     *zap.Logger
	thresholds SeverityThresholds
	channels   []Channel
	now        func() time.Time
}

// NewAlertStore creates an alert store over db and migrates the alert
// table.
func NewAlertStore(db *gorm.DB, logger *zap.Logger, thresholds SeverityThresholds, channels []Channel) (*AlertStore, error) {
	if err := db.AutoMigrate(&AlertModel{}); err != nil {
		return nil, errors.Wrap(err, "migrating alert table")
	}
	return &AlertStore{
		db:         db,
		logger:     logger,
		thresholds: thresholds,
		channels:   channels,
		now:        time.Now,
	}, nil
}

// Create builds, persists, and (for high severity) dispatches one
// alert per payload. Returns the created alerts.
func (s *AlertStore) Create(ctx context.Context, payloads ...ViolationPayload) ([]Alert, error) {
	alerts := make([]Alert, 0, len(payloads))
	for _, payload := range payloads {
		alert, err := s.create(ctx, payload)
		if err != nil {
			return alerts, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func (s *AlertStore) create(ctx context.Context, payload ViolationPayload) (Alert, error) {
	now := s.now()
	details := ""
	if payload.Details != nil {
		b, err := json.Marshal(payload.Details)
		if err != nil {
			return Alert{}, errors.Wrap(err, "encoding alert details")
		}
		details = string(b)
	}

	model := AlertModel{
		ID:            uuid.NewString(),
		Severity:      s.thresholds.Severity(payload.ImpactScore),
		Title:         payload.Title,
		Description:   payload.Description,
		ContentID:     payload.ContentID,
		ViolationType: payload.Type,
		Details:       details,
		Timestamp:     now,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return Alert{}, errors.Wrap(err, "persisting alert")
	}

	alert := model.ToAlert()
	s.logger.Info("created alert",
		zap.String("alert_id", alert.ID),
		zap.String("severity", alert.Severity),
		zap.String("content_id", alert.ContentID))

	if alert.Severity == compliance.SeverityHigh {
		s.dispatch(ctx, alert)
	}
	return alert, nil
}

// Resolve marks an alert resolved with the given notes.
func (s *AlertStore) Resolve(ctx context.Context, id, notes string) error {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&AlertModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_resolved":      true,
			"resolution_notes": notes,
			"resolved_at":      now,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "resolving alert")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(compliance.ErrNotFound, "alert %s", id)
	}
	s.logger.Info("resolved alert", zap.String("alert_id", id))
	return nil
}

// ListPeriod returns the alerts created inside [start, end] ordered by
// timestamp.
func (s *AlertStore) ListPeriod(ctx context.Context, start, end time.Time) ([]Alert, error) {
	var models []AlertModel
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp asc").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing alerts")
	}
	alerts := make([]Alert, 0, len(models))
	for i := range models {
		alerts = append(alerts, models[i].ToAlert())
	}
	return alerts, nil
}

// dispatch pushes one alert to every enabled channel. Channel failures
// are logged, never surfaced: alert delivery is best effort on top of
// the persisted record.
func (s *AlertStore) dispatch(ctx context.Context, alert Alert) {
	for _, ch := range s.channels {
		if !ch.Enabled() {
			continue
		}
		if err := ch.Send(ctx, alert); err != nil {
			s.logger.Error("alert dispatch failed",
				zap.String("channel", ch.Type()),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}
}
