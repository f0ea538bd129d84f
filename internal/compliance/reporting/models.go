// Package reporting turns violations into alerts, persists them, and
// generates periodic compliance reports.
package reporting

import (
	"encoding/json"
	"time"
)

// Alert is a compliance alert derived from one violation payload.
type Alert struct {
	ID              string         `json:"id"`
	Severity        string         `json:"severity"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	ContentID       string         `json:"content_id"`
	ViolationType   string         `json:"violation_type"`
	Details         map[string]any `json:"details"`
	Timestamp       time.Time      `json:"timestamp"`
	IsResolved      bool           `json:"is_resolved"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// AlertModel is the database row for an alert. Details are stored as
// serialized JSON so the schema works on both sqlite and postgres.
type AlertModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)"`
	Severity        string     `gorm:"type:varchar(20);index"`
	Title           string     `gorm:"type:varchar(200)"`
	Description     string     `gorm:"type:text"`
	ContentID       string     `gorm:"type:varchar(100);index"`
	ViolationType   string     `gorm:"type:varchar(100);index"`
	Details         string     `gorm:"type:text"`
	Timestamp       time.Time  `gorm:"index"`
	IsResolved      bool       `gorm:"index"`
	ResolutionNotes string     `gorm:"type:text"`
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for AlertModel.
func (AlertModel) TableName() string {
	return "compliance_alerts"
}

// ToAlert converts the row to its API shape.
func (m *AlertModel) ToAlert() Alert {
	details := map[string]any{}
	if m.Details != "" {
		// ignore decode errors; corrupt details degrade to empty
		_ = json.Unmarshal([]byte(m.Details), &details)
	}
	return Alert{
		ID:              m.ID,
		Severity:        m.Severity,
		Title:           m.Title,
		Description:     m.Description,
		ContentID:       m.ContentID,
		ViolationType:   m.ViolationType,
		Details:         details,
		Timestamp:       m.Timestamp,
		IsResolved:      m.IsResolved,
		ResolutionNotes: m.ResolutionNotes,
		ResolvedAt:      m.ResolvedAt,
	}
}

// Report summarizes alert activity over a period.
type Report struct {
	ID          string             `json:"id"`
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	Summary     map[string]any     `json:"summary"`
	Alerts      []Alert            `json:"alerts"`
	Metrics     map[string]float64 `json:"metrics"`
	Timestamp   time.Time          `json:"timestamp"`
}
