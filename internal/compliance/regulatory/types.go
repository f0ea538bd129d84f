// Package regulatory implements region and industry scoped regulations
// and the monitor that evaluates content against their field-level
// requirements.
package regulatory

import "time"

// Regulation is a set of field-level requirements that applies to an
// exact region and industry while inside its effective window.
// Requirements are "field:condition" expressions; see requirement.go
// for the supported conditions.
type Regulation struct {
	ID            string     `json:"id" yaml:"id"`
	Region        string     `json:"region" yaml:"region"`
	Industry      string     `json:"industry" yaml:"industry"`
	Description   string     `json:"description" yaml:"description"`
	Requirements  []string   `json:"requirements" yaml:"requirements"`
	EffectiveDate time.Time  `json:"effective_date" yaml:"effective_date"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty"`
	IsActive      bool       `json:"is_active" yaml:"is_active"`
}

// RegulationUpdate is a partial update over the closed regulation
// schema.
type RegulationUpdate struct {
	Region        *string    `json:"region,omitempty"`
	Industry      *string    `json:"industry,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Requirements  *[]string  `json:"requirements,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
}

// Check groups all findings for one content item against one
// regulation. Compliant means no requirement went unmet. Immutable
// once returned.
type Check struct {
	RegulationID        string         `json:"regulation_id"`
	ContentID           string         `json:"content_id"`
	IsCompliant         bool           `json:"is_compliant"`
	MissingRequirements []string       `json:"missing_requirements"`
	Details             map[string]any `json:"details"`
	Timestamp           time.Time      `json:"timestamp"`
}
