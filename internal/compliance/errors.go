// Package compliance holds types shared by the policy and regulatory
// subsystems: the error taxonomy for store mutations and the severity
// levels attached to violations and alerts.
package compliance

import (
	"fmt"

	"github.com/pkg/errors"
)

// Severity levels for violations and alerts.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ErrNotFound is returned by update/delete operations referencing an
// unknown rule or regulation id. Callers match it with errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed rule or regulation. The failed
// mutation leaves the store unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExternalFetchError wraps a failure to refresh regulations from the
// configured endpoint. It is logged and swallowed by the refresher; the
// in-memory regulation set is left untouched.
type ExternalFetchError struct {
	URL string
	Err error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("regulation fetch from %s failed: %v", e.URL, e.Err)
}

func (e *ExternalFetchError) Unwrap() error { return e.Err }
