package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Error codes surfaced to callers
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeGovernanceViolation = "GOVERNANCE_VIOLATION"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeNotFound            = "NOT_FOUND"
)

var (
	// ErrMissingRequired is returned when required deployment configuration is absent
	ErrMissingRequired = errors.New("missing required configuration")
	// ErrInvalidChainConfig marks a fallback chain that must never be constructed
	ErrInvalidChainConfig = errors.New("invalid fallback chain configuration")
)

// FieldError is one field-level validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any gate runs when an input is malformed
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validate checks numeric ranges of the prediction.
// Missing identifiers are not rejected here: the quality assessor degrades them instead.
func (p PredictionInput) Validate() error {
	verr := &ValidationError{}
	checkUnit(verr, "confidence", p.Confidence)
	if p.Edge != nil {
		checkUnit(verr, "edge", *p.Edge)
	}
	if p.DriftScore != nil {
		checkUnit(verr, "driftScore", *p.DriftScore)
	}
	if p.PredictedOverUnder != nil && (math.IsNaN(*p.PredictedOverUnder) || *p.PredictedOverUnder < 0) {
		verr.add("predictedOverUnder", "must be a non-negative number")
	}
	return verr.orNil()
}

// Validate rejects negative risk counters
func (c RunContext) Validate() error {
	verr := &ValidationError{}
	if c.DailyLoss.IsNegative() {
		verr.add("dailyLoss", "must be >= 0, got %s", c.DailyLoss.String())
	}
	if c.ConsecutiveLosses < 0 {
		verr.add("consecutiveLosses", "must be >= 0, got %d", c.ConsecutiveLosses)
	}
	if c.CurrentBankroll.IsNegative() {
		verr.add("currentBankroll", "must be >= 0, got %s", c.CurrentBankroll.String())
	}
	return verr.orNil()
}

func checkUnit(verr *ValidationError, field string, v float64) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		verr.add(field, "must be within [0,1], got %v", v)
	}
}
