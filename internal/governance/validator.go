// Package governance guards policy profiles against the platform hard-stop boundaries.
// It is the only place where a caller supplied threshold is admitted into the gates.
package governance

import (
	"fmt"
	"math"
	"strings"

	"github.com/Alias1177/PickGate/internal/policy"
	"github.com/Alias1177/PickGate/models"
)

// Platform hard-stop boundaries. They are never configurable at runtime.
const (
	ConfidenceFloor   = 0.65
	ConfidenceCeiling = 0.95
	EdgeFloor         = 0.05
	EdgeCeiling       = 0.50
	DriftFloor        = 0.0
	DriftCeiling      = 0.30
)

// Issue codes
const (
	CodeBelowMinimum = "BELOW_MINIMUM"
	CodeAboveMaximum = "ABOVE_MAXIMUM"
	CodeInvalidValue = "INVALID_VALUE"
	CodeHighRisk     = "HIGH_RISK"
)

// Profile field names
const (
	FieldConfidenceMin = "confidenceMin"
	FieldEdgeMin       = "edgeMin"
	FieldMaxDriftScore = "maxDriftScore"
)

// Boundary is the legal range of one profile field plus the platform default
type Boundary struct {
	Field   string  `json:"field"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	// LowerIsLooser is true when smaller values admit more bets
	LowerIsLooser bool `json:"-"`
}

// HardStopBoundaries returns the boundaries in field order
func HardStopBoundaries() []Boundary {
	def := policy.DefaultThresholds()
	return []Boundary{
		{Field: FieldConfidenceMin, Min: ConfidenceFloor, Max: ConfidenceCeiling, Default: def.ConfidenceMin, LowerIsLooser: true},
		{Field: FieldEdgeMin, Min: EdgeFloor, Max: EdgeCeiling, Default: def.EdgeMin, LowerIsLooser: true},
		{Field: FieldMaxDriftScore, Min: DriftFloor, Max: DriftCeiling, Default: def.MaxDriftScore},
	}
}

// ProfileConfig is a partial, caller supplied profile. Nil fields are left untouched.
type ProfileConfig struct {
	ConfidenceMin *float64 `json:"confidenceMin,omitempty" yaml:"confidenceMin,omitempty"`
	EdgeMin       *float64 `json:"edgeMin,omitempty" yaml:"edgeMin,omitempty"`
	MaxDriftScore *float64 `json:"maxDriftScore,omitempty" yaml:"maxDriftScore,omitempty"`
}

func (p *ProfileConfig) field(name string) **float64 {
	switch name {
	case FieldConfidenceMin:
		return &p.ConfidenceMin
	case FieldEdgeMin:
		return &p.EdgeMin
	default:
		return &p.MaxDriftScore
	}
}

// Issue is one governance error or warning
type Issue struct {
	Field           string  `json:"field"`
	Code            string  `json:"code"`
	Value           float64 `json:"value"`
	PlatformMinimum float64 `json:"platformMinimum"`
	PlatformMaximum float64 `json:"platformMaximum"`
	Message         string  `json:"message"`
}

// ValidationResult is the verdict on a profile. Valid iff Errors is empty.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Violation is returned when a profile would cross a hard-stop boundary
type Violation struct {
	Result ValidationResult
}

func (v *Violation) Error() string {
	parts := make([]string, 0, len(v.Result.Errors))
	for _, e := range v.Result.Errors {
		parts = append(parts, e.Message)
	}
	return models.CodeGovernanceViolation + ": " + strings.Join(parts, "; ")
}

// ValidateProfileConfig checks every present field against its boundary.
// Out of range values are errors; values looser than the platform default are HIGH_RISK warnings.
func ValidateProfileConfig(cfg ProfileConfig) ValidationResult {
	res := ValidationResult{Errors: []Issue{}, Warnings: []Issue{}}

	for _, b := range HardStopBoundaries() {
		v := *cfg.field(b.Field)
		if v == nil {
			continue
		}
		issue := Issue{Field: b.Field, Value: *v, PlatformMinimum: b.Min, PlatformMaximum: b.Max}

		switch {
		case math.IsNaN(*v) || math.IsInf(*v, 0):
			issue.Code = CodeInvalidValue
			issue.Value = 0
			issue.Message = fmt.Sprintf("%s must be a finite number", b.Field)
			res.Errors = append(res.Errors, issue)
		case *v < b.Min:
			issue.Code = CodeBelowMinimum
			issue.Message = fmt.Sprintf("%s %.2f is below the platform minimum %.2f", b.Field, *v, b.Min)
			res.Errors = append(res.Errors, issue)
		case *v > b.Max:
			issue.Code = CodeAboveMaximum
			issue.Message = fmt.Sprintf("%s %.2f is above the platform maximum %.2f", b.Field, *v, b.Max)
			res.Errors = append(res.Errors, issue)
		case looser(b, *v):
			issue.Code = CodeHighRisk
			issue.Message = fmt.Sprintf("%s %.2f is looser than the platform default %.2f", b.Field, *v, b.Default)
			res.Warnings = append(res.Warnings, issue)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// SanitizeConfig clamps every present field into its legal range.
// Non-finite values are replaced by the platform default. The result always validates.
func SanitizeConfig(cfg ProfileConfig) ProfileConfig {
	out := ProfileConfig{}
	for _, b := range HardStopBoundaries() {
		v := *cfg.field(b.Field)
		if v == nil {
			continue
		}
		clamped := *v
		switch {
		case math.IsNaN(clamped) || math.IsInf(clamped, 0):
			clamped = b.Default
		case clamped < b.Min:
			clamped = b.Min
		case clamped > b.Max:
			clamped = b.Max
		}
		*out.field(b.Field) = &clamped
	}
	return out
}

// ApplyProfile overlays cfg on base after validation. An invalid profile returns a *Violation
// and base is not modified.
func ApplyProfile(base policy.Thresholds, cfg ProfileConfig) (policy.Thresholds, error) {
	res := ValidateProfileConfig(cfg)
	if !res.Valid {
		return base, &Violation{Result: res}
	}
	out := base
	if cfg.ConfidenceMin != nil {
		out.ConfidenceMin = *cfg.ConfidenceMin
	}
	if cfg.EdgeMin != nil {
		out.EdgeMin = *cfg.EdgeMin
	}
	if cfg.MaxDriftScore != nil {
		out.MaxDriftScore = *cfg.MaxDriftScore
	}
	return out, nil
}

// ProfileOf converts thresholds to a complete profile
func ProfileOf(t policy.Thresholds) ProfileConfig {
	c, e, d := t.ConfidenceMin, t.EdgeMin, t.MaxDriftScore
	return ProfileConfig{ConfidenceMin: &c, EdgeMin: &e, MaxDriftScore: &d}
}

func looser(b Boundary, v float64) bool {
	if b.LowerIsLooser {
		return v < b.Default
	}
	return v > b.Default
}
