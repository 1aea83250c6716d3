package policy

import (
	"fmt"
	"strings"

	"github.com/Alias1177/PickGate/internal/risk"
	"github.com/Alias1177/PickGate/models"
)

// Thresholds are the gate thresholds of one policy profile
type Thresholds struct {
	ConfidenceMin float64 `yaml:"confidenceMin" json:"confidenceMin"`
	EdgeMin       float64 `yaml:"edgeMin" json:"edgeMin"`
	MaxDriftScore float64 `yaml:"maxDriftScore" json:"maxDriftScore"`
}

// DefaultThresholds returns the platform default profile
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConfidenceMin: 0.70,
		EdgeMin:       0.08,
		MaxDriftScore: 0.15,
	}
}

// Each gate below reads only its own signal so outcomes never depend on one another.

// ConfidenceGate passes iff confidence >= ConfidenceMin
func ConfidenceGate(in models.PredictionInput, t Thresholds) models.GateOutcome {
	out := models.GateOutcome{
		GateName:  models.GateConfidence,
		Score:     in.Confidence,
		Threshold: t.ConfidenceMin,
		Passed:    in.Confidence >= t.ConfidenceMin,
	}
	if out.Passed {
		out.Reason = fmt.Sprintf("Confidence %.2f meets minimum %.2f", in.Confidence, t.ConfidenceMin)
	} else {
		out.Reason = fmt.Sprintf("Confidence %.2f below minimum %.2f", in.Confidence, t.ConfidenceMin)
	}
	return out
}

// EdgeGate passes iff edge >= EdgeMin. A missing edge fails.
func EdgeGate(in models.PredictionInput, t Thresholds) models.GateOutcome {
	out := models.GateOutcome{
		GateName:  models.GateEdge,
		Threshold: t.EdgeMin,
	}
	if in.Edge == nil {
		out.Reason = "Edge not provided by the model"
		return out
	}
	out.Score = *in.Edge
	out.Passed = *in.Edge >= t.EdgeMin
	if out.Passed {
		out.Reason = fmt.Sprintf("Edge %.2f meets minimum %.2f", *in.Edge, t.EdgeMin)
	} else {
		out.Reason = fmt.Sprintf("Edge %.2f below minimum %.2f", *in.Edge, t.EdgeMin)
	}
	return out
}

// DriftGate passes iff drift <= MaxDriftScore; a missing drift score counts as zero
func DriftGate(in models.PredictionInput, t Thresholds) models.GateOutcome {
	drift := 0.0
	if in.DriftScore != nil {
		drift = *in.DriftScore
	}
	out := models.GateOutcome{
		GateName:  models.GateDrift,
		Score:     drift,
		Threshold: t.MaxDriftScore,
		Passed:    drift <= t.MaxDriftScore,
	}
	if out.Passed {
		out.Reason = fmt.Sprintf("Drift %.2f within maximum %.2f", drift, t.MaxDriftScore)
	} else {
		out.Reason = fmt.Sprintf("Drift %.2f exceeds maximum %.2f", drift, t.MaxDriftScore)
	}
	return out
}

// HardStopGate passes iff no hard-stop condition is met.
// Score is the highest limit utilization; the threshold is 1 (a fully used limit).
func HardStopGate(rc models.RunContext, l risk.Limits) (models.GateOutcome, []risk.Condition) {
	conds := risk.Conditions(rc, l)
	met := risk.Met(conds)

	worst := 0.0
	for _, c := range conds {
		if u := c.Utilization(); u > worst {
			worst = u
		}
	}

	out := models.GateOutcome{
		GateName:  models.GateHardStop,
		Score:     worst,
		Threshold: 1,
		Passed:    len(met) == 0,
	}
	if out.Passed {
		out.Reason = "No hard-stop condition met"
		return out, met
	}
	parts := make([]string, 0, len(met))
	for _, c := range met {
		parts = append(parts, c.String())
	}
	out.Reason = "Hard-stop conditions met: " + strings.Join(parts, ", ")
	return out, met
}
