package policy

import (
	"strings"
	"time"

	"github.com/Alias1177/PickGate/internal/risk"
	"github.com/Alias1177/PickGate/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	actionHardStop = "Stop all betting for this run and review risk exposure before resuming"
	actionNoBet    = "Skip this match; wait for a stronger signal"
)

// Evaluator runs the confidence, edge, drift and hard-stop gates
type Evaluator struct {
	thresholds Thresholds
	limits     risk.Limits
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEvaluator creates an evaluator with fixed thresholds and limits.
// Thresholds should come from governance.ApplyProfile when a caller profile is involved.
func NewEvaluator(t Thresholds, l risk.Limits) *Evaluator {
	return &Evaluator{
		thresholds: t,
		limits:     l,
		logger:     log.With().Str("component", "policy_evaluator").Logger(),
		now:        models.NowUTC,
	}
}

// Thresholds returns the configured gate thresholds
func (e *Evaluator) Thresholds() Thresholds { return e.thresholds }

// Limits returns the configured hard-stop limits
func (e *Evaluator) Limits() risk.Limits { return e.limits }

// WithThresholds returns a copy of e using t
func (e *Evaluator) WithThresholds(t Thresholds) *Evaluator {
	cp := *e
	cp.thresholds = t
	return &cp
}

// Evaluate validates the inputs and runs every gate.
// A failed hard-stop gate forces HARD_STOP whatever the other gates say.
func (e *Evaluator) Evaluate(in models.PredictionInput, rc models.RunContext) (models.PolicyDecision, error) {
	if err := in.Validate(); err != nil {
		return models.PolicyDecision{}, err
	}
	if err := rc.Validate(); err != nil {
		return models.PolicyDecision{}, err
	}

	hardStop, met := HardStopGate(rc, e.limits)
	outcomes := []models.GateOutcome{
		ConfidenceGate(in, e.thresholds),
		EdgeGate(in, e.thresholds),
		DriftGate(in, e.thresholds),
		hardStop,
	}

	executedAt := rc.ExecutedAt
	if executedAt.IsZero() {
		executedAt = e.now()
	}

	d := models.PolicyDecision{
		DecisionID:   uuid.NewString(),
		GateOutcomes: outcomes,
		TraceID:      rc.TraceID,
		ExecutedAt:   executedAt.UTC(),
	}

	d.Status = DeriveStatus(outcomes)
	switch d.Status {
	case models.StatusHardStop:
		names := make([]string, 0, len(met))
		for _, c := range met {
			names = append(names, c.Name)
		}
		d.HardStopReason = strings.Join(names, ",")
		d.Rationale = hardStop.Reason
		d.RecommendedAction = actionHardStop
	case models.StatusNoBet:
		d.NoBetReason = noBetReason(outcomes[:3])
		d.Rationale = failedReasons(outcomes[:3])
		d.RecommendedAction = actionNoBet
	default:
		d.Rationale = "All gates passed"
	}

	e.logger.Debug().
		Str("trace_id", rc.TraceID).
		Str("prediction_id", in.ID).
		Str("status", string(d.Status)).
		Msg("Gates evaluated")
	return d, nil
}

// NeedsFallback reports a data-quality concern that should route the prediction
// through the fallback chain.
func (e *Evaluator) NeedsFallback(in models.PredictionInput) bool {
	return in.ModelVersion == "" || !in.HasDirection()
}

// DeriveStatus maps gate outcomes to a status: HARD_STOP, then NO_BET, then PICK
func DeriveStatus(outcomes []models.GateOutcome) models.DecisionStatus {
	soft := false
	for _, o := range outcomes {
		if o.Passed {
			continue
		}
		if o.GateName == models.GateHardStop {
			return models.StatusHardStop
		}
		soft = true
	}
	if soft {
		return models.StatusNoBet
	}
	return models.StatusPick
}

func noBetReason(outcomes []models.GateOutcome) string {
	for _, o := range outcomes {
		if o.Passed {
			continue
		}
		switch o.GateName {
		case models.GateConfidence:
			return models.NoBetReasonLowConfidence
		case models.GateEdge:
			return models.NoBetReasonInsufficientEdge
		case models.GateDrift:
			return models.NoBetReasonModelDrift
		}
	}
	return ""
}

func failedReasons(outcomes []models.GateOutcome) string {
	var parts []string
	for _, o := range outcomes {
		if !o.Passed {
			parts = append(parts, o.Reason)
		}
	}
	return strings.Join(parts, "; ")
}
