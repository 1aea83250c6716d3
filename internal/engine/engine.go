package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/PickGate/internal/notify"
	"github.com/Alias1177/PickGate/internal/policy"
	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/Alias1177/PickGate/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const defaultBatchWorkers = 8

// Recorder persists evaluated decisions
type Recorder interface {
	RecordDecision(ctx context.Context, rec models.DecisionRecord) error
}

// FallbackRunner runs the fallback chain for one prediction
type FallbackRunner interface {
	Evaluate(ctx context.Context, input models.PredictionInput) models.FallbackDecision
}

// EvaluateRequest is one prediction to decide on.
// A nil Context is replaced by an empty run snapshot with a fresh trace id.
type EvaluateRequest struct {
	Prediction models.PredictionInput `json:"prediction"`
	Context    *models.RunContext     `json:"context,omitempty"`
	// DataQualityFlagged routes the prediction through the fallback chain
	DataQualityFlagged bool `json:"dataQualityFlagged,omitempty"`
}

// EvaluateResult is the outcome returned to callers
type EvaluateResult struct {
	DecisionID        string                  `json:"decisionId"`
	Status            models.DecisionStatus   `json:"status"`
	Rationale         string                  `json:"rationale"`
	NoBetReason       string                  `json:"noBetReason,omitempty"`
	HardStopReason    string                  `json:"hardStopReason,omitempty"`
	GateOutcomes      []models.GateOutcome    `json:"gateOutcomes"`
	RecommendedAction string                  `json:"recommendedAction,omitempty"`
	FallbackContext   *models.FallbackContext `json:"fallbackContext,omitempty"`
	TraceID           string                  `json:"traceId"`
	Timestamp         time.Time               `json:"timestamp"`
	ProcessingTimeMs  float64                 `json:"processingTimeMs"`
}

// BatchItem is one entry of EvaluateBatch, in request order
type BatchItem struct {
	Result *EvaluateResult
	Err    error
}

// Deps are the collaborators of an Engine. Evaluator is required.
type Deps struct {
	Evaluator    *policy.Evaluator
	Fallback     FallbackRunner
	Recorder     Recorder
	Notifier     notify.Notifier
	BatchWorkers int
}

// Engine combines the gate evaluator and the fallback chain into one decision.
// It is built once per process and shared by every transport.
type Engine struct {
	evaluator *policy.Evaluator
	fallback  FallbackRunner
	recorder  Recorder
	notifier  notify.Notifier
	workers   int
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an engine from deps
func New(deps Deps) (*Engine, error) {
	if deps.Evaluator == nil {
		return nil, errors.New("engine: policy evaluator is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.BatchWorkers <= 0 {
		deps.BatchWorkers = defaultBatchWorkers
	}
	return &Engine{
		evaluator: deps.Evaluator,
		fallback:  deps.Fallback,
		recorder:  deps.Recorder,
		notifier:  deps.Notifier,
		workers:   deps.BatchWorkers,
		logger:    log.With().Str("component", "decision_engine").Logger(),
		now:       models.NowUTC,
	}, nil
}

// Evaluator returns the gate evaluator in use
func (e *Engine) Evaluator() *policy.Evaluator { return e.evaluator }

// WithThresholds returns an engine sharing every collaborator but gating with t.
// t must come from governance.ApplyProfile.
func (e *Engine) WithThresholds(t policy.Thresholds) *Engine {
	cp := *e
	cp.evaluator = e.evaluator.WithThresholds(t)
	return &cp
}

// Evaluate decides on one prediction. Validation failures return a *models.ValidationError
// before any gate runs. A HARD_STOP from the gates is final; otherwise a data-quality
// concern runs the fallback chain and a forced no-bet downgrades a PICK.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResult, error) {
	start := time.Now()
	rc := e.runContext(ctx, req)
	ctx = trace.WithID(ctx, rc.TraceID)
	logger := e.logger.With().Str("trace_id", rc.TraceID).Str("prediction_id", req.Prediction.ID).Logger()

	decision, err := e.evaluator.Evaluate(req.Prediction, rc)
	if err != nil {
		logger.Warn().Err(err).Msg("Prediction rejected")
		return nil, err
	}

	var fctx *models.FallbackContext
	if decision.Status != models.StatusHardStop && e.fallback != nil &&
		(req.DataQualityFlagged || e.evaluator.NeedsFallback(req.Prediction)) {
		fb := e.fallback.Evaluate(ctx, req.Prediction)
		fctx = &fb.FallbackContext
		decision = mergeFallback(decision, fb)
	}

	res := &EvaluateResult{
		DecisionID:        decision.DecisionID,
		Status:            decision.Status,
		Rationale:         decision.Rationale,
		NoBetReason:       decision.NoBetReason,
		HardStopReason:    decision.HardStopReason,
		GateOutcomes:      decision.GateOutcomes,
		RecommendedAction: decision.RecommendedAction,
		FallbackContext:   fctx,
		TraceID:           rc.TraceID,
		Timestamp:         decision.ExecutedAt,
		ProcessingTimeMs:  models.ElapsedMillis(start),
	}
	rec := toRecord(req.Prediction, rc, res)

	if e.recorder != nil {
		if err := e.recorder.RecordDecision(ctx, rec); err != nil {
			logger.Error().Err(err).Str("decision_id", res.DecisionID).Msg("Failed to record decision")
			return nil, fmt.Errorf("record decision %s: %w", res.DecisionID, err)
		}
	}

	if res.Status == models.StatusHardStop {
		if err := e.notifier.NotifyHardStop(ctx, rec); err != nil {
			logger.Error().Err(err).Str("decision_id", res.DecisionID).Msg("Failed to send hard-stop alert")
		}
	}

	logger.Info().
		Str("decision_id", res.DecisionID).
		Str("status", string(res.Status)).
		Bool("fallback", fctx != nil).
		Float64("processing_ms", res.ProcessingTimeMs).
		Msg("Decision evaluated")
	return res, nil
}

// EvaluateBatch evaluates reqs with at most BatchWorkers in flight.
// Items fail independently; only ctx cancellation stops the batch.
func (e *Engine) EvaluateBatch(ctx context.Context, reqs []EvaluateRequest) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			res, err := e.Evaluate(gCtx, reqs[i])
			items[i] = BatchItem{Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}

func (e *Engine) runContext(ctx context.Context, req EvaluateRequest) models.RunContext {
	var rc models.RunContext
	if req.Context != nil {
		rc = *req.Context
	} else {
		rc.RunID = req.Prediction.RunID
	}
	if rc.TraceID == "" {
		rc.TraceID = trace.FromContext(ctx)
	}
	if rc.TraceID == "" {
		rc.TraceID = trace.NewID()
	}
	if rc.ExecutedAt.IsZero() {
		rc.ExecutedAt = e.now()
	}
	return rc
}

// mergeFallback lets a forced no-bet downgrade a PICK. An existing NO_BET keeps its gate reason.
func mergeFallback(d models.PolicyDecision, fb models.FallbackDecision) models.PolicyDecision {
	if fb.Status != models.StatusNoBet {
		return d
	}
	switch d.Status {
	case models.StatusPick:
		d.Status = models.StatusNoBet
		d.NoBetReason = fb.NoBetReason
		d.Rationale = fb.Rationale
		d.RecommendedAction = fb.RecommendedAction
	case models.StatusNoBet:
		d.Rationale = d.Rationale + "; " + fb.Rationale
	}
	return d
}

func toRecord(in models.PredictionInput, rc models.RunContext, res *EvaluateResult) models.DecisionRecord {
	runID := rc.RunID
	if runID == "" {
		runID = in.RunID
	}
	return models.DecisionRecord{
		DecisionID:        res.DecisionID,
		PredictionID:      in.ID,
		MatchID:           in.MatchID,
		RunID:             runID,
		UserID:            in.UserID,
		TraceID:           res.TraceID,
		Status:            res.Status,
		Rationale:         res.Rationale,
		NoBetReason:       res.NoBetReason,
		HardStopReason:    res.HardStopReason,
		RecommendedAction: res.RecommendedAction,
		GateOutcomes:      res.GateOutcomes,
		FallbackContext:   res.FallbackContext,
		ModelVersion:      in.ModelVersion,
		ExecutedAt:        res.Timestamp,
		ProcessingTimeMs:  res.ProcessingTimeMs,
	}
}
