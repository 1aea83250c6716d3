package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/PickGate/internal/quality"
	"github.com/Alias1177/PickGate/internal/registry"
	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/Alias1177/PickGate/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Termination bounds
const (
	MaxLevels        = 10
	MaxIterations    = 10
	MaxNestedDepth   = 3
	DefaultLookupTTL = 2 * time.Second
)

// Attempt reasons
const (
	ReasonModelNotFound  = "Model not found"
	ReasonForcedNoBet    = "Forced no-bet level reached"
	ReasonQualityFailed  = "Data quality below threshold"
	ReasonQualityPassed  = "Data quality passed"
	recommendedOnNoBet   = "Wait for fresh data or review the prediction manually"
	rationaleDepthExceed = "Fallback chain nesting limit exceeded"
)

// QualityAssessor scores a prediction for a resolved model
type QualityAssessor interface {
	Assess(input models.PredictionInput, model models.ModelInfo) models.DataQualityAssessment
}

// ChainConfig is the static per-deployment fallback configuration
type ChainConfig struct {
	PrimaryModelID       string
	SecondaryModelID     string
	LastValidatedModelID string
	ReliabilityThreshold float64
	Levels               []string
	// LookupTimeout bounds each registry call
	LookupTimeout time.Duration
}

// Chain tries each level in order until one passes the quality gate.
// It keeps no per-call state and may be shared across goroutines.
type Chain struct {
	cfg      ChainConfig
	levels   []Level
	registry registry.Registry
	assessor QualityAssessor
	logger   zerolog.Logger
	now      func() time.Time
}

// NewChain validates cfg and builds the chain. A nil assessor is replaced by a
// quality.Assessor using cfg.ReliabilityThreshold.
// Every returned error wraps models.ErrInvalidChainConfig and must stop the process.
func NewChain(cfg ChainConfig, reg registry.Registry, assessor QualityAssessor) (*Chain, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: model registry is required", models.ErrInvalidChainConfig)
	}
	if cfg.ReliabilityThreshold < 0 || cfg.ReliabilityThreshold > 1 {
		return nil, fmt.Errorf("%w: reliability threshold %v outside [0,1]", models.ErrInvalidChainConfig, cfg.ReliabilityThreshold)
	}
	levels, err := ParseLevels(cfg.Levels, cfg)
	if err != nil {
		return nil, err
	}
	if MaxIterations < len(levels) {
		return nil, fmt.Errorf("%w: iteration limit %d below level count %d", models.ErrInvalidChainConfig, MaxIterations, len(levels))
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTTL
	}
	if assessor == nil {
		qc := quality.DefaultConfig()
		qc.ReliabilityThreshold = cfg.ReliabilityThreshold
		assessor = quality.NewAssessor(qc)
	}

	return &Chain{
		cfg:      cfg,
		levels:   levels,
		registry: reg,
		assessor: assessor,
		logger:   log.With().Str("component", "fallback_chain").Logger(),
		now:      models.NowUTC,
	}, nil
}

// Levels returns the parsed levels in evaluation order
func (c *Chain) Levels() []Level {
	out := make([]Level, len(c.levels))
	copy(out, c.levels)
	return out
}

type depthKey struct{}

// Evaluate runs the chain for input. Nested calls made through ctx (for example from a
// registry that evaluates on its own) are counted and cut off after MaxNestedDepth.
func (c *Chain) Evaluate(ctx context.Context, input models.PredictionInput) models.FallbackDecision {
	depth, _ := ctx.Value(depthKey{}).(int)
	return c.evaluateAt(context.WithValue(ctx, depthKey{}, depth+1), input, depth+1)
}

func (c *Chain) evaluateAt(ctx context.Context, input models.PredictionInput, depth int) models.FallbackDecision {
	traceID := trace.FromContext(ctx)
	logger := c.logger.With().Str("trace_id", traceID).Str("prediction_id", input.ID).Logger()

	if depth > MaxNestedDepth {
		logger.Error().Int("depth", depth).Msg("Fallback chain nesting limit exceeded, forcing no-bet")
		d := c.forcedNoBet(traceID, nil)
		d.Rationale = rationaleDepthExceed
		return d
	}

	attempts := make([]models.FallbackAttempt, 0, len(c.levels))
	for i, lvl := range c.levels {
		if i >= MaxIterations {
			logger.Error().Int("iterations", i).Msg("Fallback iteration limit reached, forcing no-bet")
			break
		}

		if lvl.IsForcedNoBet() {
			attempts = append(attempts, models.FallbackAttempt{Level: lvl.Name(), Reason: ReasonForcedNoBet})
			break
		}

		modelID, _ := lvl.ModelID()
		model := c.resolve(ctx, modelID)
		if model == nil {
			logger.Warn().Str("level", lvl.Name()).Str("model_id", modelID).Msg("Fallback level skipped, model not found")
			attempts = append(attempts, models.FallbackAttempt{Level: lvl.Name(), ModelID: modelID, Reason: ReasonModelNotFound})
			continue
		}

		assessment := c.assessor.Assess(input, *model)
		attempt := models.FallbackAttempt{
			Level:        lvl.Name(),
			ModelID:      model.ID,
			QualityScore: assessment.OverallScore,
			Passed:       assessment.Passed,
		}
		if assessment.Passed {
			attempt.Reason = ReasonQualityPassed
			attempts = append(attempts, attempt)
			return c.pick(traceID, lvl, model, assessment, attempts)
		}

		attempt.Reason = fmt.Sprintf("%s: %v", ReasonQualityFailed, assessment.FailedChecks)
		attempts = append(attempts, attempt)
		logger.Warn().
			Str("level", lvl.Name()).
			Str("model_id", model.ID).
			Float64("quality_score", assessment.OverallScore).
			Strs("failed_checks", assessment.FailedChecks).
			Msg("Fallback level failed data quality")
	}

	d := c.forcedNoBet(traceID, attempts)
	logger.Warn().
		Int("attempts", len(attempts)).
		Float64("best_quality_score", d.FallbackContext.QualityScore).
		Msg("All fallback levels exhausted, forcing no-bet")
	return d
}

// resolve looks the model up within LookupTimeout. Any failure yields nil.
func (c *Chain) resolve(ctx context.Context, modelID string) *models.ModelInfo {
	if modelID == "" {
		return nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	model, err := c.registry.Lookup(lookupCtx, modelID)
	if err != nil {
		c.logger.Debug().Err(err).Str("model_id", modelID).Msg("Model lookup failed")
		return nil
	}
	return model
}

func (c *Chain) pick(traceID string, lvl Level, model *models.ModelInfo, a models.DataQualityAssessment, attempts []models.FallbackAttempt) models.FallbackDecision {
	return models.FallbackDecision{
		PolicyDecision: models.PolicyDecision{
			DecisionID:   uuid.NewString(),
			Status:       models.StatusPick,
			Rationale:    fmt.Sprintf("Data quality passed at %s level (model %s, score %.2f)", lvl.Name(), model.ID, a.OverallScore),
			GateOutcomes: []models.GateOutcome{},
			TraceID:      traceID,
			ExecutedAt:   c.now(),
		},
		FallbackContext: models.FallbackContext{
			FinalLevel:     lvl.Name(),
			QualityScore:   a.OverallScore,
			Attempts:       attempts,
			WasForcedNoBet: false,
		},
	}
}

func (c *Chain) forcedNoBet(traceID string, attempts []models.FallbackAttempt) models.FallbackDecision {
	if attempts == nil {
		attempts = []models.FallbackAttempt{}
	}
	best := 0.0
	for _, a := range attempts {
		if a.QualityScore > best {
			best = a.QualityScore
		}
	}
	return models.FallbackDecision{
		PolicyDecision: models.PolicyDecision{
			DecisionID: uuid.NewString(),
			Status:     models.StatusNoBet,
			Rationale: fmt.Sprintf("All fallback levels failed data quality (threshold %.2f, best score %.2f)",
				c.cfg.ReliabilityThreshold, best),
			NoBetReason:       models.NoBetReasonDegradedDataQuality,
			RecommendedAction: recommendedOnNoBet,
			GateOutcomes:      []models.GateOutcome{},
			TraceID:           traceID,
			ExecutedAt:        c.now(),
		},
		FallbackContext: models.FallbackContext{
			FinalLevel:     LevelForceNoBet,
			QualityScore:   best,
			Attempts:       attempts,
			WasForcedNoBet: true,
		},
	}
}
