package quality

import (
	"time"

	"github.com/Alias1177/PickGate/models"
)

// Sub-score weights of the overall quality score
const (
	WeightSourceAvailability = 0.3
	WeightSchemaValidity     = 0.25
	WeightFreshness          = 0.2
	WeightCompleteness       = 0.25
)

// Failed check tags
const (
	CheckSourceAvailability = "source_availability"
	CheckSchemaValidity     = "schema_validity"
	CheckFreshness          = "freshness"
	CheckCompleteness       = "completeness"
	CheckOverallScore       = "overall_score"
)

const (
	minFreshness  = 0.5
	trackedFields = 8
)

// Config holds the pass thresholds of the assessor
type Config struct {
	MinSourceAvailability float64
	MinSchemaValidity     float64
	MinCompleteness       float64
	ReliabilityThreshold  float64
	// MaxDataAge enables timestamp based freshness when the prediction carries DataFetchedAt.
	// Zero keeps the modelVersion presence proxy.
	MaxDataAge time.Duration
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		MinSourceAvailability: 0.7,
		MinSchemaValidity:     0.7,
		MinCompleteness:       0.8,
		ReliabilityThreshold:  0.5,
	}
}

// Assessor scores a prediction produced by a given model.
// It holds no state beyond its configuration and is safe for concurrent use.
type Assessor struct {
	cfg Config
	now func() time.Time
}

// NewAssessor creates an assessor enforcing cfg as given. A zero threshold is a legal
// threshold, so start from DefaultConfig and override fields.
func NewAssessor(cfg Config) *Assessor {
	return &Assessor{cfg: cfg, now: models.NowUTC}
}

// Threshold is the overall score a prediction must reach
func (a *Assessor) Threshold() float64 {
	return a.cfg.ReliabilityThreshold
}

// Assess computes the data quality of input as produced by model.
// Missing data lowers the scores; it never fails the call. Only input is scored:
// model is part of the pair the fallback chain records, not a data source.
//
// Confidence is a plain number, so a confidence of exactly 0 is indistinguishable from an
// omitted one and counts as absent for availability and completeness.
func (a *Assessor) Assess(input models.PredictionInput, model models.ModelInfo) models.DataQualityAssessment {
	res := models.DataQualityAssessment{
		SourceAvailability: sourceAvailability(input),
		SchemaValidity:     schemaValidity(input),
		Freshness:          a.freshness(input),
		Completeness:       completeness(input),
		FailedChecks:       []string{},
	}
	res.OverallScore = WeightSourceAvailability*res.SourceAvailability +
		WeightSchemaValidity*res.SchemaValidity +
		WeightFreshness*res.Freshness +
		WeightCompleteness*res.Completeness

	if res.SourceAvailability < a.cfg.MinSourceAvailability {
		res.FailedChecks = append(res.FailedChecks, CheckSourceAvailability)
	}
	if res.SchemaValidity < a.cfg.MinSchemaValidity {
		res.FailedChecks = append(res.FailedChecks, CheckSchemaValidity)
	}
	if res.Freshness < minFreshness {
		res.FailedChecks = append(res.FailedChecks, CheckFreshness)
	}
	if res.Completeness < a.cfg.MinCompleteness {
		res.FailedChecks = append(res.FailedChecks, CheckCompleteness)
	}
	if res.OverallScore < a.cfg.ReliabilityThreshold {
		res.FailedChecks = append(res.FailedChecks, CheckOverallScore)
	}
	res.Passed = len(res.FailedChecks) == 0
	return res
}

func sourceAvailability(p models.PredictionInput) float64 {
	hasConfidence := hasConfidence(p)
	switch {
	case p.HasDirection() && hasConfidence:
		return 0.9
	case hasConfidence:
		return 0.6
	default:
		return 0.3
	}
}

func hasConfidence(p models.PredictionInput) bool {
	return p.Confidence > 0
}

func schemaValidity(p models.PredictionInput) float64 {
	if p.ID == "" || p.MatchID == "" || p.RunID == "" || p.UserID == "" {
		return 0.2
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return 0.4
	}
	return 0.85
}

// freshness scores the age of the source data. Without a fetch timestamp it falls back to
// the presence of the prediction's modelVersion; the registry's version does not count.
func (a *Assessor) freshness(p models.PredictionInput) float64 {
	if p.DataFetchedAt != nil && a.cfg.MaxDataAge > 0 {
		age := a.now().Sub(*p.DataFetchedAt)
		half := a.cfg.MaxDataAge / 2
		switch {
		case age <= half:
			return 0.9
		case age <= a.cfg.MaxDataAge:
			// linear 0.9 -> 0.5 over the second half of the window
			frac := float64(age-half) / float64(a.cfg.MaxDataAge-half)
			return 0.9 - 0.4*frac
		default:
			return 0.2
		}
	}
	if p.ModelVersion != "" {
		return 0.9
	}
	return 0.5
}

func completeness(p models.PredictionInput) float64 {
	present := 0
	for _, ok := range []bool{
		p.ID != "",
		p.MatchID != "",
		p.RunID != "",
		p.UserID != "",
		hasConfidence(p),
		p.PredictedWinner != nil && *p.PredictedWinner != "",
		p.ModelVersion != "",
		p.Edge != nil,
	} {
		if ok {
			present++
		}
	}
	return float64(present) / trackedFields
}
