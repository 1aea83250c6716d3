package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionStatus is the final verdict of one evaluation
type DecisionStatus string

const (
	StatusPick     DecisionStatus = "PICK"
	StatusNoBet    DecisionStatus = "NO_BET"
	StatusHardStop DecisionStatus = "HARD_STOP"
)

// No-bet reasons
const (
	NoBetReasonLowConfidence       = "low_confidence"
	NoBetReasonInsufficientEdge    = "insufficient_edge"
	NoBetReasonModelDrift          = "model_drift"
	NoBetReasonDegradedDataQuality = "degraded_data_quality"
)

// Gate names, in evaluation order
const (
	GateConfidence = "confidence"
	GateEdge       = "edge"
	GateDrift      = "drift"
	GateHardStop   = "hard_stop"
)

// PredictionInput describes one ML prediction as produced by the upstream model layer.
// Optional signals are pointers; nil means the model did not emit them.
type PredictionInput struct {
	ID                 string     `json:"id"`
	MatchID            string     `json:"matchId"`
	RunID              string     `json:"runId"`
	UserID             string     `json:"userId"`
	Confidence         float64    `json:"confidence"`
	Edge               *float64   `json:"edge,omitempty"`
	DriftScore         *float64   `json:"driftScore,omitempty"`
	PredictedWinner    *string    `json:"predictedWinner,omitempty"` // HOME, AWAY
	PredictedHomeScore *int       `json:"predictedHomeScore,omitempty"`
	PredictedAwayScore *int       `json:"predictedAwayScore,omitempty"`
	PredictedOverUnder *float64   `json:"predictedOverUnder,omitempty"`
	ModelVersion       string     `json:"modelVersion"`
	DataFetchedAt      *time.Time `json:"dataFetchedAt,omitempty"` // when the source data behind the prediction was fetched
}

// HasDirection reports whether the prediction carries a directional call
func (p PredictionInput) HasDirection() bool {
	if p.PredictedWinner != nil && *p.PredictedWinner != "" {
		return true
	}
	return p.PredictedHomeScore != nil && p.PredictedAwayScore != nil
}

// RunContext is the per-run risk snapshot supplied by the hard-stop tracker.
// The core reads it and never mutates it.
type RunContext struct {
	RunID             string          `json:"runId"`
	TraceID           string          `json:"traceId"`
	DailyLoss         decimal.Decimal `json:"dailyLoss"`
	ConsecutiveLosses int             `json:"consecutiveLosses"`
	CurrentBankroll   decimal.Decimal `json:"currentBankroll"`
	ExecutedAt        time.Time       `json:"executedAt"`
}

// GateOutcome is the result of one independent gate
type GateOutcome struct {
	GateName  string  `json:"gateName"`
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason"`
}

// PolicyDecision is the immutable output of the gate evaluator
type PolicyDecision struct {
	DecisionID        string         `json:"decisionId"`
	Status            DecisionStatus `json:"status"`
	Rationale         string         `json:"rationale"`
	NoBetReason       string         `json:"noBetReason,omitempty"`
	HardStopReason    string         `json:"hardStopReason,omitempty"`
	RecommendedAction string         `json:"recommendedAction,omitempty"`
	GateOutcomes      []GateOutcome  `json:"gateOutcomes"`
	TraceID           string         `json:"traceId"`
	ExecutedAt        time.Time      `json:"executedAt"`
}

// FallbackAttempt records one level tried by the fallback chain
type FallbackAttempt struct {
	Level        string  `json:"level"`
	ModelID      string  `json:"modelId,omitempty"`
	QualityScore float64 `json:"qualityScore"`
	Passed       bool    `json:"passed"`
	Reason       string  `json:"reason,omitempty"`
}

// FallbackContext describes how the fallback chain reached its decision
type FallbackContext struct {
	FinalLevel     string            `json:"finalLevel"`
	QualityScore   float64           `json:"qualityScore"`
	Attempts       []FallbackAttempt `json:"attempts"`
	WasForcedNoBet bool              `json:"wasForcedNoBet"`
}

// FallbackDecision is a PolicyDecision produced by the fallback chain
type FallbackDecision struct {
	PolicyDecision
	FallbackContext FallbackContext `json:"fallbackContext"`
}

// DataQualityAssessment is the per (prediction, model) quality verdict.
// It is consumed by the fallback chain and never persisted on its own.
type DataQualityAssessment struct {
	SourceAvailability float64  `json:"sourceAvailability"`
	SchemaValidity     float64  `json:"schemaValidity"`
	Freshness          float64  `json:"freshness"`
	Completeness       float64  `json:"completeness"`
	OverallScore       float64  `json:"overallScore"`
	Passed             bool     `json:"passed"`
	FailedChecks       []string `json:"failedChecks"`
}

// ModelInfo describes a model known to the registry
type ModelInfo struct {
	ID              string    `json:"id"`
	Version         string    `json:"version"`
	Validated       bool      `json:"validated"`
	LastValidatedAt time.Time `json:"lastValidatedAt,omitempty"`
}

// DecisionRecord is the persisted form of one engine evaluation
type DecisionRecord struct {
	DecisionID        string           `json:"decisionId"`
	PredictionID      string           `json:"predictionId"`
	MatchID           string           `json:"matchId"`
	RunID             string           `json:"runId"`
	UserID            string           `json:"userId"`
	TraceID           string           `json:"traceId"`
	Status            DecisionStatus   `json:"status"`
	Rationale         string           `json:"rationale"`
	NoBetReason       string           `json:"noBetReason,omitempty"`
	HardStopReason    string           `json:"hardStopReason,omitempty"`
	RecommendedAction string           `json:"recommendedAction,omitempty"`
	GateOutcomes      []GateOutcome    `json:"gateOutcomes"`
	FallbackContext   *FallbackContext `json:"fallbackContext,omitempty"`
	ModelVersion      string           `json:"modelVersion"`
	ExecutedAt        time.Time        `json:"executedAt"`
	ProcessingTimeMs  float64          `json:"processingTimeMs"`
}
