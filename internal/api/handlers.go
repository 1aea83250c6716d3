package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Alias1177/PickGate/internal/database"
	"github.com/Alias1177/PickGate/internal/engine"
	"github.com/Alias1177/PickGate/internal/governance"
	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/Alias1177/PickGate/models"
	"github.com/go-chi/chi/v5"
)

const maxBatchSize = 500

type evaluateRequest struct {
	Prediction         models.PredictionInput    `json:"prediction"`
	Context            *models.RunContext        `json:"context,omitempty"`
	DataQualityFlagged bool                      `json:"dataQualityFlagged,omitempty"`
	Profile            *governance.ProfileConfig `json:"profile,omitempty"`
}

type meta struct {
	TraceID          string  `json:"traceId"`
	Timestamp        string  `json:"timestamp"`
	ProcessingTimeMs float64 `json:"processingTimeMs"`
}

type evaluateResponse struct {
	DecisionID        string                  `json:"decisionId"`
	Status            models.DecisionStatus   `json:"status"`
	Rationale         string                  `json:"rationale"`
	NoBetReason       string                  `json:"noBetReason,omitempty"`
	HardStopReason    string                  `json:"hardStopReason,omitempty"`
	GateOutcomes      []models.GateOutcome    `json:"gateOutcomes"`
	RecommendedAction string                  `json:"recommendedAction,omitempty"`
	FallbackContext   *models.FallbackContext `json:"fallbackContext,omitempty"`
	Meta              meta                    `json:"meta"`
}

type batchEntry struct {
	Decision *evaluateResponse `json:"decision,omitempty"`
	Error    *errorBody        `json:"error,omitempty"`
}

type sanitizeResponse struct {
	Sanitized governance.ProfileConfig    `json:"sanitized"`
	Original  governance.ValidationResult `json:"originalValidation"`
	TraceID   string                      `json:"traceId"`
	Timestamp string                      `json:"timestamp"`
}

type boundariesResponse struct {
	Boundaries []governance.Boundary    `json:"boundaries"`
	Active     governance.ProfileConfig `json:"active"`
}

type validateResponse struct {
	governance.ValidationResult
	TraceID   string `json:"traceId"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"traceId":   trace.FromContext(r.Context()),
		"timestamp": models.FormatTimestamp(models.NowUTC()),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, models.CodeValidationError, err.Error(), nil)
		return
	}

	eng, ok := s.engineFor(w, r, req.Profile)
	if !ok {
		return
	}

	res, err := eng.Evaluate(r.Context(), engine.EvaluateRequest{
		Prediction:         req.Prediction,
		Context:            req.Context,
		DataQualityFlagged: req.DataQualityFlagged,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []evaluateRequest        `json:"requests"`
		Profile  *governance.ProfileConfig `json:"profile,omitempty"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, models.CodeValidationError, err.Error(), nil)
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > maxBatchSize {
		writeError(w, r, http.StatusBadRequest, models.CodeValidationError,
			fmt.Sprintf("batch must hold between 1 and %d requests", maxBatchSize), nil)
		return
	}

	eng, ok := s.engineFor(w, r, body.Profile)
	if !ok {
		return
	}

	reqs := make([]engine.EvaluateRequest, len(body.Requests))
	for i, br := range body.Requests {
		reqs[i] = engine.EvaluateRequest{Prediction: br.Prediction, Context: br.Context, DataQualityFlagged: br.DataQualityFlagged}
	}
	items, err := eng.EvaluateBatch(r.Context(), reqs)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, models.CodeInternalError, err.Error(), nil)
		return
	}

	out := make([]batchEntry, len(items))
	for i, it := range items {
		if it.Err != nil {
			eb := errorFor(it.Err)
			eb.TraceID = trace.FromContext(r.Context())
			eb.Timestamp = models.FormatTimestamp(models.NowUTC())
			out[i].Error = &eb
			continue
		}
		resp := toResponse(it.Result)
		out[i].Decision = &resp
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, r, http.StatusNotFound, models.CodeNotFound, "decision lookup is disabled", nil)
		return
	}
	rec, err := s.store.GetDecision(r.Context(), chi.URLParam(r, "decisionID"))
	if errors.Is(err, database.ErrDecisionNotFound) {
		writeError(w, r, http.StatusNotFound, models.CodeNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("trace_id", trace.FromContext(r.Context())).Msg("Decision lookup failed")
		writeError(w, r, http.StatusInternalServerError, models.CodeInternalError, "decision lookup failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleValidateProfile(w http.ResponseWriter, r *http.Request) {
	var cfg governance.ProfileConfig
	if err := decode(r, &cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, models.CodeValidationError, err.Error(), nil)
		return
	}
	res := governance.ValidateProfileConfig(cfg)
	if !res.Valid {
		writeError(w, r, http.StatusUnprocessableEntity, models.CodeGovernanceViolation,
			"profile crosses a platform hard-stop boundary", res)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		ValidationResult: res,
		TraceID:          trace.FromContext(r.Context()),
		Timestamp:        models.FormatTimestamp(models.NowUTC()),
	})
}

func (s *Server) handleSanitizeProfile(w http.ResponseWriter, r *http.Request) {
	var cfg governance.ProfileConfig
	if err := decode(r, &cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, models.CodeValidationError, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, sanitizeResponse{
		Sanitized: governance.SanitizeConfig(cfg),
		Original:  governance.ValidateProfileConfig(cfg),
		TraceID:   trace.FromContext(r.Context()),
		Timestamp: models.FormatTimestamp(models.NowUTC()),
	})
}

func (s *Server) handleBoundaries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, boundariesResponse{
		Boundaries: governance.HardStopBoundaries(),
		Active:     governance.ProfileOf(s.engine.Evaluator().Thresholds()),
	})
}

// engineFor applies a caller profile through governance. On violation it writes a 422.
func (s *Server) engineFor(w http.ResponseWriter, r *http.Request, p *governance.ProfileConfig) (*engine.Engine, bool) {
	if p == nil {
		return s.engine, true
	}
	t, err := governance.ApplyProfile(s.engine.Evaluator().Thresholds(), *p)
	var v *governance.Violation
	if errors.As(err, &v) {
		writeError(w, r, http.StatusUnprocessableEntity, models.CodeGovernanceViolation, "profile crosses a platform hard-stop boundary", v.Result)
		return nil, false
	}
	return s.engine.WithThresholds(t), true
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	eb := errorFor(err)
	status := http.StatusInternalServerError
	if eb.Code == models.CodeValidationError {
		status = http.StatusBadRequest
	} else {
		s.logger.Error().Err(err).Str("trace_id", trace.FromContext(r.Context())).Msg("Evaluation failed")
	}
	writeError(w, r, status, eb.Code, eb.Message, eb.Details)
}

func toResponse(res *engine.EvaluateResult) evaluateResponse {
	return evaluateResponse{
		DecisionID:        res.DecisionID,
		Status:            res.Status,
		Rationale:         res.Rationale,
		NoBetReason:       res.NoBetReason,
		HardStopReason:    res.HardStopReason,
		GateOutcomes:      res.GateOutcomes,
		RecommendedAction: res.RecommendedAction,
		FallbackContext:   res.FallbackContext,
		Meta: meta{
			TraceID:          res.TraceID,
			Timestamp:        models.FormatTimestamp(res.Timestamp),
			ProcessingTimeMs: res.ProcessingTimeMs,
		},
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
