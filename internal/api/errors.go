package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/Alias1177/PickGate/models"
	"github.com/rs/zerolog/log"
)

// errorBody is the single error shape of the API
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	TraceID   string `json:"traceId"`
	Timestamp string `json:"timestamp"`
}

// errorFor maps an engine error to its public code
func errorFor(err error) errorBody {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return errorBody{Code: models.CodeValidationError, Message: "prediction failed validation", Details: verr.Fields}
	}
	return errorBody{Code: models.CodeInternalError, Message: "evaluation failed"}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string, details any) {
	writeJSON(w, status, errorBody{
		Code:      code,
		Message:   msg,
		Details:   details,
		TraceID:   trace.FromContext(r.Context()),
		Timestamp: models.FormatTimestamp(models.NowUTC()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
