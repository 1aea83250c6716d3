// Package api exposes the decision engine and the profile validator over HTTP.
// It is transport only: every decision is made by the engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Alias1177/PickGate/internal/engine"
	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/Alias1177/PickGate/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// DecisionStore looks recorded decisions up by id
type DecisionStore interface {
	GetDecision(ctx context.Context, decisionID string) (*models.DecisionRecord, error)
}

// Server holds the HTTP handlers
type Server struct {
	engine *engine.Engine
	store  DecisionStore
	logger zerolog.Logger
}

// NewServer creates the handlers. store may be nil, which disables decision lookup.
func NewServer(e *engine.Engine, store DecisionStore) *Server {
	return &Server{
		engine: e,
		store:  store,
		logger: log.With().Str("component", "http_api").Logger(),
	}
}

// Router builds the chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)
	r.Use(s.logMiddleware)
	r.Use(limitBody)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/decisions/evaluate", s.handleEvaluate)
		r.Post("/decisions/evaluate-batch", s.handleEvaluateBatch)
		r.Get("/decisions/{decisionID}", s.handleGetDecision)
		r.Post("/profiles/validate", s.handleValidateProfile)
		r.Post("/profiles/sanitize", s.handleSanitizeProfile)
		r.Get("/profiles/boundaries", s.handleBoundaries)
	})
	return r
}

// NewHTTPServer wraps the router with the timeouts used in production
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// traceMiddleware adopts the caller's X-Trace-Id or generates one and echoes it back
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(trace.HeaderName)
		if id == "" {
			id = trace.NewID()
		}
		w.Header().Set(trace.HeaderName, id)
		next.ServeHTTP(w, r.WithContext(trace.WithID(r.Context(), id)))
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("trace_id", trace.FromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
