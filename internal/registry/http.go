package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	platformhttp "github.com/Alias1177/PickGate/internal/platform/http"
	"github.com/Alias1177/PickGate/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// modelsResponse is the body of GET /models on the ML service
type modelsResponse struct {
	AvailableModels []string `json:"available_models"`
}

// healthResponse is the body of GET /health on the ML service
type healthResponse struct {
	Status       string   `json:"status"`
	ModelsLoaded []string `json:"models_loaded"`
	Version      string   `json:"version"`
}

// HTTPRegistry resolves models against the prediction service.
// The model list is cached for CacheTTL.
type HTTPRegistry struct {
	baseURL  string
	client   *platformhttp.Client
	cacheTTL time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	cache     map[string]models.ModelInfo
	fetchedAt time.Time
	now       func() time.Time
}

// NewHTTPRegistry creates a registry backed by the ML service at baseURL
func NewHTTPRegistry(baseURL string, client *platformhttp.Client, cacheTTL time.Duration) *HTTPRegistry {
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}
	return &HTTPRegistry{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		cacheTTL: cacheTTL,
		logger:   log.With().Str("component", "model_registry").Logger(),
		now:      time.Now,
	}
}

// Lookup implements Registry. A stale cache is served when the refresh fails.
func (r *HTTPRegistry) Lookup(ctx context.Context, modelID string) (*models.ModelInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache == nil || r.now().Sub(r.fetchedAt) > r.cacheTTL {
		fresh, err := r.fetch(ctx)
		if err != nil {
			if r.cache == nil {
				return nil, fmt.Errorf("refreshing model registry: %w", err)
			}
			r.logger.Warn().Err(err).Msg("Model registry refresh failed, serving cached list")
		} else {
			r.cache = fresh
			r.fetchedAt = r.now()
		}
	}

	m, ok := r.cache[modelID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return &m, nil
}

func (r *HTTPRegistry) fetch(ctx context.Context) (map[string]models.ModelInfo, error) {
	var list modelsResponse
	if err := r.getJSON(ctx, "/models", &list); err != nil {
		return nil, err
	}
	var health healthResponse
	if err := r.getJSON(ctx, "/health", &health); err != nil {
		return nil, err
	}

	healthy := health.Status == "healthy"
	loaded := make(map[string]bool, len(health.ModelsLoaded))
	for _, id := range health.ModelsLoaded {
		loaded[id] = true
	}

	now := r.now().UTC()
	out := make(map[string]models.ModelInfo, len(list.AvailableModels))
	for _, id := range list.AvailableModels {
		info := models.ModelInfo{
			ID:        id,
			Version:   health.Version,
			Validated: healthy && loaded[id],
		}
		if info.Validated {
			info.LastValidatedAt = now
		}
		out[id] = info
	}

	r.logger.Debug().Int("count", len(out)).Str("version", health.Version).Msg("Fetched model registry")
	return out, nil
}

func (r *HTTPRegistry) getJSON(ctx context.Context, path string, dst any) error {
	if err := r.client.GetJSON(ctx, r.baseURL+path, dst); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}
