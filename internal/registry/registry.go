package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/Alias1177/PickGate/models"
)

// ErrModelNotFound is returned when the registry has no model with the requested id
var ErrModelNotFound = errors.New("model not found")

// Registry resolves model ids to model descriptions
type Registry interface {
	Lookup(ctx context.Context, modelID string) (*models.ModelInfo, error)
}

// Static is an in-memory registry
type Static struct {
	mu     sync.RWMutex
	models map[string]models.ModelInfo
}

// NewStatic creates a registry holding the given models
func NewStatic(list ...models.ModelInfo) *Static {
	s := &Static{models: make(map[string]models.ModelInfo, len(list))}
	for _, m := range list {
		s.models[m.ID] = m
	}
	return s
}

// Put adds or replaces a model
func (s *Static) Put(m models.ModelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = m
}

// Lookup implements Registry
func (s *Static) Lookup(ctx context.Context, modelID string) (*models.ModelInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[modelID]
	if !ok {
		return nil, ErrModelNotFound
	}
	return &m, nil
}
