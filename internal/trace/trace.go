package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// HeaderName carries the trace id on HTTP requests and responses
const HeaderName = "X-Trace-Id"

// NewID returns a fresh correlation id
func NewID() string {
	return uuid.NewString()
}

// WithID stores the trace id in ctx
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the trace id stored in ctx, or "" when absent
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
