// Package trace generates the correlation ids that pair a logged request with
// its logged response, and carries them through a context.
package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	// correlationIDKey is the context key for correlation id values
	correlationIDKey contextKey = "correlation_id"
	// HeaderXRequestID is the header carrying the correlation id on the wire
	HeaderXRequestID = "X-Request-ID"
)

// NewCorrelationID returns a fresh random (v4) uuid string.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID adds a correlation id to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation id from context if present
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureCorrelationID returns an existing correlation id from context or generates a new one
func EnsureCorrelationID(ctx context.Context) string {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return id
	}
	return NewCorrelationID()
}

// ShortID returns the first block of a uuid-shaped id, handy for compact log
// prefixes. Ids without a dash are returned unchanged.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
