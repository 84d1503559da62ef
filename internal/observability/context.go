package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	runIDKey  contextKey = "run_id"
	unitKey   contextKey = "unit"
	sourceKey contextKey = "source"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the run ID from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithUnit adds the unit of work and source to the context.
func WithUnit(ctx context.Context, unit, source string) context.Context {
	ctx = context.WithValue(ctx, unitKey, unit)
	ctx = context.WithValue(ctx, sourceKey, source)
	return ctx
}

// UnitFromContext retrieves the unit of work and source from context.
// Returns empty strings if not present.
func UnitFromContext(ctx context.Context) (unit, source string) {
	if v := ctx.Value(unitKey); v != nil {
		if u, ok := v.(string); ok {
			unit = u
		}
	}
	if v := ctx.Value(sourceKey); v != nil {
		if s, ok := v.(string); ok {
			source = s
		}
	}
	return unit, source
}
