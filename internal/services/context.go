package services

import "context"

type contextKey string

const (
	mediaIDKey   contextKey = "media_id"
	unitKey      contextKey = "unit"
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
)

// WithMediaID annotates context with the media identifier under analysis.
func WithMediaID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, mediaIDKey, id)
}

// MediaIDFromContext extracts the media identifier if present.
func MediaIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(mediaIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithUnit annotates context with the processing unit name.
func WithUnit(ctx context.Context, unit string) context.Context {
	if unit == "" {
		return ctx
	}
	return context.WithValue(ctx, unitKey, unit)
}

// UnitFromContext returns the unit name if present.
func UnitFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(unitKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the per-invocation run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
