package logging

import (
	"context"
	"log/slog"

	"sentinel/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldMediaID is the standardized structured logging key for the media under analysis.
	FieldMediaID = "media_id"
	// FieldUnit is the standardized structured logging key for processing unit names.
	FieldUnit = "unit"
	// FieldRunID is the standardized structured logging key for per-invocation run identifiers.
	FieldRunID = "run_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (unit_start, unit_skip, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries a short operator-facing next step.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.MediaIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldMediaID, id))
	}
	if unit, ok := services.UnitFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUnit, unit))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
