package unit

import (
	"context"
	"log/slog"
)

// Handler is the dispatch-table entry for one unit. Execute receives only the
// outputs named by Requires (and Uses, when implemented) through in.
type Handler interface {
	Name() Name
	Requires() []Name
	Execute(ctx context.Context, in Inputs) (any, error)
}

// SoftDependent is implemented by handlers that read optional upstream
// outputs. Used names order execution like Requires, but their absence or
// failure does not skip the unit.
type SoftDependent interface {
	Uses() []Name
}

// ReadinessChecker is implemented by handlers whose eligibility depends on the
// supplied data (for example frames for the vision unit). A non-nil error
// skips the unit with the error text as reason.
type ReadinessChecker interface {
	Ready(in Inputs) error
}

// LoggerAware is implemented by handlers that accept a run-scoped logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// HealthChecker is implemented by handlers that can report collaborator health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Health summarizes the readiness of a unit's collaborators.
type Health struct {
	Name   Name
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name Name) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name Name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Prerequisites returns Requires followed by Uses without duplicates.
func Prerequisites(h Handler) []Name {
	seen := make(map[Name]struct{})
	var out []Name
	add := func(names []Name) {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	add(h.Requires())
	if soft, ok := h.(SoftDependent); ok {
		add(soft.Uses())
	}
	return out
}
