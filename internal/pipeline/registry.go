package pipeline

import (
	"slices"

	"sentinel/internal/graph"
	"sentinel/internal/unit"
)

// Registry maps unit names to handlers. Registration order is the declaration
// order used to break ties between independent units.
type Registry struct {
	handlers map[unit.Name]unit.Handler
	order    []unit.Name
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[unit.Name]unit.Handler)}
}

// Register adds h under h.Name().
func (r *Registry) Register(h unit.Handler) error {
	if h == nil {
		return &graph.ConfigurationError{Reason: "nil handler"}
	}
	name := h.Name()
	if _, exists := r.handlers[name]; exists {
		return &graph.ConfigurationError{Unit: name, Reason: "handler registered more than once"}
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	return nil
}

// Handler returns the handler registered for name.
func (r *Registry) Handler(name unit.Name) (unit.Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns registered unit names in registration order.
func (r *Registry) Names() []unit.Name {
	return slices.Clone(r.order)
}

// Graph declares every registered handler with Requires ∪ Uses as its
// prerequisites.
func (r *Registry) Graph() (*graph.Graph, error) {
	g := graph.New()
	for _, name := range r.order {
		if err := g.Declare(name, unit.Prerequisites(r.handlers[name])...); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
