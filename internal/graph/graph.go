// Package graph declares processing units and their prerequisites and derives
// a deterministic execution order.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"sentinel/internal/services"
	"sentinel/internal/unit"
)

// ErrCycle marks dependency cycles found during linearization.
var ErrCycle = errors.New("dependency cycle")

// ConfigurationError reports a malformed graph declaration.
type ConfigurationError struct {
	Unit   unit.Name
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Unit == "" {
		return "graph configuration: " + e.Reason
	}
	return fmt.Sprintf("graph configuration: %s: %s", e.Unit, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return services.ErrConfiguration }

// CycleError reports a dependency cycle. Path starts and ends with the same
// unit, e.g. [a b a].
type CycleError struct {
	Path []unit.Name
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, n := range e.Path {
		parts[i] = string(n)
	}
	return "dependency cycle: " + strings.Join(parts, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCycle }

type node struct {
	name          unit.Name
	prerequisites []unit.Name
}

// Graph is a static set of units and their prerequisites. It is built once and
// read-only afterwards; it is not safe for concurrent Declare calls.
type Graph struct {
	nodes map[unit.Name]*node
	order []unit.Name
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[unit.Name]*node)}
}

// Declare registers name with its prerequisites. Prerequisites may reference
// units declared later; dangling references are reported by Validate and
// Linearize.
func (g *Graph) Declare(name unit.Name, prerequisites ...unit.Name) error {
	if strings.TrimSpace(string(name)) == "" {
		return &ConfigurationError{Reason: "unit name is empty"}
	}
	if _, exists := g.nodes[name]; exists {
		return &ConfigurationError{Unit: name, Reason: "declared more than once"}
	}
	deps := make([]unit.Name, 0, len(prerequisites))
	for _, p := range prerequisites {
		if p == name {
			return &CycleError{Path: []unit.Name{name, name}}
		}
		if !slices.Contains(deps, p) {
			deps = append(deps, p)
		}
	}
	g.nodes[name] = &node{name: name, prerequisites: deps}
	g.order = append(g.order, name)
	return nil
}

// Names returns every declared unit in declaration order.
func (g *Graph) Names() []unit.Name {
	return slices.Clone(g.order)
}

// Has reports whether name is declared.
func (g *Graph) Has(name unit.Name) bool {
	_, ok := g.nodes[name]
	return ok
}

// Prerequisites returns the direct prerequisites of name.
func (g *Graph) Prerequisites(name unit.Name) []unit.Name {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return slices.Clone(n.prerequisites)
}

// Dependents returns the units that list name as a direct prerequisite, in
// declaration order.
func (g *Graph) Dependents(name unit.Name) []unit.Name {
	var out []unit.Name
	for _, candidate := range g.order {
		if slices.Contains(g.nodes[candidate].prerequisites, name) {
			out = append(out, candidate)
		}
	}
	return out
}

// TransitivePrerequisites returns every unit reachable through prerequisite
// edges from name.
func (g *Graph) TransitivePrerequisites(name unit.Name) map[unit.Name]struct{} {
	seen := make(map[unit.Name]struct{})
	stack := g.Prerequisites(name)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		stack = append(stack, g.Prerequisites(next)...)
	}
	return seen
}

// Independent reports whether no dependency path connects a and b.
func (g *Graph) Independent(a, b unit.Name) bool {
	if a == b {
		return false
	}
	if _, ok := g.TransitivePrerequisites(a)[b]; ok {
		return false
	}
	_, ok := g.TransitivePrerequisites(b)[a]
	return !ok
}

// Validate reports the first undeclared prerequisite reference.
func (g *Graph) Validate() error {
	for _, name := range g.order {
		for _, p := range g.nodes[name].prerequisites {
			if _, ok := g.nodes[p]; !ok {
				return &ConfigurationError{Unit: name, Reason: fmt.Sprintf("prerequisite %q is not declared", p)}
			}
		}
	}
	return nil
}

type mark uint8

const (
	unvisited mark = iota
	inProgress
	done
)

// Linearize returns every declared unit ordered so each appears after all of
// its transitive prerequisites. Units without an ordering constraint keep
// declaration order.
func (g *Graph) Linearize() ([]unit.Name, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	marks := make(map[unit.Name]mark, len(g.nodes))
	order := make([]unit.Name, 0, len(g.nodes))
	var path []unit.Name

	var visit func(unit.Name) error
	visit = func(name unit.Name) error {
		switch marks[name] {
		case done:
			return nil
		case inProgress:
			start := slices.Index(path, name)
			cycle := append(slices.Clone(path[start:]), name)
			return &CycleError{Path: cycle}
		}
		marks[name] = inProgress
		path = append(path, name)
		for _, p := range g.nodes[name].prerequisites {
			if err := visit(p); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range g.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
