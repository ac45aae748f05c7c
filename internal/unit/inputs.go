package unit

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUndeclaredInput is returned when a unit reads an output it did not
	// declare as a prerequisite.
	ErrUndeclaredInput = errors.New("undeclared input")
	// ErrMissingInput is returned when a declared prerequisite has no
	// successful output in the current run.
	ErrMissingInput = errors.New("missing input")
)

// Source describes the externally supplied media for one analysis run.
type Source struct {
	MediaID         string
	MediaPath       string
	AudioPath       string
	Frames          []string
	DurationSeconds float64
}

// HasAudio reports whether an audio handle was supplied.
func (s Source) HasAudio() bool { return s.AudioPath != "" }

// HasFrames reports whether any visual frames were supplied.
func (s Source) HasFrames() bool { return len(s.Frames) > 0 }

// Lookup resolves a recorded output by unit name.
type Lookup func(Name) (*Output, bool)

// Inputs is the read-only view a unit receives. It exposes the run's Source
// and only those outputs the unit declared as prerequisites.
type Inputs struct {
	Source   Source
	declared []Name
	lookup   Lookup
}

// NewInputs builds an Inputs view restricted to the declared names.
func NewInputs(src Source, declared []Name, lookup Lookup) Inputs {
	return Inputs{Source: src, declared: slices.Clone(declared), lookup: lookup}
}

// Declared returns the prerequisite names visible through this view.
func (in Inputs) Declared() []Name {
	return slices.Clone(in.declared)
}

// Output returns the successful output recorded for name.
func (in Inputs) Output(name Name) (*Output, error) {
	if !slices.Contains(in.declared, name) {
		return nil, fmt.Errorf("%w: %s", ErrUndeclaredInput, name)
	}
	if in.lookup == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, name)
	}
	out, ok := in.lookup(name)
	if !ok || out.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, name)
	}
	return out, nil
}

// Has reports whether name is declared and succeeded in this run.
func (in Inputs) Has(name Name) bool {
	_, err := in.Output(name)
	return err == nil
}

// Input returns the typed result of a declared prerequisite.
func Input[T any](in Inputs, name Name) (T, error) {
	var zero T
	out, err := in.Output(name)
	if err != nil {
		return zero, err
	}
	v, ok := ResultAs[T](out)
	if !ok {
		return zero, fmt.Errorf("input %s: unexpected result type %T", name, out.Result)
	}
	return v, nil
}

// OptionalInput returns the typed result of a soft prerequisite, reporting
// false when it is unavailable. Use Input to surface contract violations.
func OptionalInput[T any](in Inputs, name Name) (T, bool) {
	v, err := Input[T](in, name)
	return v, err == nil
}
