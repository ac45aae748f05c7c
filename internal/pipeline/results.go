package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"sentinel/internal/unit"
)

var (
	// ErrAlreadyRecorded is returned when a slot is written twice in one run.
	ErrAlreadyRecorded = errors.New("output already recorded")
	// ErrUnknownSlot is returned when writing a unit the run did not declare.
	ErrUnknownSlot = errors.New("unknown unit slot")
)

// State is the lifecycle of one orchestration run.
type State int

const (
	NotStarted State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is the settled state of one unit slot.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

type slot struct {
	output     *unit.Output
	skipReason string
	skipped    bool
	settled    chan struct{}
}

// Results is the per-run store of unit outputs: one write-once slot per
// declared unit. It is safe for concurrent use.
type Results struct {
	mu      sync.RWMutex
	mediaID string
	order   []unit.Name
	slots   map[unit.Name]*slot
	state   State
}

func newResults(mediaID string, names []unit.Name) *Results {
	r := &Results{
		mediaID: mediaID,
		order:   slices.Clone(names),
		slots:   make(map[unit.Name]*slot, len(names)),
	}
	for _, n := range names {
		r.slots[n] = &slot{settled: make(chan struct{})}
	}
	return r
}

// MediaID returns the media identifier the run analysed.
func (r *Results) MediaID() string { return r.mediaID }

// Names returns the declared slots in execution order.
func (r *Results) Names() []unit.Name { return slices.Clone(r.order) }

// State returns the run state.
func (r *Results) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Results) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Results) record(out *unit.Output) error {
	if out == nil {
		return fmt.Errorf("record: nil output")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[out.Unit]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, out.Unit)
	}
	if s.output != nil || s.skipped {
		return fmt.Errorf("%w: %s", ErrAlreadyRecorded, out.Unit)
	}
	s.output = out
	close(s.settled)
	return nil
}

func (r *Results) skip(name unit.Name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, name)
	}
	if s.output != nil || s.skipped {
		return fmt.Errorf("%w: %s", ErrAlreadyRecorded, name)
	}
	s.skipped = true
	s.skipReason = reason
	close(s.settled)
	return nil
}

// wait blocks until name has been recorded or skipped.
func (r *Results) wait(ctx context.Context, name unit.Name) error {
	r.mu.RLock()
	s, ok := r.slots[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, name)
	}
	select {
	case <-s.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the output recorded for name, successful or not.
func (r *Results) Get(name unit.Name) (*unit.Output, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	if !ok || s.output == nil {
		return nil, false
	}
	return s.output, true
}

// Succeeded reports whether name produced a successful output.
func (r *Results) Succeeded(name unit.Name) bool {
	out, ok := r.Get(name)
	return ok && out.Success
}

// Skipped reports whether name was never invoked, with the reason.
func (r *Results) Skipped(name unit.Name) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	if !ok || !s.skipped {
		return "", false
	}
	return s.skipReason, true
}

// Status returns the settled state of name.
func (r *Results) Status(name unit.Name) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	switch {
	case !ok:
		return StatusPending
	case s.skipped:
		return StatusSkipped
	case s.output == nil:
		return StatusPending
	case s.output.Success:
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

// Outputs returns every recorded output in execution order.
func (r *Results) Outputs() []*unit.Output {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*unit.Output, 0, len(r.order))
	for _, n := range r.order {
		if o := r.slots[n].output; o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Lookup adapts the store to unit.Lookup.
func (r *Results) Lookup() unit.Lookup {
	return r.Get
}

// Summary counts slot states.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Pending   int
}

// Summary counts slot states across the run.
func (r *Results) Summary() Summary {
	var s Summary
	for _, n := range r.order {
		switch r.Status(n) {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	return s
}
