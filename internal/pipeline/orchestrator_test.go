package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sentinel/internal/graph"
	"sentinel/internal/pipeline"
	"sentinel/internal/services"
	"sentinel/internal/unit"
)

type stubHandler struct {
	name     unit.Name
	requires []unit.Name
	uses     []unit.Name
	fn       func(ctx context.Context, in unit.Inputs) (any, error)
	ready    func(in unit.Inputs) error
	calls    atomic.Int32
}

func (s *stubHandler) Name() unit.Name       { return s.name }
func (s *stubHandler) Requires() []unit.Name { return s.requires }
func (s *stubHandler) Uses() []unit.Name     { return s.uses }

func (s *stubHandler) Ready(in unit.Inputs) error {
	if s.ready == nil {
		return nil
	}
	return s.ready(in)
}

func (s *stubHandler) Execute(ctx context.Context, in unit.Inputs) (any, error) {
	s.calls.Add(1)
	if s.fn == nil {
		return string(s.name) + "-result", nil
	}
	return s.fn(ctx, in)
}

// callLog records invocation order across goroutines.
type callLog struct {
	mu    sync.Mutex
	names []unit.Name
}

func (c *callLog) add(n unit.Name) {
	c.mu.Lock()
	c.names = append(c.names, n)
	c.mu.Unlock()
}

func (c *callLog) snapshot() []unit.Name {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.names)
}

func newRegistry(t *testing.T, handlers ...*stubHandler) *pipeline.Registry {
	t.Helper()
	reg := pipeline.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("register %s: %v", h.name, err)
		}
	}
	return reg
}

func newOrchestrator(t *testing.T, reg *pipeline.Registry, opts pipeline.Options) *pipeline.Orchestrator {
	t.Helper()
	orch, err := pipeline.New(reg, opts)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return orch
}

func recordingHandler(log *callLog, name unit.Name, requires ...unit.Name) *stubHandler {
	return &stubHandler{name: name, requires: requires, fn: func(context.Context, unit.Inputs) (any, error) {
		log.add(name)
		return string(name) + "-result", nil
	}}
}

func TestRunExecutesChainInOrder(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			log := &callLog{}
			reg := newRegistry(t,
				recordingHandler(log, "z", "y"),
				recordingHandler(log, "y", "x"),
				recordingHandler(log, "x"),
			)
			orch := newOrchestrator(t, reg, pipeline.Options{Concurrency: concurrency})

			results, err := orch.Run(context.Background(), unit.Source{MediaID: "m"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := log.snapshot(); !slices.Equal(got, []unit.Name{"x", "y", "z"}) {
				t.Fatalf("unexpected call order %v", got)
			}
			if results.State() != pipeline.Completed {
				t.Fatalf("expected completed state, got %s", results.State())
			}
			out, ok := results.Get("z")
			if !ok || !out.Success || out.MediaID != "m" {
				t.Fatalf("unexpected z output %+v", out)
			}
		})
	}
}

func TestDisabledUnitPropagatesSkip(t *testing.T) {
	x := &stubHandler{name: "x"}
	y := &stubHandler{name: "y", requires: []unit.Name{"x"}}
	z := &stubHandler{name: "z", requires: []unit.Name{"y"}}
	orch := newOrchestrator(t, newRegistry(t, x, y, z), pipeline.Options{Enabled: map[unit.Name]bool{"y": false}})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if y.calls.Load() != 0 || z.calls.Load() != 0 {
		t.Fatalf("expected y and z never invoked, got %d and %d", y.calls.Load(), z.calls.Load())
	}
	if reason, ok := results.Skipped("y"); !ok || reason != "disabled by configuration" {
		t.Fatalf("unexpected y skip: %q %v", reason, ok)
	}
	if reason, ok := results.Skipped("z"); !ok || reason != "prerequisite y was skipped" {
		t.Fatalf("unexpected z skip: %q %v", reason, ok)
	}
	if _, ok := results.Get("z"); ok {
		t.Fatal("skipped unit must not have an output")
	}
}

func TestFailureIsContainedAndRunContinues(t *testing.T) {
	x := &stubHandler{name: "x"}
	y := &stubHandler{name: "y", requires: []unit.Name{"x"}, fn: func(context.Context, unit.Inputs) (any, error) {
		return nil, errors.New("model returned garbage")
	}}
	z := &stubHandler{name: "z", requires: []unit.Name{"y"}}
	w := &stubHandler{name: "w", requires: []unit.Name{"x"}}
	orch := newOrchestrator(t, newRegistry(t, x, y, z, w), pipeline.Options{})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out, ok := results.Get("y")
	if !ok || out.Success || out.Error == "" {
		t.Fatalf("expected failed y output, got %+v", out)
	}
	if z.calls.Load() != 0 {
		t.Fatal("dependent of failed unit must not run")
	}
	if reason, _ := results.Skipped("z"); reason != "prerequisite y failed" {
		t.Fatalf("unexpected z skip reason %q", reason)
	}
	if !results.Succeeded("w") {
		t.Fatal("independent unit should still run")
	}
	summary := results.Summary()
	if summary.Succeeded != 2 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSoftDependencyDoesNotSkip(t *testing.T) {
	audio := &stubHandler{name: unit.Audio}
	emotion := &stubHandler{name: unit.Emotion, requires: []unit.Name{unit.Audio}}
	var sawEmotion atomic.Bool
	reasoning := &stubHandler{
		name:     unit.Reasoning,
		requires: []unit.Name{unit.Audio},
		uses:     []unit.Name{unit.Emotion},
		fn: func(_ context.Context, in unit.Inputs) (any, error) {
			sawEmotion.Store(in.Has(unit.Emotion))
			return "summary", nil
		},
	}
	orch := newOrchestrator(t, newRegistry(t, audio, emotion, reasoning), pipeline.Options{
		Enabled: map[unit.Name]bool{unit.Emotion: false},
	})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !results.Succeeded(unit.Reasoning) {
		t.Fatal("reasoning should run without optional emotion input")
	}
	if sawEmotion.Load() {
		t.Fatal("reasoning must not see a disabled unit's output")
	}
}

func TestUndeclaredReadFailsTheReader(t *testing.T) {
	x := &stubHandler{name: "x"}
	y := &stubHandler{name: "y"}
	sneaky := &stubHandler{name: "sneaky", requires: []unit.Name{"x"}, uses: nil, fn: func(_ context.Context, in unit.Inputs) (any, error) {
		if _, err := in.Output("y"); err != nil {
			return nil, err
		}
		return "read y", nil
	}}
	orch := newOrchestrator(t, newRegistry(t, x, y, sneaky), pipeline.Options{})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out, _ := results.Get("sneaky")
	if out == nil || out.Success {
		t.Fatalf("expected contract violation to fail the unit, got %+v", out)
	}
}

func TestReadinessCheckSkipsUnit(t *testing.T) {
	video := &stubHandler{name: unit.Video, ready: func(in unit.Inputs) error {
		if !in.Source.HasFrames() {
			return errors.New("no frames supplied")
		}
		return nil
	}}
	orch := newOrchestrator(t, newRegistry(t, video), pipeline.Options{})

	results, err := orch.Run(context.Background(), unit.Source{AudioPath: "a.wav"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reason, ok := results.Skipped(unit.Video); !ok || reason != "no frames supplied" {
		t.Fatalf("unexpected skip %q %v", reason, ok)
	}

	results, err = orch.Run(context.Background(), unit.Source{Frames: []string{"f1.jpg"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !results.Succeeded(unit.Video) {
		t.Fatal("expected video to run with frames")
	}
}

func TestRateLimitAbortsSequentialRun(t *testing.T) {
	x := &stubHandler{name: "x"}
	y := &stubHandler{name: "y", requires: []unit.Name{"x"}, fn: func(context.Context, unit.Inputs) (any, error) {
		return nil, errors.New("upstream: 429 Too Many Requests")
	}}
	w := &stubHandler{name: "w"}
	orch := newOrchestrator(t, newRegistry(t, x, y, w), pipeline.Options{})

	results, err := orch.Run(context.Background(), unit.Source{})
	if results != nil {
		t.Fatalf("aborted run must not return results, got %+v", results)
	}
	var rl *pipeline.RateLimitedError
	if !errors.As(err, &rl) || rl.Unit != "y" {
		t.Fatalf("expected RateLimitedError from y, got %v", err)
	}
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited marker, got %v", err)
	}
	if w.calls.Load() != 0 {
		t.Fatal("units after the rate limit must not run")
	}
}

func TestRateLimitCancelsConcurrentUnits(t *testing.T) {
	blocker := &stubHandler{name: "slow", fn: func(ctx context.Context, _ unit.Inputs) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "finished", nil
		}
	}}
	limited := &stubHandler{name: "limited", fn: func(context.Context, unit.Inputs) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return nil, services.Wrap(services.ErrRateLimited, "llm", "complete", "quota", nil)
	}}
	after := &stubHandler{name: "after", requires: []unit.Name{"limited"}}
	orch := newOrchestrator(t, newRegistry(t, blocker, limited, after), pipeline.Options{Concurrency: 3})

	start := time.Now()
	results, err := orch.Run(context.Background(), unit.Source{})
	if results != nil {
		t.Fatal("expected nil results")
	}
	var rl *pipeline.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("rate limit did not cancel in-flight units")
	}
	if after.calls.Load() != 0 {
		t.Fatal("dependent must not run after rate limit")
	}
}

func TestIndependentUnitsOverlap(t *testing.T) {
	aStarted := make(chan struct{})
	bStarted := make(chan struct{})
	rendezvous := func(mine, theirs chan struct{}) func(context.Context, unit.Inputs) (any, error) {
		return func(context.Context, unit.Inputs) (any, error) {
			close(mine)
			select {
			case <-theirs:
				return "met", nil
			case <-time.After(2 * time.Second):
				return nil, errors.New("peer never started")
			}
		}
	}
	a := &stubHandler{name: unit.Audio, fn: rendezvous(aStarted, bStarted)}
	b := &stubHandler{name: unit.Video, fn: rendezvous(bStarted, aStarted)}
	orch := newOrchestrator(t, newRegistry(t, a, b), pipeline.Options{Concurrency: 2})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !results.Succeeded(unit.Audio) || !results.Succeeded(unit.Video) {
		t.Fatalf("expected both independent units to overlap, got %+v", results.Summary())
	}
}

func TestConcurrentRunWaitsForPrerequisites(t *testing.T) {
	parent := &stubHandler{name: "parent", fn: func(context.Context, unit.Inputs) (any, error) {
		time.Sleep(20 * time.Millisecond)
		return "parent-result", nil
	}}
	child := &stubHandler{name: "child", requires: []unit.Name{"parent"}, fn: func(_ context.Context, in unit.Inputs) (any, error) {
		v, err := unit.Input[string](in, "parent")
		if err != nil {
			return nil, err
		}
		return v + "+child", nil
	}}
	orch := newOrchestrator(t, newRegistry(t, child, parent), pipeline.Options{Concurrency: 4})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out, _ := results.Get("child")
	if got, _ := unit.ResultAs[string](out); got != "parent-result+child" {
		t.Fatalf("unexpected child result %q", got)
	}
}

func TestTimeoutIsContained(t *testing.T) {
	slow := &stubHandler{name: "slow", fn: func(ctx context.Context, _ unit.Inputs) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	dependent := &stubHandler{name: "dependent", requires: []unit.Name{"slow"}}
	orch := newOrchestrator(t, newRegistry(t, slow, dependent), pipeline.Options{Timeout: 20 * time.Millisecond})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("timeout must not abort the run: %v", err)
	}
	out, _ := results.Get("slow")
	if out == nil || out.Error != unit.TimeoutMessage {
		t.Fatalf("expected timeout output, got %+v", out)
	}
	if _, skipped := results.Skipped("dependent"); !skipped {
		t.Fatal("expected dependent of timed-out unit to be skipped")
	}
}

func TestObserversReceiveSuccessesAndCannotAbort(t *testing.T) {
	var mu sync.Mutex
	var seen []unit.Name
	recorder := pipeline.ObserverFunc(func(_ context.Context, out *unit.Output) error {
		mu.Lock()
		seen = append(seen, out.Unit)
		mu.Unlock()
		return nil
	})
	failing := pipeline.ObserverFunc(func(context.Context, *unit.Output) error {
		return errors.New("index unavailable")
	})
	panicking := pipeline.ObserverFunc(func(context.Context, *unit.Output) error {
		panic("observer bug")
	})

	ok := &stubHandler{name: "ok"}
	bad := &stubHandler{name: "bad", fn: func(context.Context, unit.Inputs) (any, error) {
		return nil, errors.New("boom")
	}}
	orch := newOrchestrator(t, newRegistry(t, ok, bad), pipeline.Options{
		Observers: []pipeline.Observer{failing, recorder, panicking},
	})

	results, err := orch.Run(context.Background(), unit.Source{})
	if err != nil {
		t.Fatalf("observer failure must not abort: %v", err)
	}
	if !results.Succeeded("ok") {
		t.Fatal("expected ok to succeed")
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(seen, []unit.Name{"ok"}) {
		t.Fatalf("expected only successful outputs observed, got %v", seen)
	}
}

type countingListener struct {
	mu       sync.Mutex
	finished map[unit.Name]bool
	skipped  map[unit.Name]string
}

func (l *countingListener) UnitSkipped(_ string, name unit.Name, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.skipped[name] = reason
}

func (l *countingListener) UnitFinished(out *unit.Output) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished[out.Unit] = out.Success
}

func TestListenersSeeEverySettledSlot(t *testing.T) {
	l := &countingListener{finished: map[unit.Name]bool{}, skipped: map[unit.Name]string{}}
	orch := newOrchestrator(t, newRegistry(t,
		&stubHandler{name: "a"},
		&stubHandler{name: "b", requires: []unit.Name{"a"}},
	), pipeline.Options{Enabled: map[unit.Name]bool{"b": false}, Listeners: []pipeline.Listener{l}})

	if _, err := orch.Run(context.Background(), unit.Source{MediaID: "m"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !l.finished["a"] {
		t.Fatalf("expected a finished, got %v", l.finished)
	}
	if l.skipped["b"] == "" {
		t.Fatalf("expected b skipped, got %v", l.skipped)
	}
}

func TestRunsAreDeterministic(t *testing.T) {
	build := func() *pipeline.Orchestrator {
		return newOrchestrator(t, newRegistry(t,
			&stubHandler{name: unit.Audio},
			&stubHandler{name: unit.Emotion, requires: []unit.Name{unit.Audio}, fn: func(context.Context, unit.Inputs) (any, error) {
				return nil, errors.New("flaky model")
			}},
			&stubHandler{name: unit.Tagging, requires: []unit.Name{unit.Audio}},
			&stubHandler{name: unit.Video},
			&stubHandler{name: unit.Reasoning, requires: []unit.Name{unit.Audio, unit.Tagging}, uses: []unit.Name{unit.Emotion, unit.Video}},
			&stubHandler{name: unit.Risk, requires: []unit.Name{unit.Audio, unit.Tagging}, uses: []unit.Name{unit.Reasoning}},
		), pipeline.Options{Concurrency: 3, Enabled: map[unit.Name]bool{unit.Video: false}})
	}
	first, err := build().Run(context.Background(), unit.Source{MediaID: "m"})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := build().Run(context.Background(), unit.Source{MediaID: "m"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, name := range first.Names() {
		if first.Status(name) != second.Status(name) {
			t.Fatalf("%s: status %s vs %s", name, first.Status(name), second.Status(name))
		}
		a, _ := first.Get(name)
		b, _ := second.Get(name)
		if (a == nil) != (b == nil) {
			t.Fatalf("%s: output presence differs", name)
		}
		if a != nil && (a.Result != b.Result || a.Error != b.Error) {
			t.Fatalf("%s: outputs differ: %+v vs %+v", name, a, b)
		}
		if a != nil && a.Metadata.RunID == b.Metadata.RunID {
			t.Fatalf("%s: run ids should differ per invocation", name)
		}
	}
}

func TestNewRejectsMalformedGraphs(t *testing.T) {
	_, err := pipeline.New(newRegistry(t, &stubHandler{name: "a", requires: []unit.Name{"ghost"}}), pipeline.Options{})
	var cfgErr *graph.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	_, err = pipeline.New(newRegistry(t,
		&stubHandler{name: "a", requires: []unit.Name{"b"}},
		&stubHandler{name: "b", requires: []unit.Name{"a"}},
	), pipeline.Options{})
	if !errors.Is(err, graph.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}

	reg := pipeline.NewRegistry()
	if err := reg.Register(&stubHandler{name: "a"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(&stubHandler{name: "a"}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func TestCallerCancellationAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubHandler{name: "first", fn: func(context.Context, unit.Inputs) (any, error) {
		cancel()
		return "done", nil
	}}
	second := &stubHandler{name: "second"}
	orch := newOrchestrator(t, newRegistry(t, first, second), pipeline.Options{})

	results, err := orch.Run(ctx, unit.Source{})
	if !errors.Is(err, context.Canceled) || results != nil {
		t.Fatalf("expected cancellation, got %v %v", results, err)
	}
	if second.calls.Load() != 0 {
		t.Fatal("second unit must not start after cancellation")
	}
}
