package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"sentinel/internal/graph"
	"sentinel/internal/logging"
	"sentinel/internal/services"
	"sentinel/internal/unit"
)

// RateLimitedError is returned by Run when a unit reported upstream throttling.
type RateLimitedError = unit.RateLimitError

// Options is the explicit per-orchestrator run configuration.
type Options struct {
	// Enabled toggles units by name. Units absent from the map are enabled.
	Enabled map[unit.Name]bool
	// Timeout is the per-unit ceiling; zero disables it.
	Timeout time.Duration
	// Concurrency bounds how many independent units execute at once. Values
	// of one or less run the linearized order sequentially.
	Concurrency int
	Logger      *slog.Logger
	Observers   []Observer
	Listeners   []Listener
	Now         func() time.Time
}

// Orchestrator executes a Registry's units in dependency order.
type Orchestrator struct {
	registry *Registry
	graph    *graph.Graph
	order    []unit.Name
	opts     Options
	logger   *slog.Logger
}

// New validates the registry's graph and returns an Orchestrator. A malformed
// graph fails here with a *graph.ConfigurationError or *graph.CycleError and
// no run is ever started.
func New(reg *Registry, opts Options) (*Orchestrator, error) {
	if reg == nil {
		return nil, &graph.ConfigurationError{Reason: "registry is required"}
	}
	g, err := reg.Graph()
	if err != nil {
		return nil, err
	}
	order, err := g.Linearize()
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for _, name := range order {
		h, _ := reg.Handler(name)
		if aware, ok := h.(unit.LoggerAware); ok {
			aware.SetLogger(logging.NewComponentLogger(opts.Logger, string(name)))
		}
	}
	return &Orchestrator{
		registry: reg,
		graph:    g,
		order:    order,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
	}, nil
}

// Order returns the linearized execution order.
func (o *Orchestrator) Order() []unit.Name { return slices.Clone(o.order) }

// Graph returns the dependency graph derived from the registry.
func (o *Orchestrator) Graph() *graph.Graph { return o.graph }

// Enabled reports whether the feature toggle for name is on.
func (o *Orchestrator) Enabled(name unit.Name) bool {
	if o.opts.Enabled == nil {
		return true
	}
	enabled, ok := o.opts.Enabled[name]
	return !ok || enabled
}

// Run executes every eligible unit once and returns the populated Results.
// Units that fail are recorded and the run continues; a rate-limit signal or
// cancellation of ctx aborts the run and returns a nil Results.
func (o *Orchestrator) Run(ctx context.Context, src unit.Source) (*Results, error) {
	results := newResults(src.MediaID, o.order)
	runCtx := services.WithMediaID(ctx, src.MediaID)
	logger := logging.WithContext(runCtx, o.logger)

	side := &sideChannel{observers: o.opts.Observers, logger: logger}
	defer side.drain()

	results.setState(Running)
	started := o.opts.Now()
	logger.Info(
		"analysis started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("units", len(o.order)),
		logging.Int("concurrency", max(o.opts.Concurrency, 1)),
		logging.Int("frames", len(src.Frames)),
	)

	var err error
	if o.opts.Concurrency <= 1 {
		err = o.runSequential(runCtx, src, results, side, logger)
	} else {
		err = o.runConcurrent(runCtx, src, results, side, logger)
	}
	if err != nil {
		var rl *RateLimitedError
		if errors.As(err, &rl) {
			logging.WarnWithContext(
				logger,
				"analysis aborted",
				"run_rate_limited",
				logging.String(logging.FieldUnit, string(rl.Unit)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "no results recorded for this attempt"),
				logging.String(logging.FieldErrorHint, "retry after the provider cooldown"),
			)
		}
		return nil, err
	}

	results.setState(Completed)
	summary := results.Summary()
	logger.Info(
		"analysis completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", o.opts.Now().Sub(started)),
	)
	return results, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, src unit.Source, results *Results, side *sideChannel, logger *slog.Logger) error {
	for _, name := range o.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.step(ctx, name, src, results, side, logger); err != nil {
			return err
		}
	}
	return nil
}

// runConcurrent starts one goroutine per unit. Each waits for every
// prerequisite slot to settle before competing for one of Concurrency
// execution permits, so a unit never starts before its inputs exist.
func (o *Orchestrator) runConcurrent(ctx context.Context, src unit.Source, results *Results, side *sideChannel, logger *slog.Logger) error {
	group, gctx := errgroup.WithContext(ctx)
	permits := semaphore.NewWeighted(int64(o.opts.Concurrency))

	for _, name := range o.order {
		prerequisites := o.graph.Prerequisites(name)
		group.Go(func() error {
			for _, p := range prerequisites {
				if err := results.wait(gctx, p); err != nil {
					return err
				}
			}
			if err := permits.Acquire(gctx, 1); err != nil {
				return err
			}
			defer permits.Release(1)
			return o.step(gctx, name, src, results, side, logger)
		})
	}
	return group.Wait()
}

// step settles exactly one slot. It returns an error only for rate limiting
// or cancellation.
func (o *Orchestrator) step(ctx context.Context, name unit.Name, src unit.Source, results *Results, side *sideChannel, logger *slog.Logger) error {
	h, ok := o.registry.Handler(name)
	if !ok {
		return &graph.ConfigurationError{Unit: name, Reason: "no handler registered"}
	}

	if reason, eligible := o.eligibility(h, src, results); !eligible {
		if err := results.skip(name, reason); err != nil {
			return err
		}
		logger.Info(
			"unit skipped",
			logging.String(logging.FieldEventType, "unit_skip"),
			logging.String(logging.FieldUnit, string(name)),
			logging.String("reason", reason),
		)
		for _, l := range o.opts.Listeners {
			l.UnitSkipped(src.MediaID, name, reason)
		}
		return nil
	}

	in := unit.NewInputs(src, unit.Prerequisites(h), results.Lookup())

	out, runErr := unit.Run(ctx, unit.Options{
		Unit:    name,
		MediaID: src.MediaID,
		Timeout: o.opts.Timeout,
		Logger:  o.logger,
		Now:     o.opts.Now,
	}, func(ctx context.Context) (any, error) {
		return h.Execute(ctx, in)
	})
	if runErr != nil {
		return runErr
	}

	if err := results.record(out); err != nil {
		return err
	}
	for _, l := range o.opts.Listeners {
		l.UnitFinished(out)
	}
	if out.Success {
		side.publish(ctx, out)
	}
	return nil
}

// eligibility returns a skip reason when name must not be invoked.
func (o *Orchestrator) eligibility(h unit.Handler, src unit.Source, results *Results) (string, bool) {
	name := h.Name()
	if !o.Enabled(name) {
		return "disabled by configuration", false
	}
	for _, p := range h.Requires() {
		switch results.Status(p) {
		case StatusSucceeded:
			continue
		case StatusSkipped:
			return fmt.Sprintf("prerequisite %s was skipped", p), false
		case StatusFailed:
			return fmt.Sprintf("prerequisite %s failed", p), false
		default:
			return fmt.Sprintf("prerequisite %s has no output", p), false
		}
	}
	if checker, ok := h.(unit.ReadinessChecker); ok {
		in := unit.NewInputs(src, unit.Prerequisites(h), results.Lookup())
		if err := checker.Ready(in); err != nil {
			return err.Error(), false
		}
	}
	return "", true
}
