package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sentinel/internal/logging"
	"sentinel/internal/unit"
)

// Observer receives successful unit outputs on a fire-and-forget side
// channel. Errors are logged and never change the run's outcome.
type Observer interface {
	Observe(ctx context.Context, out *unit.Output) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, out *unit.Output) error

func (f ObserverFunc) Observe(ctx context.Context, out *unit.Output) error { return f(ctx, out) }

// Listener is notified synchronously as slots settle. Implementations must be
// quick and safe for concurrent use.
type Listener interface {
	UnitSkipped(mediaID string, name unit.Name, reason string)
	UnitFinished(out *unit.Output)
}

type sideChannel struct {
	observers []Observer
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func (s *sideChannel) publish(ctx context.Context, out *unit.Output) {
	if len(s.observers) == 0 {
		return
	}
	// Detached so a canceled run does not abort writes already handed off.
	detached := context.WithoutCancel(ctx)
	for _, obs := range s.observers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := safeObserve(detached, obs, out); err != nil {
				logging.WarnWithContext(
					s.logger,
					"output side channel failed",
					"side_channel_failed",
					logging.String(logging.FieldUnit, string(out.Unit)),
					logging.String("observer", fmt.Sprintf("%T", obs)),
					logging.Error(err),
					logging.String(logging.FieldImpact, "search index may be missing this output"),
				)
			}
		}()
	}
}

func (s *sideChannel) drain() {
	s.wg.Wait()
}

func safeObserve(ctx context.Context, obs Observer, out *unit.Output) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return obs.Observe(ctx, out)
}
