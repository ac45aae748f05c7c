package pipeline

import (
	"context"
	"errors"
	"time"

	"sentinel/internal/unit"
)

// RetryPolicy controls whole-run retries after a rate-limit abort.
type RetryPolicy struct {
	// Retries is the number of additional attempts after the first.
	Retries  int
	Cooldown time.Duration
	// Sleep waits for d or until ctx ends; defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each cooldown.
	OnRetry func(attempt int, err *RateLimitedError)
}

// RunWithRetry re-invokes o.Run after Cooldown whenever it aborts with a
// RateLimitedError. Other errors and successful runs return immediately.
func RunWithRetry(ctx context.Context, o *Orchestrator, src unit.Source, policy RetryPolicy) (*Results, error) {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempt := 0
	for {
		results, err := o.Run(ctx, src)
		var rl *RateLimitedError
		if err == nil || !errors.As(err, &rl) || attempt >= policy.Retries {
			return results, err
		}
		attempt++
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, rl)
		}
		if err := sleep(ctx, policy.Cooldown); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
