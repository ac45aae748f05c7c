package unit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/logging"
	"sentinel/internal/services"
)

// TimeoutMessage is the error text recorded when an invocation exceeds its ceiling.
const TimeoutMessage = "timeout"

// Func is a unit's domain computation.
type Func func(ctx context.Context) (any, error)

// Options controls a single lifecycle invocation.
type Options struct {
	Unit    Name
	MediaID string
	Timeout time.Duration
	Logger  *slog.Logger
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// RateLimitError signals upstream throttling. It aborts the remainder of a
// run; callers retry the whole run after a cooldown.
type RateLimitError struct {
	Unit  Name
	RunID string
	Err   error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: rate limited", e.Unit)
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Unit, e.Err)
}

func (e *RateLimitError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrRateLimited}
	}
	return []error{services.ErrRateLimited, e.Err}
}

type outcome struct {
	result any
	err    error
	trace  string
}

// Run invokes fn under the unit lifecycle and returns its Output.
//
// The returned error is non-nil in two cases only: a *RateLimitError when fn
// reports upstream throttling, and ctx.Err() when the caller's context ends
// before fn completes. Every other failure, including timeouts and panics, is
// contained in an unsuccessful Output.
func Run(ctx context.Context, opts Options, fn Func) (*Output, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	out := &Output{
		Unit:    opts.Unit,
		MediaID: opts.MediaID,
		Metadata: Metadata{
			RunID:          uuid.NewString(),
			StartedAt:      now().UTC(),
			TimeoutSeconds: opts.Timeout.Seconds(),
		},
	}

	unitCtx := services.WithUnit(ctx, string(opts.Unit))
	unitCtx = services.WithRunID(unitCtx, out.Metadata.RunID)
	if opts.MediaID != "" {
		unitCtx = services.WithMediaID(unitCtx, opts.MediaID)
	}
	logger := logging.WithContext(unitCtx, opts.Logger)

	logger.Info(
		"unit started",
		logging.String(logging.FieldEventType, "unit_start"),
		logging.Duration("timeout", opts.Timeout),
	)

	runCtx := unitCtx
	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(unitCtx, opts.Timeout)
	}
	defer cancel()

	if fn == nil {
		return finish(out, now, logger, outcome{err: errors.New("unit has no computation")})
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r), trace: string(debug.Stack())}
			}
		}()
		result, err := fn(runCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return canceled(out, now, logger, ctx.Err())
		}
		if res.err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			res.err = fmt.Errorf("%w: %w", services.ErrTimeout, res.err)
		}
		return finish(out, now, logger, res)
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return canceled(out, now, logger, ctx.Err())
		}
		return finish(out, now, logger, outcome{err: fmt.Errorf("%w: exceeded %s", services.ErrTimeout, opts.Timeout)})
	}
}

func canceled(out *Output, now func() time.Time, logger *slog.Logger, cause error) (*Output, error) {
	out.Metadata.FinishedAt = now().UTC()
	out.Metadata.DurationSeconds = out.Metadata.Duration().Seconds()
	out.Error = cause.Error()
	logger.Info(
		"unit canceled",
		logging.String(logging.FieldEventType, "unit_canceled"),
		logging.Error(cause),
	)
	return out, cause
}

func finish(out *Output, now func() time.Time, logger *slog.Logger, res outcome) (*Output, error) {
	out.Metadata.FinishedAt = now().UTC()
	out.Metadata.DurationSeconds = out.Metadata.Duration().Seconds()

	err := res.err
	if err == nil && res.result == nil {
		err = errors.New("unit returned no result")
	}

	if err == nil {
		out.Success = true
		out.Result = res.result
		logger.Info(
			"unit completed",
			logging.String(logging.FieldEventType, "unit_complete"),
			logging.Float64("duration_seconds", out.Metadata.DurationSeconds),
		)
		return out, nil
	}

	out.Success = false
	out.Result = nil
	out.Metadata.Trace = res.trace
	if out.Metadata.Trace == "" {
		out.Metadata.Trace = errorTrace(err)
	}

	if services.IsRateLimited(err) {
		out.Error = err.Error()
		logging.WarnWithContext(
			logger,
			"unit rate limited",
			"unit_rate_limited",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "wait for the provider quota to reset before retrying"),
			logging.String(logging.FieldImpact, "analysis run aborted"),
		)
		return out, &RateLimitError{Unit: out.Unit, RunID: out.Metadata.RunID, Err: err}
	}

	if errors.Is(err, services.ErrTimeout) {
		out.Error = TimeoutMessage
	} else {
		out.Error = strings.TrimSpace(err.Error())
		if out.Error == "" {
			out.Error = "unit failed"
		}
	}

	logging.ErrorWithContext(
		logger,
		"unit failed",
		"unit_failure",
		logging.String("error_message", out.Error),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.Error(err),
	)
	return out, nil
}

// errorTrace renders the wrap chain of err, outermost first.
func errorTrace(err error) string {
	var b strings.Builder
	depth := 0
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		fmt.Fprintf(&b, "%s%T: %s\n", strings.Repeat("  ", depth), e, e.Error())
		depth++
		switch x := e.(type) {
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		}
		depth--
	}
	walk(err)
	return strings.TrimRight(b.String(), "\n")
}

func hintFor(err error) string {
	switch services.Classify(err) {
	case "timeout":
		return "raise units.timeout_seconds or check the upstream service latency"
	case "external_tool":
		return "run 'sentinel doctor' to verify ffmpeg and whisperx"
	case "configuration":
		return "check the sentinel config file"
	case "validation":
		return "the model response did not match the expected schema"
	default:
		return "check logs for details"
	}
}
