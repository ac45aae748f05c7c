package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"sentinel/internal/pipeline"
	"sentinel/internal/services"
)

// Exit codes let wrapper scripts tell a retryable throttle apart from a setup
// problem without parsing stderr.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitRateLimited = 75 // EX_TEMPFAIL
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	code := exitCode(err)
	if code == exitInterrupted {
		return code
	}
	fmt.Fprintf(stderr, "sentinel: %v\n", err)
	switch code {
	case exitConfig:
		fmt.Fprintln(stderr, "hint: run 'sentinel doctor --local' to check the setup")
	case exitRateLimited:
		fmt.Fprintln(stderr, "hint: the provider is throttling requests; rerun later")
	}
	return code
}

func exitCode(err error) int {
	var throttled *pipeline.RateLimitedError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.As(err, &throttled), errors.Is(err, services.ErrRateLimited):
		return exitRateLimited
	case errors.Is(err, services.ErrConfiguration):
		return exitConfig
	default:
		return exitFailure
	}
}

// configError marks a failure to load or satisfy the configuration while
// keeping the underlying message unchanged.
type configError struct {
	err error
}

func configFailure(err error) error {
	if err == nil || errors.Is(err, services.ErrConfiguration) {
		return err
	}
	return &configError{err: err}
}

func (e *configError) Error() string { return e.err.Error() }

func (e *configError) Unwrap() []error { return []error{services.ErrConfiguration, e.err} }
