package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sentinel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "audio", "transcribe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"audio", "transcribe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marker", services.Wrap(services.ErrRateLimited, "llm", "complete", "", nil), true},
		{"text", errors.New("Provider says: Rate limit exceeded"), true},
		{"http", fmt.Errorf("request failed: HTTP 429"), true},
		{"too many", errors.New("too many requests, slow down"), true},
		{"generic", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.IsRateLimited(tc.err); got != tc.want {
				t.Fatalf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := services.Classify(nil); got != "ok" {
		t.Fatalf("expected ok, got %q", got)
	}
	if got := services.Classify(fmt.Errorf("wrap: %w", context.DeadlineExceeded)); got != "timeout" {
		t.Fatalf("expected timeout, got %q", got)
	}
	if got := services.Classify(services.Wrap(services.ErrValidation, "risk", "parse", "bad json", nil)); got != "validation" {
		t.Fatalf("expected validation, got %q", got)
	}
	if got := services.Classify(errors.New("HTTP 429")); got != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", got)
	}
}
