package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"sentinel/internal/config"
	"sentinel/internal/services"
	"sentinel/internal/unit"
)

func TestExitCode(t *testing.T) {
	throttled := &unit.RateLimitError{Unit: unit.Risk, Err: errors.New("429")}
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain", errors.New("boom"), exitFailure},
		{"interrupted", fmt.Errorf("analysis interrupted: %w", context.Canceled), exitInterrupted},
		{"rate limited run", fmt.Errorf("analysis aborted: %w", throttled), exitRateLimited},
		{"rate limited marker", services.Wrap(services.ErrRateLimited, "llm", "complete", "429", nil), exitRateLimited},
		{"configuration", configFailure(errors.New("llm.api_key is required")), exitConfig},
		{"tool failure", services.Wrap(services.ErrExternalTool, "ytdlp", "download", "yt-dlp run failed", nil), exitFailure},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("%s: exitCode = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestConfigFailureKeepsMessage(t *testing.T) {
	err := configFailure(errors.New("llm.api_key is required"))
	if err.Error() != "llm.api_key is required" || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("unexpected config failure %v", err)
	}
	if configFailure(nil) != nil {
		t.Fatal("configFailure(nil) should be nil")
	}
}

func TestRunReportsMissingKeyAsConfigError(t *testing.T) {
	env := setupCLITestEnv(t, func(c *config.Config) { c.LLM.APIKey = "" })
	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", env.configPath, "analyze", filepath.Join(env.baseDir, "clip.mp4")}, &stdout, &stderr)
	if code != exitConfig {
		t.Fatalf("exit code = %d, want %d (stderr %q)", code, exitConfig, stderr.String())
	}
	if !strings.HasPrefix(stderr.String(), "sentinel: llm.api_key is required") || !strings.Contains(stderr.String(), "sentinel doctor --local") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRunSucceeds(t *testing.T) {
	env := setupCLITestEnv(t)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--config", env.configPath, "graph"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("graph exit code = %d, stderr %q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "audio") {
		t.Fatalf("unexpected output stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestWriteJSONKeepsTranscriptCharacters(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := writeJSON(cmd, map[string]string{"text": "Q&A <live>"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if !strings.Contains(out.String(), `"text": "Q&A <live>"`) {
		t.Fatalf("unexpected JSON %s", out.String())
	}
}
