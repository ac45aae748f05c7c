package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"sentinel/internal/agents"
	"sentinel/internal/pipeline"
	"sentinel/internal/unit"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("FFmpeg", statusError, "not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "FFmpeg:", "[ERROR] not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Index database", statusOK, "", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestUnitLabel(t *testing.T) {
	if got := unitLabel(unit.Reasoning); got != "Reasoning" {
		t.Fatalf("unitLabel = %q", got)
	}
}

func TestResultSummaryDecodesArchivedResults(t *testing.T) {
	// Archived results come back as generic JSON maps.
	out := &unit.Output{Unit: unit.Risk, Success: true, Result: map[string]any{
		"overall_risk_level": "medium",
		"risk_flags":         []any{map[string]any{"category": "legal"}},
	}}
	if got := resultSummary(unit.Risk, out); got != "medium: legal" {
		t.Fatalf("risk summary = %q", got)
	}

	live := &unit.Output{Unit: unit.Emotion, Success: true, Result: agents.Emotion{Dominant: "calm"}}
	if got := resultSummary(unit.Emotion, live); got != "calm (0 spikes)" {
		t.Fatalf("emotion summary = %q", got)
	}
}

func TestEntryDetail(t *testing.T) {
	cases := []struct {
		entry pipeline.ReportEntry
		want  string
	}{
		{pipeline.ReportEntry{Unit: unit.Video, Status: pipeline.StatusSkipped, SkipReason: "disabled by configuration"}, "disabled by configuration"},
		{pipeline.ReportEntry{Unit: unit.Risk, Status: pipeline.StatusFailed, Output: &unit.Output{Error: "timeout"}}, "timeout"},
		{pipeline.ReportEntry{Unit: unit.Tagging, Status: pipeline.StatusPending}, ""},
	}
	for _, tc := range cases {
		if got := entryDetail(tc.entry); got != tc.want {
			t.Fatalf("entryDetail(%s) = %q, want %q", tc.entry.Unit, got, tc.want)
		}
	}
}

func TestFormattingHelpers(t *testing.T) {
	if got := formatTimestamp(3725); got != "1:02:05" {
		t.Fatalf("formatTimestamp = %q", got)
	}
	if got := formatTimestamp(65); got != "1:05" {
		t.Fatalf("formatTimestamp = %q", got)
	}
	if got := joinLimited([]string{"a", "b", "c"}, 2); got != "a, b (+1 more)" {
		t.Fatalf("joinLimited = %q", got)
	}
}

func TestOriginLine(t *testing.T) {
	cases := []struct {
		origin *pipeline.Origin
		want   string
	}{
		{nil, ""},
		{&pipeline.Origin{Kind: "local", Location: "/videos/a.mp4"}, "/videos/a.mp4"},
		{&pipeline.Origin{Kind: "youtube", Location: "https://youtu.be/x", Title: "Budget talk"}, `"Budget talk" https://youtu.be/x (youtube)`},
	}
	for _, tc := range cases {
		if got := originLine(tc.origin); got != tc.want {
			t.Fatalf("originLine(%+v) = %q, want %q", tc.origin, got, tc.want)
		}
	}
}
