package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"sentinel/internal/metrics"
	"sentinel/internal/pipeline"
	"sentinel/internal/unit"
)

var _ pipeline.Listener = (*metrics.Recorder)(nil)

func TestRecorderCountsOutcomes(t *testing.T) {
	rec := metrics.NewRecorder()

	rec.UnitFinished(&unit.Output{Unit: unit.Audio, Success: true, Metadata: unit.Metadata{DurationSeconds: 3}})
	rec.UnitFinished(&unit.Output{Unit: unit.Tagging, Error: unit.TimeoutMessage, Metadata: unit.Metadata{DurationSeconds: 120}})
	rec.UnitFinished(&unit.Output{Unit: unit.Emotion, Error: "boom"})
	rec.UnitSkipped("m1", unit.Video, "no video frames supplied")
	rec.UnitFinished(nil)

	if got := testutil.ToFloat64(rec.UnitsTotal.WithLabelValues("audio", "succeeded")); got != 1 {
		t.Fatalf("expected one audio success, got %v", got)
	}
	if got := testutil.ToFloat64(rec.UnitsTotal.WithLabelValues("tagging", "failed")); got != 1 {
		t.Fatalf("expected one tagging failure, got %v", got)
	}
	if got := testutil.ToFloat64(rec.UnitsTotal.WithLabelValues("video", "skipped")); got != 1 {
		t.Fatalf("expected one video skip, got %v", got)
	}
	if got := testutil.ToFloat64(rec.UnitTimeouts.WithLabelValues("tagging")); got != 1 {
		t.Fatalf("expected one tagging timeout, got %v", got)
	}
	if got := testutil.ToFloat64(rec.UnitTimeouts.WithLabelValues("emotion")); got != 0 {
		t.Fatalf("plain failure counted as timeout: %v", got)
	}
	if got := testutil.CollectAndCount(rec.UnitDuration); got != 3 {
		t.Fatalf("expected three duration series, got %d", got)
	}
}

func TestRunFinished(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.RunFinished(metrics.RunRateLimited, 100)
	rec.RunFinished(metrics.RunCompleted, 200)

	expected := `
# HELP sentinel_pipeline_runs_total Total number of pipeline runs by result
# TYPE sentinel_pipeline_runs_total counter
sentinel_pipeline_runs_total{result="completed"} 1
sentinel_pipeline_runs_total{result="rate_limited"} 1
`
	if err := testutil.CollectAndCompare(rec.RunsTotal, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected runs metric: %v", err)
	}
	if got := testutil.ToFloat64(rec.LastRunTimestamp); got != 200 {
		t.Fatalf("expected last run 200, got %v", got)
	}
}

func TestRecordersAreIsolated(t *testing.T) {
	a := metrics.NewRecorder()
	b := metrics.NewRecorder()
	a.UnitSkipped("m1", unit.Risk, "disabled by configuration")
	if got := testutil.ToFloat64(b.UnitsTotal.WithLabelValues("risk", "skipped")); got != 0 {
		t.Fatalf("recorders share state: %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	rec := metrics.NewRecorder()
	rec.RunFinished(metrics.RunCompleted, 1)
	path := filepath.Join(t.TempDir(), "nested", "sentinel.prom")
	if err := rec.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `sentinel_pipeline_runs_total{result="completed"} 1`) {
		t.Fatalf("textfile missing run counter:\n%s", data)
	}
	if err := rec.WriteTextfile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}
