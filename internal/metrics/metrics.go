// Package metrics exposes Prometheus collectors for analysis runs.
//
// A Recorder is a pipeline.Listener: attach it to pipeline.Options.Listeners
// and it counts every unit outcome. Runs are one-shot CLI invocations, so the
// collected values are exported through the node_exporter textfile format
// rather than an HTTP endpoint.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sentinel/internal/unit"
)

const namespace = "sentinel"

// Run outcomes recorded by RunFinished.
const (
	RunCompleted   = "completed"
	RunRateLimited = "rate_limited"
	RunFailed      = "failed"
)

// Recorder owns a private registry so independent runs and tests never share
// collector state.
type Recorder struct {
	registry *prometheus.Registry

	// UnitsTotal counts unit outcomes.
	// Labels: unit, status (succeeded, failed, skipped)
	UnitsTotal *prometheus.CounterVec

	// UnitDuration tracks wall time of executed units in seconds.
	// Labels: unit
	UnitDuration *prometheus.HistogramVec

	// UnitTimeouts counts units that hit their deadline.
	// Labels: unit
	UnitTimeouts *prometheus.CounterVec

	// RunsTotal counts whole pipeline runs.
	// Labels: result (completed, rate_limited, failed)
	RunsTotal *prometheus.CounterVec

	// LastRunTimestamp holds the unix time of the last finished run.
	LastRunTimestamp prometheus.Gauge
}

// NewRecorder builds a Recorder with freshly registered collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		UnitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "unit",
				Name:      "outcomes_total",
				Help:      "Total number of unit outcomes by status",
			},
			[]string{"unit", "status"},
		),
		UnitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "unit",
				Name:      "duration_seconds",
				Help:      "Duration of executed units in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"unit"},
		),
		UnitTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "unit",
				Name:      "timeouts_total",
				Help:      "Total number of units that exceeded their timeout",
			},
			[]string{"unit"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by result",
			},
			[]string{"result"},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last finished pipeline run",
			},
		),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// UnitSkipped implements pipeline.Listener.
func (r *Recorder) UnitSkipped(_ string, name unit.Name, _ string) {
	r.UnitsTotal.WithLabelValues(name.String(), "skipped").Inc()
}

// UnitFinished implements pipeline.Listener.
func (r *Recorder) UnitFinished(out *unit.Output) {
	if out == nil {
		return
	}
	status := "succeeded"
	if out.Failed() {
		status = "failed"
	}
	name := out.Unit.String()
	r.UnitsTotal.WithLabelValues(name, status).Inc()
	r.UnitDuration.WithLabelValues(name).Observe(out.Metadata.DurationSeconds)
	if out.Error == unit.TimeoutMessage {
		r.UnitTimeouts.WithLabelValues(name).Inc()
	}
}

// RunFinished records the outcome of a whole run. unixSeconds stamps the
// last-run gauge.
func (r *Recorder) RunFinished(result string, unixSeconds float64) {
	r.RunsTotal.WithLabelValues(result).Inc()
	r.LastRunTimestamp.Set(unixSeconds)
}

// WriteTextfile atomically writes the collected metrics to path in the
// Prometheus text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
