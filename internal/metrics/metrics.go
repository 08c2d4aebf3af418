// Package metrics collects per-run Prometheus metrics and exports them in the
// node_exporter textfile format.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the metrics for one run. A nil Recorder discards everything.
type Recorder struct {
	reg *prometheus.Registry

	dates          *prometheus.CounterVec
	downloadBytes  prometheus.Counter
	attempts       prometheus.Counter
	stages         *prometheus.CounterVec
	timestamps     *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
	lastSuccessRun prometheus.Gauge
}

// New registers the run metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		reg: reg,
		dates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kctvfetch_dates_total",
			Help: "Dates processed by outcome",
		}, []string{"status"}),
		downloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "kctvfetch_download_bytes_total",
			Help: "Bytes written by completed downloads",
		}),
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "kctvfetch_download_attempts_total",
			Help: "Download attempts made, including retries",
		}),
		stages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kctvfetch_stage_runs_total",
			Help: "Post-processing stage runs by outcome",
		}, []string{"stage", "outcome"}), // outcome=applied|failed
		timestamps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kctvfetch_timestamp_detections_total",
			Help: "Timestamp detections by phase that produced them",
		}, []string{"phase"}), // phase=primary|later|none
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kctvfetch_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kctvfetch_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		lastSuccessRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kctvfetch_last_success_timestamp_seconds",
			Help: "Unix time the last run finished without aborting",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// DateFinished counts one date outcome.
func (r *Recorder) DateFinished(status string) {
	if r == nil {
		return
	}
	r.dates.WithLabelValues(status).Inc()
}

// Downloaded records a transfer that took attempts tries.
func (r *Recorder) Downloaded(bytes int64, attempts int) {
	if r == nil {
		return
	}
	if bytes > 0 {
		r.downloadBytes.Add(float64(bytes))
	}
	if attempts > 0 {
		r.attempts.Add(float64(attempts))
	}
}

// StagesFinished counts applied and failed post-processing stages.
func (r *Recorder) StagesFinished(applied, failed []string) {
	if r == nil {
		return
	}
	for _, name := range applied {
		r.stages.WithLabelValues(name, "applied").Inc()
	}
	for _, name := range failed {
		r.stages.WithLabelValues(name, "failed").Inc()
	}
}

// TimestampsDetected counts a detection result; an empty phase means nothing was found.
func (r *Recorder) TimestampsDetected(phase string) {
	if r == nil {
		return
	}
	if strings.TrimSpace(phase) == "" {
		phase = "none"
	}
	r.timestamps.WithLabelValues(phase).Inc()
}

// RunFinished sets the run timing gauges.
func (r *Recorder) RunFinished(started, finished time.Time, aborted bool) {
	if r == nil {
		return
	}
	r.runDuration.Set(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
	if !aborted {
		r.lastSuccessRun.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes the registry to path atomically. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
