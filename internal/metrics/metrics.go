// Package metrics exposes Prometheus metrics for shotcheck runs.
//
// Metrics live in a private registry so that tests and repeated runs in one
// process do not collide. They can be scraped over HTTP while watching or
// written to a node_exporter textfile after a one-shot run.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shotcheck/internal/report"
)

// Namespace prefixes every metric name.
const Namespace = "shotcheck"

// Collector holds the shotcheck metrics.
type Collector struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	filesIngested prometheus.Counter
	filesSkipped  prometheus.Counter
	bytesIngested prometheus.Counter
	violations    *prometheus.GaugeVec
	lastExitCode  prometheus.Gauge
	lastRunUnix   prometheus.Gauge
	runDuration   prometheus.Histogram
	cells         *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Total number of report runs by outcome",
			},
			[]string{"outcome"},
		),
		filesIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_ingested_total",
			Help:      "Screenshots ingested across all runs",
		}),
		filesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_skipped_total",
			Help:      "Marker or malformed files skipped across all runs",
		}),
		bytesIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_ingested_total",
			Help:      "Bytes hashed across all runs",
		}),
		violations: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "violations",
				Help:      "Violations found by the last run, by kind",
			},
			[]string{"kind"},
		),
		lastExitCode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_exit_code",
			Help:      "Exit code of the last run",
		}),
		lastRunUnix: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Report generation time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		cells: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "grid_size",
				Help:      "Dimensions of the last report grid",
			},
			[]string{"axis"},
		),
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRun records the outcome of one report run.
func (c *Collector) ObserveRun(res *report.Result, finished time.Time) {
	outcome := "pass"
	if !res.Passed() {
		outcome = "fail"
	}
	c.runsTotal.WithLabelValues(outcome).Inc()

	c.filesIngested.Add(float64(res.Stats.Files))
	c.filesSkipped.Add(float64(res.Stats.Skipped))
	c.bytesIngested.Add(float64(res.Stats.Bytes))

	for _, k := range []report.Kind{report.KindMissing, report.KindDimensions, report.KindPixels, report.KindUnreadable} {
		c.violations.WithLabelValues(string(k)).Set(float64(res.Count(k)))
	}

	c.lastExitCode.Set(float64(res.ExitCode))
	c.lastRunUnix.Set(float64(finished.Unix()))
	c.runDuration.Observe(res.Duration.Seconds())

	c.cells.WithLabelValues("models").Set(float64(len(res.Models)))
	c.cells.WithLabelValues("browsers").Set(float64(len(res.Browsers)))
	c.cells.WithLabelValues("engines").Set(float64(len(res.Engines)))
}

// ObserveError records a run that failed before producing a result.
func (c *Collector) ObserveError(code int) {
	c.runsTotal.WithLabelValues("error").Inc()
	c.lastExitCode.Set(float64(code))
}

// Handler returns an HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in Prometheus text format to path,
// replacing it atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
