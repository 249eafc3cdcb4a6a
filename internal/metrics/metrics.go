// Package metrics records build outcomes as Prometheus metrics and writes
// them in the node_exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/bigdouble/exbuild/internal/report"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "exbuild"

// Collector holds the build metrics in a private registry.
type Collector struct {
	registry *prometheus.Registry

	duration    *prometheus.GaugeVec
	exitCode    *prometheus.GaugeVec
	lastRun     *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
	runs        *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_duration_seconds",
			Help:      "Wall time of the last compiler run.",
		}, []string{"label"}),
		exitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_exit_code",
			Help:      "Exit code of the last compiler run.",
		}, []string{"label"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last compiler run finished.",
		}, []string{"label"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last compiler run that exited 0.",
		}, []string{"label"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Compiler runs by outcome.",
		}, []string{"label", "status"}),
	}
	c.registry.MustRegister(c.duration, c.exitCode, c.lastRun, c.lastSuccess, c.runs)
	return c
}

// Observe records one finished run.
func (c *Collector) Observe(r *report.RunResult) {
	c.duration.WithLabelValues(r.Label).Set(r.Seconds)
	c.exitCode.WithLabelValues(r.Label).Set(float64(r.ExitCode))
	finished := float64(r.FinishedAt.UnixNano()) / 1e9
	c.lastRun.WithLabelValues(r.Label).Set(finished)
	if r.Success() {
		c.lastSuccess.WithLabelValues(r.Label).Set(finished)
	}
	c.runs.WithLabelValues(r.Label, r.Status()).Inc()
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteTextfile atomically writes the current metrics to path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
