// Package metrics exposes build counters and timings as prometheus
// collectors. Every Metrics value owns its registry, so concurrent builds in
// one process (tests, watch mode) never share series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/isle/internal/errors"
	"github.com/conneroisu/isle/internal/loader"
)

const namespace = "isle"

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics tracks build performance.
type Metrics struct {
	registry *prometheus.Registry

	hookCalls        *prometheus.CounterVec
	modules          *prometheus.CounterVec
	builds           *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	analysisDuration prometheus.Histogram
	clientFiles      prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		hookCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hook_calls_total",
				Help:      "Loader hook invocations by hook, phase and result.",
			},
			[]string{"hook", "phase", "result"},
		),
		modules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_loaded_total",
				Help:      "Modules loaded through the hook chain by format.",
			},
			[]string{"format"},
		),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Completed builds by result.",
			},
			[]string{"result"},
		),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of a build.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a dependency analysis round trip.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		clientFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_files",
			Help:      "Files listed in the last published client manifest.",
		}),
	}

	m.registry.MustRegister(
		m.hookCalls,
		m.modules,
		m.builds,
		m.buildDuration,
		m.analysisDuration,
		m.clientFiles,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HookInvoked counts one hook call. It satisfies loader.Observer.
func (m *Metrics) HookInvoked(hook string, phase loader.Phase, err error) {
	m.hookCalls.WithLabelValues(hook, string(phase), resultOf(err)).Inc()
}

// ModuleLoaded counts a module that made it through the load chain.
func (m *Metrics) ModuleLoaded(format loader.ModuleFormat) {
	m.modules.WithLabelValues(string(format)).Inc()
}

// BuildFinished records a build's outcome and duration.
func (m *Metrics) BuildFinished(d time.Duration, err error) {
	m.builds.WithLabelValues(resultOf(err)).Inc()
	m.buildDuration.Observe(d.Seconds())
}

// AnalysisFinished records one analysis round trip.
func (m *Metrics) AnalysisFinished(d time.Duration) {
	m.analysisDuration.Observe(d.Seconds())
}

// SetClientFiles records the size of the published client manifest.
func (m *Metrics) SetClientFiles(n int) {
	m.clientFiles.Set(float64(n))
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteFile writes the current values to path in the text format read by
// the node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.WrapIO(err, "METRICS_WRITE", path)
	}
	return nil
}

// resultOf labels an error by its type so failures can be told apart
// without unbounded label values.
func resultOf(err error) string {
	if err == nil {
		return ResultOK
	}
	return ResultError + ":" + string(errors.TypeOf(err))
}
