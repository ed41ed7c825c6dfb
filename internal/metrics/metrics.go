// Package metrics exposes Prometheus instrumentation for quote runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for quoteflow.
type Metrics struct {
	// Run metrics
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	GroupSize   prometheus.Histogram

	// Subtask metrics
	Subtasks        *prometheus.CounterVec
	SubtaskDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheSize   *prometheus.GaugeVec

	// Optimizer metrics
	Optimizations         *prometheus.CounterVec
	OptimizerCombinations *prometheus.HistogramVec
	OptimizerDuration     *prometheus.HistogramVec
	CatalogReloads        *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered against registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_runs_total",
				Help: "Total number of executor runs",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quoteflow_run_duration_seconds",
				Help:    "Executor run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
			},
			[]string{"outcome"},
		),
		GroupSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quoteflow_group_size",
				Help:    "Number of subtasks per dependency group",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),

		Subtasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_subtasks_total",
				Help: "Total number of executed subtasks by tool and outcome",
			},
			[]string{"tool", "success", "error_kind"},
		),
		SubtaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quoteflow_subtask_duration_seconds",
				Help:    "Subtask execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_cache_hits_total",
				Help: "Total number of quote cache hits",
			},
			[]string{"scope"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_cache_misses_total",
				Help: "Total number of quote cache misses",
			},
			[]string{"scope"},
		),
		CacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quoteflow_cache_entries",
				Help: "Current number of cached quotes",
			},
			[]string{"scope"},
		),

		Optimizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_optimizations_total",
				Help: "Total number of budget optimizations by strategy and status",
			},
			[]string{"strategy", "status"},
		),
		OptimizerCombinations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quoteflow_optimizer_combinations",
				Help:    "Number of combinations evaluated per optimization",
				Buckets: prometheus.ExponentialBuckets(1, 10, 7),
			},
			[]string{"strategy"},
		),
		OptimizerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quoteflow_optimizer_duration_seconds",
				Help:    "Optimization duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"strategy"},
		),
		CatalogReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_catalog_reloads_total",
				Help: "Total number of catalog reloads",
			},
			[]string{"success"},
		),
	}
}

// The Record helpers are safe to call on a nil *Metrics so callers never
// need to guard instrumentation.

// RecordRun records a finished executor run.
func (m *Metrics) RecordRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordGroup records the size of a dependency group.
func (m *Metrics) RecordGroup(size int) {
	if m == nil {
		return
	}
	m.GroupSize.Observe(float64(size))
}

// RecordSubtask records one executed subtask.
func (m *Metrics) RecordSubtask(tool string, success bool, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "none"
	}
	m.Subtasks.WithLabelValues(tool, strconv.FormatBool(success), errorKind).Inc()
	m.SubtaskDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(scope string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(scope).Inc()
		return
	}
	m.CacheMisses.WithLabelValues(scope).Inc()
}

// SetCacheSize records the current number of cached entries.
func (m *Metrics) SetCacheSize(scope string, n int) {
	if m == nil {
		return
	}
	m.CacheSize.WithLabelValues(scope).Set(float64(n))
}

// RecordOptimization records a finished optimization.
func (m *Metrics) RecordOptimization(strategy, status string, combinations int, d time.Duration) {
	if m == nil {
		return
	}
	m.Optimizations.WithLabelValues(strategy, status).Inc()
	m.OptimizerCombinations.WithLabelValues(strategy).Observe(float64(combinations))
	m.OptimizerDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordCatalogReload records a catalog hot reload attempt.
func (m *Metrics) RecordCatalogReload(success bool) {
	if m == nil {
		return
	}
	m.CatalogReloads.WithLabelValues(strconv.FormatBool(success)).Inc()
}
