// Package middleware provides cross-cutting concerns for the loader.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-nbload/internal/ports"
)

// namespace prefixes every metric name.
const namespace = "nbload"

// unknownDocument labels measurements that carry no document label.
const unknownDocument = "unknown"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks how documents compile and run: latency per operation, module
// outcomes, compile cache efficiency and the size of compiled units.
type PrometheusMetrics struct {
	modulesLoaded    *prometheus.CounterVec
	compileCache     *prometheus.CounterVec
	statementsPerDoc *prometheus.HistogramVec
	executionLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// its metrics with reg. A nil reg selects the global default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		modulesLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_loaded_total",
				Help:      "Module runs by completion status.",
			},
			[]string{"status", "document"},
		),
		compileCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compile_cache_total",
				Help:      "Compile cache lookups by result.",
			},
			[]string{"result"},
		),
		statementsPerDoc: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_statements",
				Help:      "Top-level statements per compiled unit.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"document"},
		),
		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of decode, compile, execute and load operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "document"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of other counted events.",
			},
			[]string{"operation", "status", "document"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Current state values such as registered hooks and parameter counts.",
			},
			[]string{"metric", "document"},
		),
	}
}

func document(labels map[string]string) string {
	if doc := labels[ports.LabelDocument]; doc != "" {
		return doc
	}
	return unknownDocument
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.WithLabelValues(operation, document(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case ports.MetricModulesLoaded:
		pm.modulesLoaded.WithLabelValues(labels[ports.LabelStatus], document(labels)).Add(value)
	case ports.MetricCompileCache:
		pm.compileCache.WithLabelValues(labels[ports.LabelResult]).Add(value)
	default:
		status := labels[ports.LabelStatus]
		if status == "" {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status, document(labels)).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, document(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. Statement counts have their own
// histogram; everything else shares the latency histogram keyed by name.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == ports.MetricStatementsPerUnit {
		pm.statementsPerDoc.WithLabelValues(document(labels)).Observe(value)
		return
	}
	pm.executionLatency.WithLabelValues(metric, document(labels)).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
