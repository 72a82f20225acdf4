package middleware

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nbload/internal/ports"
)

// newTestMetrics registers a fresh set of collectors on a private registry so
// tests never collide on the global one.
func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

func TestNewPrometheusMetrics(t *testing.T) {
	pm, reg := newTestMetrics(t)

	assert.NotNil(t, pm.modulesLoaded)
	assert.NotNil(t, pm.compileCache)
	assert.NotNil(t, pm.statementsPerDoc)
	assert.NotNil(t, pm.executionLatency)
	assert.NotNil(t, pm.operationCounter)
	assert.NotNil(t, pm.systemGauges)

	assert.NotPanics(t, func() { NewPrometheusMetrics(prometheus.NewRegistry()) },
		"separate registries must not conflict")
	assert.Panics(t, func() { NewPrometheusMetrics(reg) },
		"registering twice on one registry is a programming error")
}

func TestPrometheusMetrics_RecordLatency(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		labels    map[string]string
		wantDoc   string
	}{
		{name: "with document label", operation: "compile", labels: map[string]string{ports.LabelDocument: "analysis"}, wantDoc: "analysis"},
		{name: "without document label", operation: "execute", labels: map[string]string{"other": "value"}, wantDoc: unknownDocument},
		{name: "empty document label", operation: "load", labels: map[string]string{ports.LabelDocument: ""}, wantDoc: unknownDocument},
		{name: "nil labels", operation: "decode", labels: nil, wantDoc: unknownDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm, _ := newTestMetrics(t)
			pm.RecordLatency(tt.operation, 150*time.Millisecond, tt.labels)

			_, err := pm.executionLatency.GetMetricWithLabelValues(tt.operation, tt.wantDoc)
			require.NoError(t, err)
			assert.Equal(t, 1, testutil.CollectAndCount(pm.executionLatency),
				"looking up the expected labels must not create a second series")
		})
	}
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter(ports.MetricModulesLoaded, 1, map[string]string{
		ports.LabelStatus: "ok", ports.LabelDocument: "nb",
	})
	pm.RecordCounter(ports.MetricModulesLoaded, 1, map[string]string{
		ports.LabelStatus: "ok", ports.LabelDocument: "nb",
	})
	pm.RecordCounter(ports.MetricModulesLoaded, 1, map[string]string{
		ports.LabelStatus: "failed", ports.LabelDocument: "nb",
	})
	pm.RecordCounter(ports.MetricCompileCache, 1, map[string]string{ports.LabelResult: "hit"})
	pm.RecordCounter(ports.MetricCompileCache, 3, map[string]string{ports.LabelResult: "miss"})
	pm.RecordCounter("hooks_replaced", 1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.modulesLoaded.WithLabelValues("ok", "nb")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.modulesLoaded.WithLabelValues("failed", "nb")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.compileCache.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.compileCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		pm.operationCounter.WithLabelValues("hooks_replaced", "success", unknownDocument)))
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordGauge(ports.MetricRegisteredHooks, 2, nil)
	pm.RecordGauge(ports.MetricRegisteredHooks, 3, nil)
	pm.RecordGauge(ports.MetricNamespaceSize, 7, map[string]string{ports.LabelDocument: "nb"})

	assert.Equal(t, 3.0, testutil.ToFloat64(
		pm.systemGauges.WithLabelValues(ports.MetricRegisteredHooks, unknownDocument)), "gauges keep the last value")
	assert.Equal(t, 7.0, testutil.ToFloat64(
		pm.systemGauges.WithLabelValues(ports.MetricNamespaceSize, "nb")))
}

func TestPrometheusMetrics_RecordHistogram(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordHistogram(ports.MetricStatementsPerUnit, 4, map[string]string{ports.LabelDocument: "nb"})
	pm.RecordHistogram(ports.MetricStatementsPerUnit, 12, map[string]string{ports.LabelDocument: "nb"})
	pm.RecordHistogram("sweep_wait", 0.2, nil)

	assert.Equal(t, 1, testutil.CollectAndCount(pm.statementsPerDoc))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.executionLatency))

	expected := `
# HELP nbload_unit_statements Top-level statements per compiled unit.
# TYPE nbload_unit_statements histogram
nbload_unit_statements_bucket{document="nb",le="1"} 0
nbload_unit_statements_bucket{document="nb",le="2"} 0
nbload_unit_statements_bucket{document="nb",le="4"} 1
nbload_unit_statements_bucket{document="nb",le="8"} 1
nbload_unit_statements_bucket{document="nb",le="16"} 2
nbload_unit_statements_bucket{document="nb",le="32"} 2
nbload_unit_statements_bucket{document="nb",le="64"} 2
nbload_unit_statements_bucket{document="nb",le="128"} 2
nbload_unit_statements_bucket{document="nb",le="256"} 2
nbload_unit_statements_bucket{document="nb",le="512"} 2
nbload_unit_statements_bucket{document="nb",le="+Inf"} 2
nbload_unit_statements_sum{document="nb"} 16
nbload_unit_statements_count{document="nb"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "nbload_unit_statements"))
}

func TestPrometheusMetrics_EdgeCases(t *testing.T) {
	pm, _ := newTestMetrics(t)

	t.Run("zero duration", func(t *testing.T) {
		assert.NotPanics(t, func() { pm.RecordLatency("compile", 0, nil) })
	})

	t.Run("negative counter value panics", func(t *testing.T) {
		assert.Panics(t, func() { pm.RecordCounter(ports.MetricCompileCache, -1, nil) })
	})

	t.Run("negative gauge value", func(t *testing.T) {
		assert.NotPanics(t, func() { pm.RecordGauge(ports.MetricParameters, -1, nil) })
	})
}
