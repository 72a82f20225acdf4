package ports

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nbload/internal/domain"
)

// sliceDecoder implements Decoder over a fixed fragment list.
type sliceDecoder struct{ fragments []domain.Fragment }

func (d sliceDecoder) Decode([]byte) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		for _, f := range d.fragments {
			if !yield(f, nil) {
				return
			}
		}
	}
}

// mockMetricsCollector implements MetricsCollector interface
type mockMetricsCollector struct {
	latencies  []time.Duration
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// newMockMetricsCollector creates a new mock metrics collector for testing.
func newMockMetricsCollector() *mockMetricsCollector {
	return &mockMetricsCollector{
		latencies:  []time.Duration{},
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (m *mockMetricsCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	m.latencies = append(m.latencies, duration)
}

func (m *mockMetricsCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetricsCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	m.gauges[metric] = value
}

func (m *mockMetricsCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	m.histograms[metric] = append(m.histograms[metric], value)
}

// Test that interfaces are properly defined and can be implemented
func TestInterfaces_Implementation(t *testing.T) {
	var _ Decoder = sliceDecoder{}
	var _ MetricsCollector = (*mockMetricsCollector)(nil)
	var _ ModuleLoader = ModuleLoaderFunc(nil)
}

func TestDecoder_Restartable(t *testing.T) {
	dec := sliceDecoder{fragments: []domain.Fragment{
		{Line: 1, Kind: domain.BlockCode, Text: "x = 1"},
		{Line: 4, Kind: domain.BlockCode, Text: "y = 2"},
	}}
	seq := dec.Decode(nil)

	collect := func() []int {
		var lines []int
		for f, err := range seq {
			require.NoError(t, err)
			lines = append(lines, f.Line)
		}
		return lines
	}

	assert.Equal(t, []int{1, 4}, collect())
	assert.Equal(t, []int{1, 4}, collect(), "ranging twice should yield the same fragments")
}

func TestModuleLoaderFunc(t *testing.T) {
	var gotPath string
	loader := ModuleLoaderFunc(func(_ context.Context, path string) (*domain.Module, error) {
		gotPath = path
		return domain.NewModule(path, &domain.Unit{Path: path}), nil
	})

	mod, err := loader.LoadModule(context.Background(), "nb/a.ipynb")
	require.NoError(t, err)
	assert.Equal(t, "nb/a.ipynb", gotPath)
	assert.Equal(t, "a", mod.Name)
}

func TestMetricsCollector_Operations(t *testing.T) {
	metrics := newMockMetricsCollector()

	metrics.RecordLatency("compile", 100*time.Millisecond, nil)
	metrics.RecordLatency("execute", 200*time.Millisecond, nil)
	assert.Len(t, metrics.latencies, 2, "Should record 2 latencies")

	metrics.RecordCounter("executions_total", 1, nil)
	metrics.RecordCounter("executions_total", 2, nil)
	assert.Equal(t, float64(3), metrics.counters["executions_total"], "Counter should sum")

	metrics.RecordGauge("registered_loaders", 2, nil)
	metrics.RecordGauge("registered_loaders", 1, nil)
	assert.Equal(t, float64(1), metrics.gauges["registered_loaders"], "Gauge should keep last value")

	metrics.RecordHistogram("unit_statements", 3, nil)
	metrics.RecordHistogram("unit_statements", 7, nil)
	assert.Equal(t, []float64{3, 7}, metrics.histograms["unit_statements"])
}
