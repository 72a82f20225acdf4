package testutils

import (
	"sync"
	"time"

	"github.com/ahrav/go-nbload/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.MetricsCollector = (*RecordingMetrics)(nil)

// MetricKind identifies the MetricsCollector method a measurement came from.
type MetricKind string

// Measurement kinds.
const (
	KindLatency   MetricKind = "latency"
	KindCounter   MetricKind = "counter"
	KindGauge     MetricKind = "gauge"
	KindHistogram MetricKind = "histogram"
)

// Measurement is one recorded call.
type Measurement struct {
	Kind   MetricKind
	Name   string
	Value  float64
	Labels map[string]string
}

// RecordingMetrics is a MetricsCollector that keeps every measurement in
// memory. It is safe for concurrent use.
type RecordingMetrics struct {
	mu           sync.Mutex
	measurements []Measurement
}

// NewRecordingMetrics creates an empty recorder.
func NewRecordingMetrics() *RecordingMetrics { return &RecordingMetrics{} }

func (r *RecordingMetrics) record(kind MetricKind, name string, value float64, labels map[string]string) {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.measurements = append(r.measurements, Measurement{Kind: kind, Name: name, Value: value, Labels: copied})
}

// RecordLatency records the duration in seconds.
func (r *RecordingMetrics) RecordLatency(operation string, d time.Duration, labels map[string]string) {
	r.record(KindLatency, operation, d.Seconds(), labels)
}

// RecordCounter records a counter increment.
func (r *RecordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.record(KindCounter, metric, value, labels)
}

// RecordGauge records a gauge value.
func (r *RecordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.record(KindGauge, metric, value, labels)
}

// RecordHistogram records a histogram observation.
func (r *RecordingMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	r.record(KindHistogram, metric, value, labels)
}

// Find returns the measurements of kind and name whose labels include every
// pair in match, in recording order.
func (r *RecordingMetrics) Find(kind MetricKind, name string, match map[string]string) []Measurement {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Measurement
	for _, m := range r.measurements {
		if m.Kind != kind || m.Name != name || !hasLabels(m.Labels, match) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Sum adds up the values Find returns.
func (r *RecordingMetrics) Sum(kind MetricKind, name string, match map[string]string) float64 {
	var total float64
	for _, m := range r.Find(kind, name, match) {
		total += m.Value
	}
	return total
}

// Last returns the most recent value Find returns.
func (r *RecordingMetrics) Last(kind MetricKind, name string, match map[string]string) (float64, bool) {
	found := r.Find(kind, name, match)
	if len(found) == 0 {
		return 0, false
	}
	return found[len(found)-1].Value, true
}

func hasLabels(labels, match map[string]string) bool {
	for k, v := range match {
		if labels[k] != v {
			return false
		}
	}
	return true
}
