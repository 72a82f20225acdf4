package application

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// tracerName is the instrumentation scope for every span the loader starts.
const tracerName = "github.com/ahrav/go-nbload"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// failSpan marks span as failed with err.
func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// noopMetrics discards every measurement. It stands in when no collector
// is configured.
type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)     {}

var _ ports.MetricsCollector = noopMetrics{}

func orNoop(m ports.MetricsCollector) ports.MetricsCollector {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// docLabels returns the label set identifying a document.
func docLabels(path string) map[string]string {
	return map[string]string{ports.LabelDocument: domain.ModuleName(path)}
}
