package ports

import (
	"context"
	"iter"
	"time"

	"github.com/ahrav/go-nbload/internal/domain"
)

// Decoder turns raw document bytes into located fragments.
// Implementations exist for notebook JSON and for Markdown prose.
type Decoder interface {
	// Decode returns a lazy sequence of fragments in document order.
	// Ranging over the sequence again decodes the bytes again.
	// A structural failure is yielded once as a *domain.DocumentError,
	// after which the sequence stops.
	Decode(data []byte) iter.Seq2[domain.Fragment, error]
}

// DecoderFactory creates a Decoder for a document path.
type DecoderFactory func(path string) Decoder

// ModuleLoader produces a module for a path. It is the unit of a resolution
// strategy: the resolver registry maps file extensions to loaders.
type ModuleLoader interface {
	LoadModule(ctx context.Context, path string) (*domain.Module, error)
}

// ModuleLoaderFunc adapts a function to the ModuleLoader interface.
type ModuleLoaderFunc func(ctx context.Context, path string) (*domain.Module, error)

// LoadModule calls f.
func (f ModuleLoaderFunc) LoadModule(ctx context.Context, path string) (*domain.Module, error) {
	return f(ctx, path)
}

// HookKind classifies resolution hooks.
type HookKind int

const (
	// HookCustom is a hook installed by a third party.
	HookCustom HookKind = iota
	// HookFileFinder is the host's native file finder, the hook point that
	// document loaders are installed into.
	HookFileFinder
)

// LoaderEntry binds a file extension to a loader.
type LoaderEntry struct {
	Extension string
	Loader    ModuleLoader
}

// PathHook is one resolution strategy: an ordered list of extension
// bindings. The first entry whose extension matches a path wins.
type PathHook struct {
	Name    string
	Kind    HookKind
	Entries []LoaderEntry
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus,
// OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like registered loaders.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like statement counts.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// Metric names recorded by the loader. Label keys are LabelDocument,
// LabelStatus and LabelResult.
const (
	MetricModulesLoaded     = "modules_loaded_total"
	MetricCompileCache      = "compile_cache_total"
	MetricParameters        = "parameters_declared"
	MetricStatementsPerUnit = "statements_per_unit"
	MetricRegisteredHooks   = "registered_hooks"
	MetricNamespaceSize     = "namespace_bindings"

	LabelDocument = "document"
	LabelStatus   = "status"
	LabelResult   = "result"
)
