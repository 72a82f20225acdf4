package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/go-nbload/internal/ctxlog"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// Executor runs compiled units against module namespaces and records the
// outcome in the module's status. A failure raised by the running code is
// stored, never returned; callers opt into raising with
// domain.Module.AssertComplete.
type Executor struct {
	lang     ports.Language
	metrics  ports.MetricsCollector
	output   io.Writer
	maxSteps uint64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithOutput sets the writer that receives printed output when a run does
// not supply its own.
func WithOutput(w io.Writer) ExecutorOption {
	return func(e *Executor) { e.output = w }
}

// WithMaxSteps bounds every run to n runtime steps. Zero means unbounded.
func WithMaxSteps(n uint64) ExecutorOption {
	return func(e *Executor) { e.maxSteps = n }
}

// WithMetrics sets the collector for execution metrics.
func WithMetrics(m ports.MetricsCollector) ExecutorOption {
	return func(e *Executor) { e.metrics = orNoop(m) }
}

// NewExecutor creates an executor for lang.
func NewExecutor(lang ports.Language, opts ...ExecutorOption) *Executor {
	e := &Executor{lang: lang, metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Language returns the runtime the executor runs units with.
func (e *Executor) Language() ports.Language { return e.lang }

// ExecuteOnce runs the module's unit against its namespace.
//
// The status is Pending while the run is in progress, Ok after a clean run
// and Failed after the code raised. Calling ExecuteOnce again re-runs every
// statement against the namespace as it is now.
//
// An error is returned only when the unit could not be run at all, for
// example when it breaks outside a loop. The status then stays Pending.
// A reference to an undefined name is an ordinary failure.
func (e *Executor) ExecuteOnce(ctx context.Context, mod *domain.Module, opts ports.ExecOptions) error {
	ctx, span := tracer().Start(ctx, "execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("module.name", mod.Name),
		attribute.String("document.path", mod.Path),
	)

	if opts.Output == nil {
		opts.Output = e.output
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = e.maxSteps
	}

	mod.SetStatus(domain.Pending())
	start := time.Now()
	err := e.lang.Exec(ctx, mod.Unit, mod.Namespace, opts)
	e.refreshDoc(mod)

	labels := docLabels(mod.Path)
	e.metrics.RecordLatency("execute", time.Since(start), labels)
	e.metrics.RecordGauge(ports.MetricNamespaceSize, float64(mod.Namespace.Len()), labels)

	var execErr *domain.ExecutionError
	switch {
	case err == nil:
		mod.SetStatus(domain.Ok())
	case errors.As(err, &execErr):
		mod.SetStatus(domain.Failed(execErr))
		span.SetAttributes(attribute.Int("failure.line", execErr.Line))
		failSpan(span, execErr)
		ctxlog.FromContext(ctx).Warn("module failed",
			"module", mod.Name,
			"line", execErr.Line,
			"error", execErr.Msg,
		)
	default:
		failSpan(span, err)
		e.metrics.RecordCounter(ports.MetricModulesLoaded, 1, statusLabels(mod.Path, "error"))
		return fmt.Errorf("failed to execute %s: %w", mod.Path, err)
	}

	e.metrics.RecordCounter(ports.MetricModulesLoaded, 1, statusLabels(mod.Path, mod.Status().State().String()))
	return nil
}

// refreshDoc copies a string __doc__ binding into the module doc.
func (e *Executor) refreshDoc(mod *domain.Module) {
	v, ok := mod.Namespace.Get(domain.DocBinding)
	if !ok {
		return
	}
	if doc, ok := e.lang.Native(v).(string); ok {
		mod.Doc = doc
	}
}

func statusLabels(path, status string) map[string]string {
	labels := docLabels(path)
	labels[ports.LabelStatus] = status
	return labels
}
