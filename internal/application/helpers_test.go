package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nbload/infrastructure/markdown"
	"github.com/ahrav/go-nbload/infrastructure/notebook"
	"github.com/ahrav/go-nbload/infrastructure/starlarkrt"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
	"github.com/ahrav/go-nbload/internal/testutils"
)

// stack bundles the services a test needs, all sharing one runtime and one
// recording metrics collector.
type stack struct {
	lang     *starlarkrt.Runtime
	metrics  *testutils.RecordingMetrics
	compiler *Compiler
	executor *Executor
	loader   *Loader
	params   *Parameterizer
}

func newStack(t *testing.T, opts ...ExecutorOption) *stack {
	t.Helper()

	lang, err := starlarkrt.New()
	require.NoError(t, err)

	metrics := testutils.NewRecordingMetrics()
	compiler := NewCompiler(lang, metrics)
	executor := NewExecutor(lang, append([]ExecutorOption{WithMetrics(metrics)}, opts...)...)
	loader := NewLoader(compiler, executor, metrics)
	require.NoError(t, loader.RegisterDecoder(notebook.Extension, notebook.Factory()))
	for _, ext := range markdown.Extensions {
		require.NoError(t, loader.RegisterDecoder(ext, markdown.Factory()))
	}

	return &stack{
		lang:     lang,
		metrics:  metrics,
		compiler: compiler,
		executor: executor,
		loader:   loader,
		params:   NewParameterizer(executor, metrics),
	}
}

// load loads a notebook from memory and requires the load itself to succeed.
func (s *stack) load(t *testing.T, path string, nb *testutils.NotebookBuilder) *domain.Module {
	t.Helper()
	mod, err := s.loader.LoadBytes(context.Background(), path, nb.Build(), LoadOptions{})
	require.NoError(t, err)
	return mod
}

// value returns a binding as a plain Go value.
func value(t *testing.T, mod *domain.Module, name string) any {
	t.Helper()
	v, ok := mod.Namespace.Get(name)
	require.True(t, ok, "binding %s missing", name)
	return starlarkrt.ToNative(v)
}

// stubLoader is a comparable ModuleLoader used to tell hook entries apart.
type stubLoader struct{ name string }

func (s *stubLoader) LoadModule(context.Context, string) (*domain.Module, error) {
	return domain.NewModule(s.name, &domain.Unit{Path: s.name}), nil
}

var _ ports.ModuleLoader = (*stubLoader)(nil)
