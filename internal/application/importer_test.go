package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nbload/infrastructure/notebook"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
	"github.com/ahrav/go-nbload/internal/testutils"
)

var (
	sourceLoader = &stubLoader{name: "source"}
	zipLoader    = &stubLoader{name: "zip"}
)

func hostHooks() []ports.PathHook {
	return []ports.PathHook{
		{Name: "zipimport", Kind: ports.HookCustom, Entries: []ports.LoaderEntry{{Extension: ".zip", Loader: zipLoader}}},
		NewFileFinderHook("files", ports.LoaderEntry{Extension: ".star", Loader: sourceLoader}),
	}
}

func newImporter(t *testing.T, hooks ...ports.PathHook) (*Importer, *ResolverRegistry, *stack) {
	t.Helper()
	s := newStack(t)
	registry := NewResolverRegistry(s.metrics, hooks...)
	return NewImporter(registry, s.loader, LoadOptions{}), registry, s
}

func TestImporter_RegisterTwiceThenUnregisterRestoresHooks(t *testing.T) {
	imp, registry, _ := newImporter(t, hostHooks()...)
	before := registry.Hooks()

	require.NoError(t, imp.Register([]string{".ipynb"}, notebook.Factory()))
	require.NoError(t, imp.Register([]string{".ipynb"}, notebook.Factory()))

	during := registry.Hooks()
	require.Len(t, during, 2)
	assert.Equal(t, before[0], during[0], "other hooks are untouched")
	assert.Equal(t, "files+nbload", during[1].Name)
	require.Len(t, during[1].Entries, 2, "registering twice must not stack entries")
	assert.Equal(t, ".ipynb", during[1].Entries[0].Extension)
	assert.Equal(t, before[1].Entries[0], during[1].Entries[1])

	require.NoError(t, imp.Unregister())
	assert.Equal(t, before, registry.Hooks())
	assert.False(t, imp.Registered())

	require.NoError(t, imp.Unregister(), "unregistering again is a no-op")
	assert.Equal(t, before, registry.Hooks())
}

func TestImporter_RegisteredNotebooksResolveAndLoad(t *testing.T) {
	imp, registry, _ := newImporter(t, hostHooks()...)
	require.NoError(t, imp.Register([]string{".ipynb"}, notebook.Factory()))

	dir := t.TempDir()
	path := writeNotebook(t, dir, "report.ipynb", testutils.NewNotebook().Code("answer = 6 * 7"))

	mod, err := registry.Load(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, mod.Status().IsOk())
	assert.Equal(t, int64(42), value(t, mod, "answer"))

	loader, err := registry.Resolve("lib.star")
	require.NoError(t, err)
	assert.Same(t, sourceLoader, loader, "native entries still resolve")
}

func TestImporter_RegisterWithoutFileFinder(t *testing.T) {
	imp, _, _ := newImporter(t, ports.PathHook{Name: "zipimport", Kind: ports.HookCustom})

	err := imp.Register([]string{".ipynb"}, notebook.Factory())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRegistration)

	var rerr *domain.RegistrationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "register", rerr.Operation)
	assert.False(t, imp.Registered())
}

func TestImporter_RegisterValidatesArguments(t *testing.T) {
	imp, registry, _ := newImporter(t, hostHooks()...)
	before := registry.Hooks()

	tests := []struct {
		name    string
		exts    []string
		factory ports.DecoderFactory
	}{
		{name: "no extensions", exts: nil, factory: notebook.Factory()},
		{name: "missing dot", exts: []string{"ipynb"}, factory: notebook.Factory()},
		{name: "nil factory", exts: []string{".ipynb"}, factory: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := imp.Register(tt.exts, tt.factory)
			assert.ErrorIs(t, err, domain.ErrRegistration)
			assert.Equal(t, before, registry.Hooks())
		})
	}
}

func TestImporter_Scoped(t *testing.T) {
	imp, registry, _ := newImporter(t, hostHooks()...)
	before := registry.Hooks()

	err := imp.Scoped(context.Background(), []string{".ipynb"}, notebook.Factory(), func(context.Context) error {
		_, err := registry.Resolve("inside.ipynb")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, before, registry.Hooks())

	_, err = registry.Resolve("outside.ipynb")
	assert.ErrorIs(t, err, ports.ErrNotResolvable)

	boom := errors.New("boom")
	err = imp.Scoped(context.Background(), []string{".ipynb"}, notebook.Factory(), func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, imp.Registered(), "hooks are restored when fn fails")
}
