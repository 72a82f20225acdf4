package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// importerHookSuffix marks the file finder hook the importer installs.
const importerHookSuffix = "+nbload"

// Importer installs document loaders into a ResolverRegistry's native file
// finder hook and removes them again.
//
// Register saves the native hook the first time it runs and installs a
// replacement whose document entries come before the native ones.
// Registering again rebuilds the replacement from the saved hook, so
// register; register; unregister leaves the registry exactly as it was.
type Importer struct {
	registry *ResolverRegistry
	loader   *Loader
	opts     LoadOptions

	mu    sync.Mutex
	saved *ports.PathHook
}

// NewImporter creates an importer that loads documents with loader.
func NewImporter(registry *ResolverRegistry, loader *Loader, opts LoadOptions) *Importer {
	return &Importer{registry: registry, loader: loader, opts: opts}
}

// Register installs factory for every extension in exts.
// It returns a *domain.RegistrationError when the registry has no native
// file finder hook or an extension is malformed.
func (i *Importer) Register(exts []string, factory ports.DecoderFactory) error {
	if len(exts) == 0 {
		return registrationError("register", "no extensions given")
	}
	for _, ext := range exts {
		if !validExtension(ext) {
			return registrationError("register", fmt.Sprintf("invalid extension %q", ext))
		}
	}
	if factory == nil {
		return registrationError("register", "decoder factory cannot be nil")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	index, current, ok := i.registry.FileFinder()
	if !ok {
		return registrationError("register", "no native file finder hook is installed")
	}
	if i.saved == nil {
		i.saved = &current
	}

	loader := i.loader.ModuleLoader(factory, i.opts)
	entries := make([]ports.LoaderEntry, 0, len(exts)+len(i.saved.Entries))
	for _, ext := range exts {
		entries = append(entries, ports.LoaderEntry{Extension: ext, Loader: loader})
	}
	entries = append(entries, i.saved.Entries...)

	replacement := ports.PathHook{
		Name:    i.saved.Name + importerHookSuffix,
		Kind:    ports.HookFileFinder,
		Entries: entries,
	}
	return i.registry.ReplaceHook(index, replacement)
}

// Unregister restores the native hook saved by Register. It is a no-op
// when nothing is registered.
func (i *Importer) Unregister() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.saved == nil {
		return nil
	}

	index, _, ok := i.registry.FileFinder()
	if !ok {
		return registrationError("unregister", "the installed file finder hook was removed")
	}
	if err := i.registry.ReplaceHook(index, *i.saved); err != nil {
		return fmt.Errorf("failed to restore file finder hook: %w", err)
	}
	i.saved = nil
	return nil
}

// Registered reports whether document loaders are currently installed.
func (i *Importer) Registered() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.saved != nil
}

// Scoped registers factory for exts, runs fn and unregisters again, even
// when fn fails.
func (i *Importer) Scoped(
	ctx context.Context,
	exts []string,
	factory ports.DecoderFactory,
	fn func(ctx context.Context) error,
) (err error) {
	if err := i.Register(exts, factory); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, i.Unregister())
	}()
	return fn(ctx)
}

func registrationError(op, reason string) error {
	return domain.NewRegistrationError(op, reason)
}
