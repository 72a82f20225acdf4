package application

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// ResolverRegistry is an explicit, injectable model of the host's ordered
// module resolution strategies. Each hook maps file extensions to loaders;
// hooks are consulted in order and the first matching entry wins.
// ResolverRegistry is safe for concurrent use.
type ResolverRegistry struct {
	// hooks holds the resolution strategies in priority order.
	hooks []ports.PathHook
	// cache maps case-folded extensions to the loader that resolved them.
	// It is cleared whenever the hooks change.
	cache map[string]ports.ModuleLoader
	// mu protects hooks and cache.
	mu      sync.RWMutex
	metrics ports.MetricsCollector
}

// NewResolverRegistry creates a registry holding hooks in order.
func NewResolverRegistry(metrics ports.MetricsCollector, hooks ...ports.PathHook) *ResolverRegistry {
	r := &ResolverRegistry{
		hooks:   cloneHooks(hooks),
		cache:   make(map[string]ports.ModuleLoader),
		metrics: orNoop(metrics),
	}
	r.recordHooks()
	return r
}

// NewFileFinderHook builds the native file finder hook that document
// loaders are installed into.
func NewFileFinderHook(name string, entries ...ports.LoaderEntry) ports.PathHook {
	return ports.PathHook{Name: name, Kind: ports.HookFileFinder, Entries: slices.Clone(entries)}
}

// Hooks returns a copy of the hooks in order.
func (r *ResolverRegistry) Hooks() []ports.PathHook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneHooks(r.hooks)
}

// AddHook appends a hook with the lowest priority.
func (r *ResolverRegistry) AddHook(hook ports.PathHook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks = append(r.hooks, cloneHook(hook))
	r.invalidate()
}

// FileFinder returns the first native file finder hook and its position.
func (r *ResolverRegistry) FileFinder() (int, ports.PathHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, h := range r.hooks {
		if h.Kind == ports.HookFileFinder {
			return i, cloneHook(h), true
		}
	}
	return -1, ports.PathHook{}, false
}

// ReplaceHook swaps the hook at index for hook.
func (r *ResolverRegistry) ReplaceHook(index int, hook ports.PathHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.hooks) {
		return fmt.Errorf("hook index %d out of range [0, %d)", index, len(r.hooks))
	}
	r.hooks[index] = cloneHook(hook)
	r.invalidate()
	return nil
}

// Resolve returns the loader for path. Extension matching is
// case-insensitive.
func (r *ResolverRegistry) Resolve(path string) (ports.ModuleLoader, error) {
	ext := foldExtension(filepath.Ext(path))
	if ext == "" {
		return nil, ports.NewLoaderError(path, "resolve", ports.ErrNotResolvable)
	}

	r.mu.RLock()
	loader, ok := r.cache[ext]
	r.mu.RUnlock()
	if ok {
		return loader, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.hooks {
		for _, e := range h.Entries {
			if foldExtension(e.Extension) == ext {
				r.cache[ext] = e.Loader
				return e.Loader, nil
			}
		}
	}
	return nil, ports.NewLoaderError(path, "resolve", ports.ErrNotResolvable)
}

// Load resolves path and loads it with the matching loader.
func (r *ResolverRegistry) Load(ctx context.Context, path string) (*domain.Module, error) {
	loader, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return loader.LoadModule(ctx, path)
}

// invalidate must be called with mu held.
func (r *ResolverRegistry) invalidate() {
	r.cache = make(map[string]ports.ModuleLoader)
	r.recordHooks()
}

func (r *ResolverRegistry) recordHooks() {
	entries := 0
	for _, h := range r.hooks {
		entries += len(h.Entries)
	}
	r.metrics.RecordGauge(ports.MetricRegisteredHooks, float64(entries), nil)
}

func cloneHook(h ports.PathHook) ports.PathHook {
	h.Entries = slices.Clone(h.Entries)
	return h
}

func cloneHooks(hooks []ports.PathHook) []ports.PathHook {
	out := make([]ports.PathHook, len(hooks))
	for i, h := range hooks {
		out[i] = cloneHook(h)
	}
	return out
}

// foldExtension normalizes an extension for comparison. A Caser is not
// safe for concurrent use, so one is created per call.
func foldExtension(ext string) string {
	return cases.Fold().String(ext)
}

// validExtension reports whether ext looks like ".ipynb".
func validExtension(ext string) bool {
	return len(ext) > 1 && ext[0] == '.' && !strings.ContainsAny(ext, `/\`)
}
