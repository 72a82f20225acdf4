package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-nbload/internal/ctxlog"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// LoadOptions tunes a single load.
type LoadOptions struct {
	// CaptureOutput buffers printed output into Module.Output instead of
	// writing it to the executor's writer.
	CaptureOutput bool
	// Decoder overrides the decoder chosen by file extension. Units
	// compiled with an explicit decoder bypass the compile cache.
	Decoder ports.DecoderFactory
}

// Loader turns documents into executed modules: it picks a decoder by file
// extension, compiles the fragments into a unit and runs the unit once.
// Use Loader to load documents from disk or memory while benefiting from
// SHA256-based caching of compiled units.
type Loader struct {
	// compiler parses decoded fragments into units.
	compiler *Compiler
	// executor runs units and records module status.
	executor *Executor
	// decoders maps case-folded extensions to decoder factories.
	decoders map[string]ports.DecoderFactory
	// decodersMu guards decoders.
	decodersMu sync.RWMutex
	// cache stores compiled units indexed by the SHA256 hash of path and
	// content. Modules are never cached: each load gets a fresh namespace.
	// WARNING: cached units MUST NOT be mutated.
	cache map[string]*domain.Unit
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when multiple goroutines load the
	// same document simultaneously.
	sf      singleflight.Group
	metrics ports.MetricsCollector
}

// NewLoader creates a loader with no decoders registered.
func NewLoader(compiler *Compiler, executor *Executor, metrics ports.MetricsCollector) *Loader {
	return &Loader{
		compiler: compiler,
		executor: executor,
		decoders: make(map[string]ports.DecoderFactory),
		cache:    make(map[string]*domain.Unit),
		metrics:  orNoop(metrics),
	}
}

// RegisterDecoder maps a file extension to a decoder factory. Registering
// an extension again replaces its factory and clears the compile cache.
func (l *Loader) RegisterDecoder(ext string, factory ports.DecoderFactory) error {
	if !validExtension(ext) {
		return fmt.Errorf("invalid extension %q: must start with a dot and name no directory", ext)
	}
	if factory == nil {
		return fmt.Errorf("decoder factory for %s cannot be nil", ext)
	}

	l.decodersMu.Lock()
	l.decoders[foldExtension(ext)] = factory
	l.decodersMu.Unlock()

	l.ClearCache()
	return nil
}

// Extensions returns the registered extensions, sorted.
func (l *Loader) Extensions() []string {
	l.decodersMu.RLock()
	defer l.decodersMu.RUnlock()

	exts := make([]string, 0, len(l.decoders))
	for ext := range l.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Executor returns the executor modules are run with.
func (l *Loader) Executor() *Executor { return l.executor }

// LoadFile reads, compiles and runs the document at path.
// The returned module carries the run's status; a failure of the running
// code is not an error. LoadFile returns an error if the file cannot be
// read, decoded, compiled or turned into a runnable program.
func (l *Loader) LoadFile(ctx context.Context, path string, opts LoadOptions) (*domain.Module, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, ports.NewLoaderError(cleanPath, "read", err)
	}
	return l.LoadBytes(ctx, cleanPath, data, opts)
}

// LoadBytes compiles and runs data as the document at path.
func (l *Loader) LoadBytes(ctx context.Context, path string, data []byte, opts LoadOptions) (*domain.Module, error) {
	ctx, span := tracer().Start(ctx, "load")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.path", path),
		attribute.Bool("load.capture_output", opts.CaptureOutput),
	)
	start := time.Now()

	unit, err := l.Compile(ctx, path, data, opts.Decoder)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	mod := domain.NewModule(path, unit)
	var out bytes.Buffer
	execOpts := ports.ExecOptions{}
	if opts.CaptureOutput {
		execOpts.Output = &out
	}

	err = l.executor.ExecuteOnce(ctx, mod, execOpts)
	if opts.CaptureOutput {
		mod.Output = out.String()
	}
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("module.status", mod.Status().State().String()))
	l.metrics.RecordLatency("load", time.Since(start), docLabels(path))
	return mod, nil
}

// Compile decodes and compiles data without running it. With a nil factory
// the decoder registered for the path's extension is used and the result
// is cached.
// WARNING: the returned unit may be a cached instance and MUST NOT be
// mutated.
func (l *Loader) Compile(
	ctx context.Context,
	path string,
	data []byte,
	factory ports.DecoderFactory,
) (*domain.Unit, error) {
	if factory != nil {
		return l.compiler.Compile(ctx, path, factory(path).Decode(data))
	}

	factory, err := l.DecoderFor(path)
	if err != nil {
		return nil, err
	}

	hash := contentHash(path, data)
	v, err, _ := l.sf.Do(hash, func() (any, error) {
		if unit, ok := l.getCachedUnit(hash); ok {
			l.metrics.RecordCounter(ports.MetricCompileCache, 1, map[string]string{ports.LabelResult: "hit"})
			ctxlog.FromContext(ctx).Debug("compile cache hit", "path", path)
			return unit, nil
		}
		l.metrics.RecordCounter(ports.MetricCompileCache, 1, map[string]string{ports.LabelResult: "miss"})

		unit, err := l.compiler.Compile(ctx, path, factory(path).Decode(data))
		if err != nil {
			return nil, err
		}
		l.cacheUnit(hash, unit)
		return unit, nil
	})
	if err != nil {
		return nil, err
	}
	unit, ok := v.(*domain.Unit)
	if !ok {
		return nil, ports.NewCacheError(hash, "compile", ports.ErrCacheCorrupted)
	}
	return unit, nil
}

// DecoderFor returns the factory registered for path's extension. It
// returns a *ports.LoaderError wrapping ErrUnsupportedExtension otherwise.
func (l *Loader) DecoderFor(path string) (ports.DecoderFactory, error) {
	ext := foldExtension(filepath.Ext(path))

	l.decodersMu.RLock()
	factory, ok := l.decoders[ext]
	l.decodersMu.RUnlock()

	if !ok {
		return nil, ports.NewLoaderError(path, "decode",
			fmt.Errorf("%w: %q", ports.ErrUnsupportedExtension, filepath.Ext(path)))
	}
	return factory, nil
}

// ModuleLoader adapts the loader to ports.ModuleLoader for a resolver
// registry entry. A nil factory selects the decoder by extension.
func (l *Loader) ModuleLoader(factory ports.DecoderFactory, opts LoadOptions) ports.ModuleLoader {
	opts.Decoder = factory
	return ports.ModuleLoaderFunc(func(ctx context.Context, path string) (*domain.Module, error) {
		return l.LoadFile(ctx, path, opts)
	})
}

// contentHash keys the compile cache on both path and content, since the
// path is part of every diagnostic the unit produces.
func contentHash(path string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Loader) getCachedUnit(hash string) (*domain.Unit, bool) {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()

	unit, ok := l.cache[hash]
	return unit, ok
}

func (l *Loader) cacheUnit(hash string, unit *domain.Unit) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	l.cache[hash] = unit
}

// ClearCache removes all cached units, forcing subsequent loads to
// recompile from source.
func (l *Loader) ClearCache() {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	l.cache = make(map[string]*domain.Unit)
}

// CacheSize returns the number of cached units.
func (l *Loader) CacheSize() int {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()

	return len(l.cache)
}
