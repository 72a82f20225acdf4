package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-nbload/infrastructure/markdown"
	"github.com/ahrav/go-nbload/infrastructure/middleware"
	"github.com/ahrav/go-nbload/infrastructure/notebook"
	"github.com/ahrav/go-nbload/infrastructure/starlarkrt"
	"github.com/ahrav/go-nbload/internal/application"
	"github.com/ahrav/go-nbload/internal/ctxlog"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// nativeHookName names the file finder hook the CLI starts with.
const nativeHookName = "FileFinder"

// env is the loader stack assembled for one command invocation.
type env struct {
	cfg      *application.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	runtime  *starlarkrt.Runtime
	loader   *application.Loader
	resolver *application.ResolverRegistry
	params   *application.Parameterizer
	out      io.Writer
}

// newEnv loads configuration, applies flag overrides and builds the stack.
// Printed module output goes to out; logs go to errOut. A configuration
// file named explicitly must exist; the default one is optional.
func newEnv(g *globalOptions, explicitConfig bool, out, errOut io.Writer) (*env, error) {
	if explicitConfig {
		if _, err := os.Stat(filepath.Clean(g.configPath)); errors.Is(err, fs.ErrNotExist) {
			return nil, ports.NewConfigError(g.configPath, ports.ErrConfigNotFound)
		}
	}
	cfg, err := application.LoadConfig(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if err := application.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	rt, err := starlarkrt.New(starlarkrt.WithModules(cfg.Runtime.Modules...))
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)

	executor := application.NewExecutor(rt,
		application.WithOutput(out),
		application.WithMaxSteps(cfg.Runtime.MaxSteps),
		application.WithMetrics(metrics),
	)
	loader := application.NewLoader(application.NewCompiler(rt, metrics), executor, metrics)

	nb := notebook.Factory(notebook.WithStripMagics(cfg.Loader.StripMagics))
	for _, ext := range cfg.Loader.NotebookExtensions {
		if err := loader.RegisterDecoder(ext, nb); err != nil {
			return nil, err
		}
	}
	renderer := markdown.NewRenderer(
		markdown.WithLanguages(cfg.Loader.FenceLanguages...),
		markdown.WithStripMagics(cfg.Loader.StripMagics),
	)
	md := func(path string) ports.Decoder { return markdown.NewDecoder(path, renderer) }
	for _, ext := range cfg.Loader.MarkdownExtensions {
		if err := loader.RegisterDecoder(ext, md); err != nil {
			return nil, err
		}
	}
	lit := notebook.Factory(notebook.WithLiterate(renderer))
	for _, ext := range cfg.Loader.LiterateExtensions {
		if err := loader.RegisterDecoder(ext, lit); err != nil {
			return nil, err
		}
	}

	return &env{
		cfg:      cfg,
		logger:   newLogger(cfg.Logging.Level, cfg.Logging.Format, errOut),
		registry: reg,
		runtime:  rt,
		loader:   loader,
		resolver: application.NewResolverRegistry(metrics, application.NewFileFinderHook(nativeHookName)),
		params:   application.NewParameterizer(executor, metrics),
		out:      out,
	}, nil
}

// envRunE adapts fn to a cobra RunE: it builds the env, runs fn with a
// context carrying the logger and writes the metrics dump afterwards.
func envRunE(
	g *globalOptions,
	fn func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error,
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		e, err := newEnv(g, cmd.Flags().Changed("config"), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, e.dumpMetrics(g.metricsOut))
		}()

		ctx := ctxlog.WithLogger(cmd.Context(), e.logger)
		return fn(ctx, cmd, e, args)
	}
}

// load resolves path through the resolver registry with the decoder for
// its extension installed for the duration of the load.
func (e *env) load(ctx context.Context, path string, opts application.LoadOptions) (*domain.Module, error) {
	factory, err := e.loader.DecoderFor(path)
	if err != nil {
		return nil, err
	}

	importer := application.NewImporter(e.resolver, e.loader, opts)
	var mod *domain.Module
	err = importer.Scoped(ctx, []string{filepath.Ext(path)}, factory, func(ctx context.Context) error {
		var lerr error
		mod, lerr = e.resolver.Load(ctx, path)
		return lerr
	})
	return mod, err
}

// template compiles path without running it and extracts its parameters.
func (e *env) template(ctx context.Context, path string) (*application.Template, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	unit, err := e.loader.Compile(ctx, path, data, nil)
	if err != nil {
		return nil, err
	}
	return e.params.Parameterize(ctx, domain.NewModule(path, unit))
}

// dumpMetrics writes the registry in the Prometheus text format. An empty
// target disables the dump; "-" writes to the command output.
func (e *env) dumpMetrics(target string) error {
	if target == "" {
		return nil
	}

	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	w := e.out
	if target != "-" {
		f, err := os.Create(filepath.Clean(target))
		if err != nil {
			return fmt.Errorf("failed to create metrics file: %w", err)
		}
		defer f.Close()
		w = f
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// newLogger creates a slog.Logger for the configured level and format.
// It does not set the global logger.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
