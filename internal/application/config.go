package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// DefaultConfigFile is the file name the CLI looks for when no --config
// flag is given.
const DefaultConfigFile = "nbload.yaml"

// Config is the complete loader configuration and the entry point of
// nbload.yaml.
type Config struct {
	// Version specifies the configuration schema version using semantic
	// versioning.
	Version string `yaml:"version" validate:"required,semver"`
	// Loader controls how documents are decoded and loaded.
	Loader LoaderConfig `yaml:"loader"`
	// Runtime controls the code runtime.
	Runtime RuntimeConfig `yaml:"runtime"`
	// Logging controls the structured logger.
	Logging LoggingConfig `yaml:"logging"`
	// Sweep controls parameter sweeps.
	Sweep SweepConfig `yaml:"sweep"`
}

// LoaderConfig selects the document formats the loader accepts.
type LoaderConfig struct {
	// NotebookExtensions are decoded as notebook JSON.
	NotebookExtensions []string `yaml:"notebook_extensions" validate:"required,min=1,dive,extension"`
	// MarkdownExtensions are decoded as literate Markdown.
	MarkdownExtensions []string `yaml:"markdown_extensions" validate:"dive,extension"`
	// LiterateExtensions are decoded as notebook JSON whose blocks are read
	// as Markdown, keeping only their fenced code.
	LiterateExtensions []string `yaml:"literate_extensions" validate:"dive,extension"`
	// CaptureOutput buffers printed output into the module.
	CaptureOutput bool `yaml:"capture_output"`
	// StripMagics turns magic and shell lines into comments, in notebook
	// code blocks and in Markdown fences alike.
	StripMagics bool `yaml:"strip_magics"`
	// FenceLanguages restricts which Markdown fences are code.
	FenceLanguages []string `yaml:"fence_languages" validate:"dive,min=1,max=50"`
}

// RuntimeConfig tunes code execution.
type RuntimeConfig struct {
	// MaxSteps bounds each run. Zero means unbounded.
	MaxSteps uint64 `yaml:"max_steps"`
	// Modules lists the library modules predeclared for code.
	Modules []string `yaml:"modules" validate:"dive,oneof=json math time struct"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"required,loglevel"`
	Format string `yaml:"format" validate:"required,oneof=text json"`
}

// SweepConfig holds the defaults for parameter sweeps.
type SweepConfig struct {
	Parallelism   int     `yaml:"parallelism" validate:"min=1,max=256"`
	RatePerSecond float64 `yaml:"rate_per_second" validate:"min=0"`
	Burst         int     `yaml:"burst" validate:"min=0,max=1000"`
}

// DefaultConfig returns a configuration with every field set.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Loader: LoaderConfig{
			NotebookExtensions: []string{".ipynb"},
			MarkdownExtensions: []string{".md", ".markdown"},
			LiterateExtensions: []string{".lipynb"},
			StripMagics:        true,
		},
		Runtime: RuntimeConfig{
			Modules: []string{"json", "math", "struct", "time"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Sweep:   SweepConfig{Parallelism: 4, Burst: 1},
	}
}

// SweepOptions converts the sweep section to SweepOptions.
func (c *Config) SweepOptions() SweepOptions {
	return SweepOptions{
		Parallelism:   c.Sweep.Parallelism,
		RatePerSecond: c.Sweep.RatePerSecond,
		Burst:         c.Sweep.Burst,
	}
}

// LoadConfig reads the configuration at path. A missing file yields the
// defaults. LoadConfig returns an error if the file cannot be read,
// contains unknown fields or fails validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, ports.NewConfigError(path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
// Decoding is strict: unknown fields are rejected so typos are not
// silently ignored.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig checks cfg against its struct tags and custom validators.
// Every failing field is reported in one *domain.ValidationError.
func ValidateConfig(cfg *Config) error {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	verr := domain.NewValidationError("config")
	for _, fe := range fieldErrs {
		verr.AddError(fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return verr
}
