// Package cli wires the loader into the nbload command line. It parses
// flags, builds the runtime stack from configuration and maps outcomes to
// process exit codes.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-nbload/internal/application"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	metricsOut string
}

// NewRootCmd builds the nbload command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "nbload",
		Short: "Load notebooks and literate documents as Starlark modules",
		Long: `nbload treats Jupyter notebooks and literate Markdown documents as
importable Starlark modules.

Code cells are compiled with their original document line numbers, run
once into a module namespace, and the outcome is recorded instead of
aborting the load. Documents that declare parameters with string
statements such as """x = 1""" can be re-run with overrides.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", application.DefaultConfigFile, "path to the configuration file")
	flags.StringVar(&g.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "override the configured log format (text, json)")
	flags.StringVar(&g.metricsOut, "metrics", "", "write Prometheus metrics to this file when the command ends (- for stdout)")

	cmd.AddCommand(
		newRunCmd(g),
		newParamsCmd(g),
		newFragmentsCmd(g),
		newRenderCmd(g),
		newSweepCmd(g),
	)
	return cmd
}

// Execute runs the command tree with args, writing command output to out
// and logs to errOut.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}
