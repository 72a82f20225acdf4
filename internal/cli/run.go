package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-nbload/internal/application"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

func newRunCmd(g *globalOptions) *cobra.Command {
	var (
		sets    []string
		capture bool
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "run PATH",
		Short: "Load a document as a module and report its status",
		Long: `Run loads PATH through the resolver registry and prints the module
status. A failure inside the document is reported, not raised, unless
--strict is given.

With --set the document is run as a parameterized template: declared
parameters take their defaults and each NAME=VALUE pair overrides one.
VALUE is read as a literal when it parses as one and as a string otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: envRunE(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			path := args[0]
			capture = capture || e.cfg.Loader.CaptureOutput

			var (
				mod *domain.Module
				err error
			)
			if len(sets) > 0 {
				mod, err = runTemplate(ctx, e, path, sets, capture)
			} else {
				mod, err = e.load(ctx, path, application.LoadOptions{CaptureOutput: capture})
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printModule(out, mod)
			if capture && mod.Output != "" {
				fmt.Fprintf(out, "\n%s", mod.Output)
			}

			if strict {
				if err := mod.AssertComplete(); err != nil {
					return &ExitError{Code: 1, Message: err.Error()}
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "override a declared parameter as NAME=VALUE (can be repeated)")
	cmd.Flags().BoolVar(&capture, "capture", false, "buffer printed output and show it after the status line")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when the module did not complete cleanly")

	return cmd
}

func runTemplate(ctx context.Context, e *env, path string, sets []string, capture bool) (*domain.Module, error) {
	overrides, err := parseSets(e.runtime, sets)
	if err != nil {
		return nil, err
	}
	tmpl, err := e.template(ctx, path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	opts := ports.ExecOptions{}
	if capture {
		opts.Output = &buf
	}
	mod, err := tmpl.CallWith(ctx, overrides, opts)
	if err != nil {
		return nil, err
	}
	if capture {
		mod.Output = buf.String()
	}
	return mod, nil
}

// parseSets turns NAME=VALUE pairs into overrides. Values that parse as a
// literal of the runtime language keep that type; anything else is a
// string.
func parseSets(lang ports.Language, sets []string) (map[string]any, error) {
	overrides := make(map[string]any, len(sets))
	for _, set := range sets {
		name, raw, ok := strings.Cut(set, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected NAME=VALUE", set)
		}

		if _, v, isAssign, err := lang.ParseAssignment(name + " = " + raw); isAssign && err == nil {
			overrides[name] = v
			continue
		}
		overrides[name] = raw
	}
	return overrides, nil
}
