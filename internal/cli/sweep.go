package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSweepCmd(g *globalOptions) *cobra.Command {
	var (
		gridPath    string
		parallelism int
		ratePerSec  float64
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "sweep PATH --grid GRID",
		Short: "Run a parameterized document once per entry of a grid",
		Long: `Sweep runs PATH as a template once for every entry of the YAML grid
file, a list of parameter maps:

  - {alpha: 0.1, label: small}
  - {alpha: 0.5}

Each run gets its own namespace. Results are printed in grid order.`,
		Args: cobra.ExactArgs(1),
		RunE: envRunE(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			grid, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			tmpl, err := e.template(ctx, args[0])
			if err != nil {
				return err
			}

			opts := e.cfg.SweepOptions()
			if cmd.Flags().Changed("parallel") {
				opts.Parallelism = parallelism
			}
			if cmd.Flags().Changed("rate") {
				opts.RatePerSecond = ratePerSec
			}

			results, err := tmpl.Sweep(ctx, grid, opts)
			out := cmd.OutOrStdout()
			styles := newStatusStyles(out)
			table := newTable(out, "#", "Parameters", "Status", "Detail")
			incomplete := 0
			for i, r := range results {
				status, detail := "", ""
				switch {
				case r.Err != nil:
					status, detail = styles.failed.Render("error"), r.Err.Error()
					incomplete++
				case r.Module != nil:
					status = styles.state(r.Module.Status())
					if ferr := r.Module.Status().Err(); ferr != nil {
						detail = ferr.Error()
					}
					if !r.Module.Status().IsOk() {
						incomplete++
					}
				default:
					status = styles.pending.Render("skipped")
					incomplete++
				}
				table.Append([]string{strconv.Itoa(i), formatOverrides(r.Overrides), status, detail})
			}
			table.Render()
			if err != nil {
				return err
			}

			if strict && incomplete > 0 {
				return &ExitError{Code: 1, Message: fmt.Sprintf("%d of %d runs did not complete", incomplete, len(results))}
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&gridPath, "grid", "g", "", "YAML file listing one parameter map per run")
	cmd.Flags().IntVarP(&parallelism, "parallel", "p", 0, "maximum concurrent runs (defaults to the configured value)")
	cmd.Flags().Float64Var(&ratePerSec, "rate", 0, "maximum run starts per second, 0 for unpaced (defaults to the configured value)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when any run did not complete cleanly")
	_ = cmd.MarkFlagRequired("grid")

	return cmd
}

// loadGrid reads a YAML list of parameter maps. An empty file is an empty
// grid.
func loadGrid(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read grid: %w", err)
	}

	var grid []map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&grid); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid grid %s: %w", path, err)
	}
	return grid, nil
}

func formatOverrides(overrides map[string]any) string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, overrides[k])
	}
	return strings.Join(parts, " ")
}
