package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-nbload/infrastructure/markdown"
)

func newRenderCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render PATH",
		Short: "Print the code a literate Markdown document contributes",
		Long: `Render prints the concatenated fenced code blocks of a Markdown
document, which is the program the loader compiles for it. Line numbers in
errors for such documents count lines of this output.`,
		Args: cobra.ExactArgs(1),
		RunE: envRunE(g, func(_ context.Context, cmd *cobra.Command, e *env, args []string) error {
			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			r := markdown.NewRenderer(
				markdown.WithLanguages(e.cfg.Loader.FenceLanguages...),
				markdown.WithStripMagics(e.cfg.Loader.StripMagics),
			)
			code, err := r.Render(data)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), code)
			return err
		}),
	}
}
