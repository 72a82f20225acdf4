package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// previewWidth bounds the first-line preview in the fragments table.
const previewWidth = 48

func newFragmentsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fragments PATH",
		Short: "Show the fragments a document decodes into and their start lines",
		Args:  cobra.ExactArgs(1),
		RunE: envRunE(g, func(_ context.Context, cmd *cobra.Command, e *env, args []string) error {
			path := args[0]
			factory, err := e.loader.DecoderFor(path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			table := newTable(cmd.OutOrStdout(), "#", "Kind", "Line", "Lines", "First line")
			i := 0
			for frag, err := range factory(path).Decode(data) {
				if err != nil {
					table.Render()
					return err
				}
				table.Append([]string{
					strconv.Itoa(i),
					frag.Kind.String(),
					strconv.Itoa(frag.Line),
					strconv.Itoa(frag.LineCount()),
					preview(frag.Text),
				})
				i++
			}
			table.Render()
			return nil
		}),
	}
}

func preview(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	if r := []rune(first); len(r) > previewWidth {
		return string(r[:previewWidth-3]) + "..."
	}
	return first
}
