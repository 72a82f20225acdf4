package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/ahrav/go-nbload/internal/domain"
)

// statusStyles colors module states. Colors are dropped automatically when
// w is not a terminal.
type statusStyles struct {
	ok      lipgloss.Style
	failed  lipgloss.Style
	pending lipgloss.Style
	faint   lipgloss.Style
}

func newStatusStyles(w io.Writer) statusStyles {
	r := lipgloss.NewRenderer(w)
	return statusStyles{
		ok:      r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		failed:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		pending: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		faint:   r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (s statusStyles) state(st domain.Status) string {
	label := st.State().String()
	switch {
	case st.IsOk():
		return s.ok.Render(label)
	case st.IsFailed():
		return s.failed.Render(label)
	default:
		return s.pending.Render(label)
	}
}

// printModule writes a one-line status report followed by the failure, if
// any.
func printModule(w io.Writer, mod *domain.Module) {
	s := newStatusStyles(w)
	fmt.Fprintf(w, "%s %s %s\n", s.state(mod.Status()), mod.Name, s.faint.Render(mod.Path))
	if err := mod.Status().Err(); err != nil {
		fmt.Fprintf(w, "  %v\n", err)
	}
}

// newTable creates a borderless table in the style used by every command.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}
