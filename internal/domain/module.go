package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Module is the result of loading a document: a namespace of bindings plus
// the completion status of the run that produced them. The namespace is
// mutated in place by execution.
type Module struct {
	// Name is the module name, derived from the file stem by default.
	Name string
	// Path is the document the module was loaded from.
	Path string
	// Doc is the module documentation, taken from a __doc__ string binding.
	Doc string
	// Namespace holds the bindings produced by execution.
	Namespace *Namespace
	// Unit is the compiled statement tree the module executes.
	Unit *Unit
	// Output holds printed output when the load captured it.
	Output string

	status Status
}

// NewModule creates a pending module for unit with a namespace seeded with
// the module's identity bindings.
func NewModule(path string, unit *Unit) *Module {
	name := ModuleName(path)
	return &Module{
		Name:      name,
		Path:      path,
		Namespace: NewModuleNamespace(name, path),
		Unit:      unit,
		status:    Pending(),
	}
}

// ModuleName derives a module name from a document path: the base name with
// every extension removed.
func ModuleName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// Status returns the completion status of the latest run.
func (m *Module) Status() Status { return m.status }

// SetStatus records the outcome of a run.
func (m *Module) SetStatus(s Status) { m.status = s }

// AssertComplete is the opt-in raise for a stored failure. It returns nil
// after a clean run, the captured error after a failed run, and ErrPending
// when the module never completed.
func (m *Module) AssertComplete() error {
	switch m.status.State() {
	case StateOk:
		return nil
	case StateFailed:
		return m.status.Err()
	default:
		return fmt.Errorf("module %s: %w", m.Name, ErrPending)
	}
}

// Summary renders a short Markdown description of the module.
func (m *Module) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** `%s`: %s\n", m.Name, m.Path, m.status.State())
	if m.Doc != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(m.Doc))
		b.WriteString("\n")
	}
	if err := m.status.Err(); err != nil {
		fmt.Fprintf(&b, "\n```\n%v\n```\n", err)
	}
	return b.String()
}
