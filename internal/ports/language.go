// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"
	"io"

	"github.com/ahrav/go-nbload/internal/domain"
)

// Language is the code runtime that gives meaning to a document's code
// fragments. It parses fragments into tagged statements, evaluates
// parameter declarations without running them, and executes compiled units
// against a namespace.
// Implementations must be safe for concurrent use; each call receives its
// own namespace.
type Language interface {
	// Name identifies the language, for example "starlark".
	Name() string

	// Parse parses one fragment as a self-contained sequence of top-level
	// statements. Every returned statement and every position the runtime
	// later reports is an absolute document line: the fragment's Line is
	// applied as an offset during parsing.
	// A parse failure is returned as a *domain.SyntaxError.
	Parse(path string, fragment domain.Fragment) ([]domain.Statement, error)

	// ParseAssignment reports whether text is exactly one `name = literal`
	// statement. ok is false when text is not an assignment of that shape.
	// err is set when it is one but the value is not a literal.
	ParseAssignment(text string) (name string, value any, ok bool, err error)

	// Convert turns a Go value into a value the runtime can bind.
	Convert(v any) (any, error)

	// Native turns a runtime value into a plain Go value when one exists.
	Native(v any) any

	// Exec runs the statements of unit against ns and merges the resulting
	// top-level bindings back into ns, even when execution stops early.
	//
	// A failure raised by the running code is returned as a
	// *domain.ExecutionError. Any other error means the unit could not be
	// turned into a runnable program at all.
	//
	// Example:
	//
	//	err := lang.Exec(ctx, unit, ns, ports.ExecOptions{Output: os.Stdout})
	//	var execErr *domain.ExecutionError
	//	if errors.As(err, &execErr) {
	//	    // record the failure
	//	}
	Exec(ctx context.Context, unit *domain.Unit, ns *domain.Namespace, opts ExecOptions) error
}

// ExecOptions tunes a single execution.
type ExecOptions struct {
	// Output receives printed output. Nil discards it.
	Output io.Writer
	// MaxSteps bounds the number of runtime steps. Zero means unbounded.
	MaxSteps uint64
}
