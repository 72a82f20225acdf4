package domain

// StatementKind tags the top-level statement variants the loader cares about.
type StatementKind int

const (
	// StmtOther is any statement that is neither of the shapes below.
	StmtOther StatementKind = iota
	// StmtAssignment is a plain `name = expr` with exactly one target name.
	StmtAssignment
	// StmtExpression is a bare expression statement whose value is a
	// string literal.
	StmtExpression
)

// String returns the name of the kind.
func (k StatementKind) String() string {
	switch k {
	case StmtAssignment:
		return "assignment"
	case StmtExpression:
		return "expression"
	default:
		return "other"
	}
}

// Statement is one top-level statement of a compiled unit.
type Statement struct {
	// Kind is the tag used for pattern matching.
	Kind StatementKind
	// Line is the absolute document line the statement starts on.
	Line int
	// Target is the assigned name when Kind is StmtAssignment.
	Target string
	// Literal is the string value when Kind is StmtExpression, or the
	// assigned string when Kind is StmtAssignment and the right-hand side is
	// a plain string literal.
	Literal string
	// Fragment is the index of the fragment the statement was parsed from.
	Fragment int
	// Index is the position of the statement within its fragment.
	Index int
}

// Unit is the line-annotated statement tree compiled from every fragment of a
// document. A Unit is never mutated after assembly; Filter derives new units.
type Unit struct {
	// Path is the document path reported in diagnostics.
	Path string
	// Fragments holds the decoded fragments in document order.
	Fragments []Fragment
	// Statements holds every top-level statement in fragment order.
	Statements []Statement
}

// Len returns the number of top-level statements.
func (u *Unit) Len() int { return len(u.Statements) }

// Filter returns a unit sharing u's fragments whose statements are those for
// which keep returns true, in their original order.
func (u *Unit) Filter(keep func(Statement) bool) *Unit {
	stmts := make([]Statement, 0, len(u.Statements))
	for _, s := range u.Statements {
		if keep(s) {
			stmts = append(stmts, s)
		}
	}
	return &Unit{
		Path:       u.Path,
		Fragments:  u.Fragments,
		Statements: stmts,
	}
}

// Lines returns the line annotation of each statement, in order.
func (u *Unit) Lines() []int {
	lines := make([]int, len(u.Statements))
	for i, s := range u.Statements {
		lines[i] = s.Line
	}
	return lines
}
