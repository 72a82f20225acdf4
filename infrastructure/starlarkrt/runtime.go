// Package starlarkrt implements ports.Language on top of go.starlark.net.
//
// Code cells are parsed one fragment at a time. Each fragment's text is
// offset by its document line before parsing, so every syntax node, every
// resolve error and every runtime backtrace carries the line of the original
// document.
//
// Execution re-parses the fragments a unit refers to on every run. The
// Starlark resolver annotates syntax trees in place, so a tree is never
// resolved twice and a compiled domain.Unit stays immutable.
//
// Importing this package sets resolve.AllowGlobalReassign, resolve.AllowRecursion
// and resolve.AllowSet for the whole process. The legacy go.starlark.net
// resolver reads these as package variables, so every other Starlark user in
// the same binary sees the relaxed dialect too.
package starlarkrt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.Language = (*Runtime)(nil)

// LanguageName is the name reported by Runtime.Name.
const LanguageName = "starlark"

func init() {
	// Notebooks rebind names across cells and use top-level if/for/while.
	resolve.AllowGlobalReassign = true
	resolve.AllowRecursion = true
	resolve.AllowSet = true
}

// stdModules are the library modules a document may use without loading them.
var stdModules = map[string]starlark.Value{
	"json":   starjson.Module,
	"math":   starmath.Module,
	"time":   startime.Module,
	"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
}

// ModuleNames returns the names accepted by WithModules, sorted.
func ModuleNames() []string {
	names := make([]string, 0, len(stdModules))
	for name := range stdModules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Runtime parses and executes Starlark fragments. A Runtime holds no
// per-execution state and is safe for concurrent use.
type Runtime struct {
	modules starlark.StringDict
}

// Option configures a Runtime.
type Option func(*Runtime) error

// WithModules replaces the set of predeclared library modules.
// Names must be drawn from ModuleNames.
func WithModules(names ...string) Option {
	return func(r *Runtime) error {
		modules := make(starlark.StringDict, len(names))
		for _, name := range names {
			mod, ok := stdModules[name]
			if !ok {
				return fmt.Errorf("unknown starlark module %q (available: %s)",
					name, strings.Join(ModuleNames(), ", "))
			}
			modules[name] = mod
		}
		r.modules = modules
		return nil
	}
}

// New creates a Runtime. By default every library module is predeclared.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{modules: make(starlark.StringDict, len(stdModules))}
	for name, mod := range stdModules {
		r.modules[name] = mod
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Name returns "starlark".
func (r *Runtime) Name() string { return LanguageName }

// Parse parses one fragment and tags its top-level statements.
// Statement lines are absolute document lines.
func (r *Runtime) Parse(path string, fragment domain.Fragment) ([]domain.Statement, error) {
	f, err := parseFragment(path, fragment)
	if err != nil {
		return nil, err
	}

	stmts := make([]domain.Statement, len(f.Stmts))
	for i, stmt := range f.Stmts {
		stmts[i] = classify(stmt)
		stmts[i].Index = i
	}
	return stmts, nil
}

// parseFragment parses the fragment text as if it started on the fragment's
// document line.
func parseFragment(path string, fragment domain.Fragment) (*syntax.File, error) {
	src := fragment.Text
	if fragment.Line > 1 {
		src = strings.Repeat("\n", fragment.Line-1) + src
	}
	f, err := syntax.Parse(path, src, 0)
	if err != nil {
		return nil, syntaxError(path, err)
	}
	return f, nil
}

// classify maps a Starlark statement onto the tagged statement variants.
func classify(stmt syntax.Stmt) domain.Statement {
	start, _ := stmt.Span()
	out := domain.Statement{Kind: domain.StmtOther, Line: int(start.Line)}

	switch s := stmt.(type) {
	case *syntax.AssignStmt:
		if id, ok := s.LHS.(*syntax.Ident); ok && s.Op == syntax.EQ {
			out.Kind = domain.StmtAssignment
			out.Target = id.Name
			if lit, ok := s.RHS.(*syntax.Literal); ok && lit.Token == syntax.STRING {
				out.Literal, _ = lit.Value.(string)
			}
		}
	case *syntax.ExprStmt:
		if lit, ok := s.X.(*syntax.Literal); ok && lit.Token == syntax.STRING {
			out.Kind = domain.StmtExpression
			out.Literal, _ = lit.Value.(string)
		}
	}
	return out
}

// Exec runs unit against ns. Bindings made by the unit are merged into ns
// even when execution fails part way through.
func (r *Runtime) Exec(
	ctx context.Context,
	unit *domain.Unit,
	ns *domain.Namespace,
	opts ports.ExecOptions,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	predeclared, err := r.predeclared(ns)
	if err != nil {
		return err
	}

	file, err := seeded(unit, ns, predeclared)
	if err != nil {
		return err
	}

	prog, err := starlark.FileProgram(file, predeclared.Has)
	if err != nil {
		return resolveError(unit.Path, err)
	}

	thread := &starlark.Thread{Name: unit.Path, Print: printer(opts.Output)}
	if opts.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(opts.MaxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, runErr := prog.Init(thread, predeclared)
	for _, name := range bindingOrder(unit, globals) {
		ns.Set(name, globals[name])
	}
	if runErr != nil {
		return executionError(unit.Path, runErr)
	}
	return nil
}

// assemble splices freshly parsed statements selected by unit into a single
// file, in unit order.
func assemble(unit *domain.Unit) (*syntax.File, error) {
	parsed := make(map[int]*syntax.File)
	stmts := make([]syntax.Stmt, 0, len(unit.Statements))

	for _, s := range unit.Statements {
		f, ok := parsed[s.Fragment]
		if !ok {
			if s.Fragment < 0 || s.Fragment >= len(unit.Fragments) {
				return nil, fmt.Errorf("statement at line %d refers to missing fragment %d", s.Line, s.Fragment)
			}
			var err error
			if f, err = parseFragment(unit.Path, unit.Fragments[s.Fragment]); err != nil {
				return nil, err
			}
			parsed[s.Fragment] = f
		}
		if s.Index < 0 || s.Index >= len(f.Stmts) {
			return nil, fmt.Errorf("statement at line %d refers to missing index %d", s.Line, s.Index)
		}
		stmts = append(stmts, f.Stmts[s.Index])
	}

	return &syntax.File{Path: unit.Path, Stmts: stmts}, nil
}

// predeclared builds the environment a unit resolves against: library
// modules first, then every namespace binding.
func (r *Runtime) predeclared(ns *domain.Namespace) (starlark.StringDict, error) {
	env := make(starlark.StringDict, len(r.modules)+ns.Len())
	for name, mod := range r.modules {
		env[name] = mod
	}
	for name, v := range ns.All() {
		sv, err := ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
		env[name] = sv
	}
	return env, nil
}

// seedPrefix marks the predeclared aliases that carry namespace values into
// globals the unit rebinds.
const seedPrefix = "__nbload_seed_"

// seeded assembles the unit for execution against ns.
//
// A name the unit assigns anywhere at top level is a global of the file, and
// a Starlark global hides the predeclared name of the same spelling. For
// every such name already bound in ns the namespace value is predeclared
// under an alias and copied into the global by a leading statement, so
// `n += 1` or a loop over `n` starts from the namespace value.
func seeded(unit *domain.Unit, ns *domain.Namespace, predeclared starlark.StringDict) (*syntax.File, error) {
	scratch, err := assemble(unit)
	if err != nil {
		return nil, err
	}
	if err := resolve.File(scratch, predeclared.Has, starlark.Universe.Has); err != nil {
		return nil, resolveError(unit.Path, err)
	}

	file, err := assemble(unit)
	if err != nil {
		return nil, err
	}
	mod, ok := scratch.Module.(*resolve.Module)
	if !ok || len(file.Stmts) == 0 {
		return file, nil
	}

	start := syntax.Start(file.Stmts[0])
	pos := syntax.MakePosition(&file.Path, start.Line, 1)
	var seeds []syntax.Stmt
	for _, bind := range mod.Globals {
		name := bind.First.Name
		if !ns.Has(name) {
			continue
		}
		alias := seedPrefix + name
		predeclared[alias] = predeclared[name]
		seeds = append(seeds, &syntax.AssignStmt{
			OpPos: pos,
			Op:    syntax.EQ,
			LHS:   &syntax.Ident{NamePos: pos, Name: name},
			RHS:   &syntax.Ident{NamePos: pos, Name: alias},
		})
	}
	if len(seeds) > 0 {
		file.Stmts = append(seeds, file.Stmts...)
	}
	return file, nil
}

// bindingOrder lists global names in the order the unit assigns them,
// followed by any remaining globals sorted by name.
func bindingOrder(unit *domain.Unit, globals starlark.StringDict) []string {
	order := make([]string, 0, len(globals))
	seen := make(map[string]bool, len(globals))
	for _, s := range unit.Statements {
		if s.Kind != domain.StmtAssignment || seen[s.Target] {
			continue
		}
		if _, ok := globals[s.Target]; ok {
			order = append(order, s.Target)
			seen[s.Target] = true
		}
	}
	for _, name := range globals.Keys() {
		if !seen[name] {
			order = append(order, name)
		}
	}
	return order
}

func printer(w io.Writer) func(*starlark.Thread, string) {
	if w == nil {
		return func(*starlark.Thread, string) {}
	}
	return func(_ *starlark.Thread, msg string) {
		fmt.Fprintln(w, msg)
	}
}

// syntaxError converts parser and resolver errors to *domain.SyntaxError.
func syntaxError(path string, err error) error {
	var serr syntax.Error
	if errors.As(err, &serr) {
		return domain.NewSyntaxError(path, int(serr.Pos.Line), int(serr.Pos.Col), serr.Msg)
	}
	var rerrs resolve.ErrorList
	if errors.As(err, &rerrs) && len(rerrs) > 0 {
		first := rerrs[0]
		return domain.NewSyntaxError(path, int(first.Pos.Line), int(first.Pos.Col), first.Msg)
	}
	return domain.NewSyntaxError(path, 0, 0, err.Error())
}

// resolveError classifies a resolver failure. A unit whose only problems
// are references to undefined names still compiles as far as the document
// is concerned: it fails when run, at the first such reference. Every other
// resolver error is a *domain.SyntaxError.
func resolveError(path string, err error) error {
	var rerrs resolve.ErrorList
	if !errors.As(err, &rerrs) || len(rerrs) == 0 {
		return syntaxError(path, err)
	}
	for _, e := range rerrs {
		if !strings.HasPrefix(e.Msg, undefinedPrefix) {
			return syntaxError(path, err)
		}
	}
	first := rerrs[0]
	return &domain.ExecutionError{
		Path: path,
		Line: int(first.Pos.Line),
		Col:  int(first.Pos.Col),
		Msg:  first.Msg,
		Err:  err,
	}
}

const undefinedPrefix = "undefined: "

// executionError converts a runtime failure to *domain.ExecutionError,
// locating the innermost frame that belongs to the document.
func executionError(path string, err error) error {
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		return &domain.ExecutionError{Path: path, Msg: err.Error(), Err: err}
	}

	out := &domain.ExecutionError{
		Path:      path,
		Msg:       evalErr.Msg,
		Backtrace: evalErr.Backtrace(),
		Err:       err,
	}
	for i := len(evalErr.CallStack) - 1; i >= 0; i-- {
		pos := evalErr.CallStack[i].Pos
		if pos.Line > 0 && pos.Filename() == path {
			out.Line, out.Col = int(pos.Line), int(pos.Col)
			break
		}
	}
	return out
}
