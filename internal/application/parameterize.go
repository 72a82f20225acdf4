package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// Parameterizer lifts configuration-like declarations out of a compiled unit
// and turns the unit into a re-entrant callable.
//
// A declaration is a top-level string literal statement whose content is
// itself a single `name = literal` assignment:
//
//	"""x = 1"""
//	y = x * 2
//
// The literal is evaluated without running anything and becomes the
// default of parameter x. Later top-level assignments to a declared name are
// removed from the unit so that a caller's value is not overwritten.
type Parameterizer struct {
	executor *Executor
	metrics  ports.MetricsCollector
}

// NewParameterizer creates a parameterizer that runs templates with executor.
func NewParameterizer(executor *Executor, metrics ports.MetricsCollector) *Parameterizer {
	return &Parameterizer{executor: executor, metrics: orNoop(metrics)}
}

// Extract walks the top-level statements of unit and returns the declared
// parameters together with the residual unit. It returns a
// *domain.ParameterError when a declaration's value is not a literal.
func (p *Parameterizer) Extract(unit *domain.Unit) (*domain.ParameterSet, *domain.Unit, error) {
	lang := p.executor.Language()
	params := domain.NewParameterSet()
	drop := make(map[[2]int]bool)

	for _, s := range unit.Statements {
		switch s.Kind {
		case domain.StmtExpression:
			name, value, ok, err := lang.ParseAssignment(s.Literal)
			if !ok {
				continue
			}
			if err != nil {
				return nil, nil, &domain.ParameterError{Name: name, Line: s.Line, Reason: err.Error()}
			}
			params.Declare(domain.Parameter{Name: name, Default: value, Line: s.Line, Source: s.Literal})
			drop[[2]int{s.Fragment, s.Index}] = true
		case domain.StmtAssignment:
			if params.Has(s.Target) {
				drop[[2]int{s.Fragment, s.Index}] = true
			}
		}
	}

	residual := unit.Filter(func(s domain.Statement) bool {
		return !drop[[2]int{s.Fragment, s.Index}]
	})
	return params, residual, nil
}

// Parameterize builds a Template from a loaded module.
func (p *Parameterizer) Parameterize(ctx context.Context, mod *domain.Module) (*Template, error) {
	_, span := tracer().Start(ctx, "parameterize")
	defer span.End()

	params, residual, err := p.Extract(mod.Unit)
	if err != nil {
		failSpan(span, err)
		return nil, fmt.Errorf("failed to parameterize %s: %w", mod.Path, err)
	}

	span.SetAttributes(
		attribute.String("module.name", mod.Name),
		attribute.StringSlice("parameters", params.Names()),
	)
	p.metrics.RecordGauge(ports.MetricParameters, float64(params.Len()), docLabels(mod.Path))

	doc := mod.Doc
	if doc == "" {
		doc = staticDoc(mod.Unit)
	}

	return &Template{
		name:     mod.Name,
		path:     mod.Path,
		doc:      doc,
		params:   params,
		residual: residual,
		executor: p.executor,
	}, nil
}

// staticDoc returns the string of the last top-level `__doc__ = "..."`
// statement, for modules that have not been executed.
func staticDoc(unit *domain.Unit) string {
	var doc string
	for _, s := range unit.Statements {
		if s.Kind == domain.StmtAssignment && s.Target == domain.DocBinding && s.Literal != "" {
			doc = s.Literal
		}
	}
	return doc
}

// Template is a parameterized document. Every call runs the residual unit
// in a fresh namespace, so calls never observe each other's bindings.
type Template struct {
	name     string
	path     string
	doc      string
	params   *domain.ParameterSet
	residual *domain.Unit
	executor *Executor
}

// Name returns the module name the template was built from.
func (t *Template) Name() string { return t.name }

// Doc returns the module documentation.
func (t *Template) Doc() string { return t.doc }

// Parameters returns the declared parameters in order.
func (t *Template) Parameters() []domain.Parameter { return t.params.Parameters() }

// Residual returns the unit that runs on every call.
func (t *Template) Residual() *domain.Unit { return t.residual }

// Signature renders the keyword-only signature, e.g. (*, x=1, name="a").
func (t *Template) Signature() string {
	if t.params.Len() == 0 {
		return "()"
	}
	parts := []string{"*"}
	for name, def := range t.params.All() {
		parts = append(parts, fmt.Sprintf("%s=%v", name, def))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Call runs the template with overrides applied on top of the defaults.
// It returns a *domain.UnknownParameterError, before running anything, when
// an override names no declared parameter. As with Executor.ExecuteOnce, a
// failure of the running code is recorded in the module status.
func (t *Template) Call(ctx context.Context, overrides map[string]any) (*domain.Module, error) {
	return t.CallWith(ctx, overrides, ports.ExecOptions{})
}

// CallWith is Call with explicit execution options.
func (t *Template) CallWith(
	ctx context.Context,
	overrides map[string]any,
	opts ports.ExecOptions,
) (*domain.Module, error) {
	if err := t.checkOverrides(overrides); err != nil {
		return nil, err
	}

	lang := t.executor.Language()
	mod := domain.NewModule(t.path, t.residual)
	mod.Name = t.name
	mod.Namespace.Set(domain.NameBinding, t.name)
	mod.Doc = t.doc

	for _, p := range t.params.Parameters() {
		mod.Namespace.Set(p.Name, t.freshDefault(p))
	}
	for _, name := range t.params.Names() {
		v, ok := overrides[name]
		if !ok {
			continue
		}
		cv, err := lang.Convert(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		mod.Namespace.Set(name, cv)
	}

	if err := t.executor.ExecuteOnce(ctx, mod, opts); err != nil {
		return nil, err
	}
	return mod, nil
}

// freshDefault evaluates the declaration again so that mutable defaults
// are never shared between calls.
func (t *Template) freshDefault(p domain.Parameter) any {
	if p.Source == "" {
		return p.Default
	}
	if _, v, ok, err := t.executor.Language().ParseAssignment(p.Source); ok && err == nil {
		return v
	}
	return p.Default
}

func (t *Template) checkOverrides(overrides map[string]any) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !t.params.Has(name) {
			return &domain.UnknownParameterError{
				Name:       name,
				Suggestion: closest(name, t.params.Names()),
				Known:      t.params.Names(),
			}
		}
	}
	return nil
}

// closest returns the candidate nearest to name by edit distance, or ""
// when none is close enough to be a plausible typo.
func closest(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(1, len(name)/3) {
		return ""
	}
	return best
}
