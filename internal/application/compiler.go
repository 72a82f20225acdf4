package application

import (
	"context"
	"fmt"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/go-nbload/internal/ctxlog"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// Compiler stitches decoded fragments into a single line-annotated unit.
// Each fragment is parsed on its own at its absolute document line, so the
// statements of the resulting unit report the lines the reader sees in the
// original document. Compiler never executes anything.
type Compiler struct {
	lang    ports.Language
	metrics ports.MetricsCollector
}

// NewCompiler creates a compiler for lang. A nil metrics collector discards
// measurements.
func NewCompiler(lang ports.Language, metrics ports.MetricsCollector) *Compiler {
	return &Compiler{lang: lang, metrics: orNoop(metrics)}
}

// Language returns the runtime the compiler parses with.
func (c *Compiler) Language() ports.Language { return c.lang }

// Compile consumes fragments in order and returns the spliced unit.
// Narrative fragments are kept for provenance but never parsed.
// A decoding failure or a syntax error in any fragment aborts the whole
// unit; syntax errors carry the original document line.
func (c *Compiler) Compile(
	ctx context.Context,
	path string,
	fragments iter.Seq2[domain.Fragment, error],
) (*domain.Unit, error) {
	ctx, span := tracer().Start(ctx, "compile")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.path", path),
		attribute.String("language", c.lang.Name()),
	)

	start := time.Now()
	unit := &domain.Unit{Path: path}

	for frag, err := range fragments {
		if err != nil {
			failSpan(span, err)
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}

		idx := len(unit.Fragments)
		unit.Fragments = append(unit.Fragments, frag)
		if frag.Kind != domain.BlockCode {
			continue
		}

		stmts, err := c.lang.Parse(path, frag)
		if err != nil {
			failSpan(span, err)
			return nil, fmt.Errorf("failed to compile fragment at line %d: %w", frag.Line, err)
		}
		for _, s := range stmts {
			s.Fragment = idx
			unit.Statements = append(unit.Statements, s)
		}
	}

	labels := docLabels(path)
	c.metrics.RecordLatency("compile", time.Since(start), labels)
	c.metrics.RecordHistogram(ports.MetricStatementsPerUnit, float64(unit.Len()), labels)
	span.SetAttributes(
		attribute.Int("unit.fragments", len(unit.Fragments)),
		attribute.Int("unit.statements", unit.Len()),
	)

	ctxlog.FromContext(ctx).Debug("compiled unit",
		"path", path,
		"fragments", len(unit.Fragments),
		"statements", unit.Len(),
	)
	return unit, nil
}
