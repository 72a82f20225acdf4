// Package markdown extracts executable code from literate Markdown documents.
//
// The renderer concatenates the contents of every fenced code block in
// document order and discards the prose around them. The result is handed on
// as a single fragment starting at line 1, so line numbers reported for code
// loaded this way count lines of the concatenated code, not lines of the
// Markdown file. This provenance is weaker than the notebook decoder's, which
// reports absolute document lines.
//
// The concatenated code is dedented and, unless disabled, interactive magic
// and shell lines are commented out, as the notebook decoder does for code
// blocks.
package markdown

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ahrav/go-nbload/infrastructure/source"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.Decoder = (*Decoder)(nil)

// Extensions are the file extensions literate documents are registered under.
var Extensions = []string{".md", ".markdown"}

// Renderer pulls fenced code out of Markdown.
type Renderer struct {
	md          goldmark.Markdown
	languages   []string
	stripMagics bool
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLanguages keeps only fences whose info string names one of langs.
// Fences without an info string are always kept. With no languages every
// fence is kept.
func WithLanguages(langs ...string) RendererOption {
	return func(r *Renderer) {
		for _, l := range langs {
			r.languages = append(r.languages, strings.ToLower(strings.TrimSpace(l)))
		}
	}
}

// WithStripMagics controls whether magic (%) and shell (!) lines inside
// fences are turned into comments. It is on by default.
func WithStripMagics(strip bool) RendererOption {
	return func(r *Renderer) { r.stripMagics = strip }
}

// NewRenderer creates a renderer using goldmark's CommonMark parser.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{md: goldmark.New(), stripMagics: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the concatenated contents of the fenced code blocks in src,
// dedented. Each block keeps its own lines; blocks are joined with no
// separator.
func (r *Renderer) Render(src []byte) (string, error) {
	doc := r.md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !r.keep(string(fence.Language(src))) {
			return ast.WalkSkipChildren, nil
		}
		lines := fence.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown document: %w", err)
	}

	code := source.Dedent(b.String())
	if r.stripMagics {
		code = source.StripMagics(code)
	}
	return code, nil
}

func (r *Renderer) keep(lang string) bool {
	if len(r.languages) == 0 || lang == "" {
		return true
	}
	return slices.Contains(r.languages, strings.ToLower(lang))
}

// Decoder adapts a Renderer to ports.Decoder.
type Decoder struct {
	path     string
	renderer *Renderer
}

// NewDecoder creates a decoder for path.
func NewDecoder(path string, renderer *Renderer) *Decoder {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Decoder{path: path, renderer: renderer}
}

// Factory returns a ports.DecoderFactory sharing one renderer.
func Factory(opts ...RendererOption) ports.DecoderFactory {
	r := NewRenderer(opts...)
	return func(path string) ports.Decoder { return NewDecoder(path, r) }
}

// Decode yields exactly one code fragment at line 1 holding every fence.
func (d *Decoder) Decode(data []byte) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		code, err := d.renderer.Render(data)
		if err != nil {
			yield(domain.Fragment{}, domain.NewDocumentError(d.path, err.Error()))
			return
		}
		yield(domain.Fragment{Line: 1, Kind: domain.BlockCode, Text: code}, nil)
	}
}
