// Package notebook decodes Jupyter-style notebook documents into located
// fragments.
//
// A notebook is either a container object whose "cells" list holds block
// records, or a single block record. Every block record has a "source" that
// is a string or a list of strings joined without separators, and a
// "cell_type" tag where "code" marks executable blocks.
//
// Narrative blocks are kept as comment lines, so the decoded fragments cover
// exactly the lines of the document they came from.
//
// A literate decoder, built WithLiterate, reads every block as Markdown and
// runs the fenced code it contains. The code starts at the block's first
// line, so lines inside such a block count lines of the extracted code.
package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ahrav/go-nbload/infrastructure/source"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.Decoder = (*Decoder)(nil)

// Extension is the file extension notebooks are registered under.
const Extension = ".ipynb"

const sourceKey = `"source"`

// Decoder walks notebook JSON and yields one fragment per block.
type Decoder struct {
	path        string
	stripMagics bool
	literate    FenceRenderer
}

// FenceRenderer extracts the fenced code from Markdown text.
type FenceRenderer interface {
	Render(src []byte) (string, error)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithStripMagics controls whether magic (%) and shell (!) lines in code
// blocks are turned into comments. It is on by default.
func WithStripMagics(strip bool) Option {
	return func(d *Decoder) { d.stripMagics = strip }
}

// WithLiterate makes the decoder read every block as Markdown and keep only
// the fenced code r extracts from it. Blocks without fenced code are kept as
// comment lines.
func WithLiterate(r FenceRenderer) Option {
	return func(d *Decoder) { d.literate = r }
}

// NewDecoder creates a decoder. path is only used in error messages.
func NewDecoder(path string, opts ...Option) *Decoder {
	d := &Decoder{path: path, stripMagics: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Factory returns a ports.DecoderFactory producing notebook decoders.
func Factory(opts ...Option) ports.DecoderFactory {
	return func(path string) ports.Decoder { return NewDecoder(path, opts...) }
}

// cell is a decoded block together with its raw JSON span.
type cell struct {
	block domain.Block
	raw   string
}

// Blocks yields the blocks of the document in order.
func (d *Decoder) Blocks(data []byte) iter.Seq2[domain.Block, error] {
	return func(yield func(domain.Block, error) bool) {
		for c, err := range d.cells(data) {
			if !yield(c.block, err) || err != nil {
				return
			}
		}
	}
}

// Decode yields a fragment for every block. A document holding a single
// block record yields one fragment at line 1.
func (d *Decoder) Decode(data []byte) iter.Seq2[domain.Fragment, error] {
	return func(yield func(domain.Fragment, error) bool) {
		single := !gjson.GetBytes(data, "cells").Exists()
		for c, err := range d.cells(data) {
			if err != nil {
				yield(domain.Fragment{}, err)
				return
			}
			line := 1
			if !single {
				line = lineOf(data, c)
			}
			f, err := d.fragment(c.block, line)
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// cells walks the raw document, keeping a byte cursor so every block's
// position in data is known.
func (d *Decoder) cells(data []byte) iter.Seq2[cell, error] {
	return func(yield func(cell, error) bool) {
		if !gjson.ValidBytes(data) {
			yield(cell{}, domain.NewDocumentError(d.path, "invalid JSON"))
			return
		}

		root := gjson.ParseBytes(data)
		container := root.Get("cells")
		if !container.Exists() {
			if !root.Get("source").Exists() {
				yield(cell{}, domain.NewDocumentError(d.path, "document has neither a cells list nor a source field"))
				return
			}
			b, err := d.block(root, locate(data, 0, root.Raw))
			yield(cell{block: b, raw: root.Raw}, err)
			return
		}
		if !container.IsArray() {
			yield(cell{}, domain.NewDocumentError(d.path, "cells is not a list"))
			return
		}

		cursor := container.Index
		if cursor <= 0 {
			cursor = locate(data, 0, container.Raw)
		}
		container.ForEach(func(_, value gjson.Result) bool {
			start := locate(data, cursor, value.Raw)
			cursor = start + len(value.Raw)

			b, err := d.block(value, start)
			if err != nil {
				yield(cell{}, err)
				return false
			}
			return yield(cell{block: b, raw: value.Raw}, nil)
		})
	}
}

// block decodes one block record found at offset.
func (d *Decoder) block(record gjson.Result, offset int) (domain.Block, error) {
	src := record.Get("source")
	if !record.IsObject() || !src.Exists() {
		return domain.Block{}, domain.NewDocumentError(d.path,
			fmt.Sprintf("block at byte %d has no source field", offset))
	}

	tag := record.Get("cell_type")
	if !tag.Exists() {
		tag = record.Get("kind")
	}

	return domain.Block{
		Kind:   domain.ParseBlockKind(tag.String()),
		Text:   joinSource(src),
		Offset: offset,
	}, nil
}

func joinSource(src gjson.Result) string {
	if !src.IsArray() {
		return src.String()
	}
	var b strings.Builder
	src.ForEach(func(_, part gjson.Result) bool {
		b.WriteString(part.String())
		return true
	})
	return b.String()
}

// fragment renders a block as executable text.
func (d *Decoder) fragment(b domain.Block, line int) (domain.Fragment, error) {
	if d.literate != nil {
		return d.literateFragment(b, line)
	}

	text := b.Text
	switch {
	case b.Kind == domain.BlockNarrative:
		text = source.CommentLines(text)
	case d.stripMagics:
		text = source.StripMagics(text)
	}
	return domain.Fragment{Line: line, Kind: b.Kind, Text: text}, nil
}

func (d *Decoder) literateFragment(b domain.Block, line int) (domain.Fragment, error) {
	code, err := d.literate.Render([]byte(b.Text))
	if err != nil {
		return domain.Fragment{}, domain.NewDocumentError(d.path,
			fmt.Sprintf("block at line %d: %v", line, err))
	}
	if strings.TrimSpace(code) == "" {
		return domain.Fragment{Line: line, Kind: domain.BlockNarrative, Text: source.CommentLines(b.Text)}, nil
	}
	return domain.Fragment{Line: line, Kind: domain.BlockCode, Text: code}, nil
}

// lineOf returns the 1-based document line holding the block's first line
// of text. The search starts after the block's source key; when the text is
// empty or absent verbatim, the key position (or the block start) is used.
func lineOf(data []byte, c cell) int {
	pos := 0
	if i := strings.Index(c.raw, sourceKey); i >= 0 {
		pos = i
	}

	if first := c.block.FirstLine(); first != "" {
		from := pos + len(sourceKey)
		if from > len(c.raw) {
			from = len(c.raw)
		}
		for _, needle := range append([]string{first}, jsonSpellings(first)...) {
			if i := strings.Index(c.raw[from:], needle); i >= 0 {
				pos = from + i
				break
			}
		}
	}

	return bytes.Count(data[:c.block.Offset+pos], []byte("\n")) + 1
}

// locate returns the offset of raw in data at or after from. gjson hands out
// raw values sliced from the document, so the search only fails for
// synthetic input, in which case from is returned.
func locate(data []byte, from int, raw string) int {
	if from < 0 || from > len(data) {
		from = 0
	}
	i := bytes.Index(data[from:], []byte(raw))
	if i < 0 {
		return from
	}
	return from + i
}

// jsonSpellings returns the ways s may be spelled inside a JSON string
// literal: plain escaping, then escaping with HTML-safe sequences.
func jsonSpellings(s string) []string {
	spellings := make([]string, 0, 2)
	for _, escapeHTML := range []bool{false, true} {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(escapeHTML)
		if err := enc.Encode(s); err != nil {
			continue
		}
		quoted := strings.TrimSuffix(buf.String(), "\n")
		spellings = append(spellings, quoted[1:len(quoted)-1])
	}
	return spellings
}
