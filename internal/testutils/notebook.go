// Package testutils provides builders and fakes shared by the loader's tests.
package testutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Layout selects how NotebookBuilder formats the document.
type Layout int

const (
	// LayoutJupyter mirrors the indent=1 layout Jupyter writes to disk.
	LayoutJupyter Layout = iota
	// LayoutCompact writes every source line on its own document line with
	// no scaffolding lines between cells. Each cell's first source line
	// shares a line with the cell header.
	LayoutCompact
)

type testCell struct {
	kind  string
	lines []string
}

// NotebookBuilder assembles notebook JSON and records the document line on
// which each cell's first source line lands.
type NotebookBuilder struct {
	layout     Layout
	cells      []testCell
	firstLines []int
}

// NewNotebook creates a builder using the Jupyter layout.
func NewNotebook() *NotebookBuilder { return &NotebookBuilder{layout: LayoutJupyter} }

// Compact switches the builder to LayoutCompact.
func (b *NotebookBuilder) Compact() *NotebookBuilder {
	b.layout = LayoutCompact
	return b
}

// Code appends a code cell. Each argument is one source line.
func (b *NotebookBuilder) Code(lines ...string) *NotebookBuilder {
	b.cells = append(b.cells, testCell{kind: "code", lines: lines})
	return b
}

// Markdown appends a markdown cell. Each argument is one source line.
func (b *NotebookBuilder) Markdown(lines ...string) *NotebookBuilder {
	b.cells = append(b.cells, testCell{kind: "markdown", lines: lines})
	return b
}

// Raw appends a raw cell. Each argument is one source line.
func (b *NotebookBuilder) Raw(lines ...string) *NotebookBuilder {
	b.cells = append(b.cells, testCell{kind: "raw", lines: lines})
	return b
}

// CodeSource returns the code cells joined in order: the program a direct,
// offline run of the notebook would execute.
func (b *NotebookBuilder) CodeSource() string {
	var sb strings.Builder
	for _, c := range b.cells {
		if c.kind != "code" {
			continue
		}
		sb.WriteString(strings.Join(c.lines, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FirstLines returns, for each cell, the document line of its first source
// line as laid out by the most recent Build.
func (b *NotebookBuilder) FirstLines() []int { return b.firstLines }

// LineOf returns the document line of line index i within cell c.
func (b *NotebookBuilder) LineOf(c, i int) int { return b.firstLines[c] + i }

// Build renders the notebook.
func (b *NotebookBuilder) Build() []byte {
	w := &lineWriter{}
	b.firstLines = make([]int, len(b.cells))
	if b.layout == LayoutCompact {
		b.buildCompact(w)
	} else {
		b.buildJupyter(w)
	}
	return []byte(w.sb.String())
}

func (b *NotebookBuilder) buildJupyter(w *lineWriter) {
	w.line("{")
	w.line(` "cells": [`)
	for i, c := range b.cells {
		w.line("  {")
		w.line(fmt.Sprintf(`   "cell_type": %q,`, c.kind))
		if c.kind == "code" {
			w.line(`   "execution_count": null,`)
		}
		w.line(`   "metadata": {},`)
		if c.kind == "code" {
			w.line(`   "outputs": [],`)
		}
		if len(c.lines) == 0 {
			b.firstLines[i] = w.n + 1
			w.line(`   "source": []`)
		} else {
			w.line(`   "source": [`)
			b.firstLines[i] = w.n + 1
			for j, elem := range sourceElems(c.lines) {
				sep := ","
				if j == len(c.lines)-1 {
					sep = ""
				}
				w.line("    " + elem + sep)
			}
			w.line("   ]")
		}
		if i == len(b.cells)-1 {
			w.line("  }")
		} else {
			w.line("  },")
		}
	}
	w.line(" ],")
	w.line(` "metadata": {},`)
	w.line(` "nbformat": 4,`)
	w.line(` "nbformat_minor": 5`)
	w.line("}")
}

func (b *NotebookBuilder) buildCompact(w *lineWriter) {
	prefix := `{"cells": [`
	if len(b.cells) == 0 {
		w.line(prefix + `]}`)
		return
	}
	for i, c := range b.cells {
		header := fmt.Sprintf(`%s{"cell_type": %q, "source": [`, prefix, c.kind)
		prefix = ""
		closing := "]}"
		if i == len(b.cells)-1 {
			closing += "]}"
		} else {
			closing += ","
		}

		b.firstLines[i] = w.n + 1
		elems := sourceElems(c.lines)
		if len(elems) == 0 {
			w.line(header + closing)
			continue
		}
		for j, elem := range elems {
			text := elem
			if j == 0 {
				text = header + elem
			}
			if j == len(elems)-1 {
				w.line(text + closing)
			} else {
				w.line(text + ",")
			}
		}
	}
}

// sourceElems JSON-encodes source lines, adding the newline nbformat keeps on
// every line but the last.
func sourceElems(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if i < len(lines)-1 {
			line += "\n"
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(line)
		out[i] = strings.TrimSuffix(buf.String(), "\n")
	}
	return out
}

type lineWriter struct {
	sb strings.Builder
	n  int
}

func (w *lineWriter) line(s string) {
	w.sb.WriteString(s)
	w.sb.WriteString("\n")
	w.n++
}
