// Package domain contains pure, dependency-free domain models and types
// for the notebook loader.
package domain

import "strings"

// BlockKind discriminates the blocks of a mixed-content document.
type BlockKind int

const (
	// BlockNarrative is prose. It never executes but still occupies lines.
	BlockNarrative BlockKind = iota
	// BlockCode carries executable source.
	BlockCode
)

// String returns the nbformat spelling of the kind.
func (k BlockKind) String() string {
	if k == BlockCode {
		return "code"
	}
	return "narrative"
}

// ParseBlockKind maps a document's cell_type tag to a BlockKind.
// Anything other than "code" is narrative.
func ParseBlockKind(tag string) BlockKind {
	if tag == "code" {
		return BlockCode
	}
	return BlockNarrative
}

// Block is one labelled unit of a document as it was found in the raw bytes.
// Blocks are immutable once decoded.
type Block struct {
	// Kind tells whether the block holds code or narrative.
	Kind BlockKind
	// Text is the joined source of the block.
	Text string
	// Offset is the byte offset of the block record in the raw document.
	Offset int
}

// FirstLine returns the first line of the block text without its newline.
func (b Block) FirstLine() string {
	line, _, _ := strings.Cut(b.Text, "\n")
	return line
}

// Fragment pairs a block's text with the document line its first text line
// sits on. Line numbers are 1-based.
type Fragment struct {
	Line int
	Kind BlockKind
	Text string
}

// LineCount reports how many lines the fragment text spans.
func (f Fragment) LineCount() int {
	if f.Text == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(f.Text, "\n"), "\n") + 1
}
