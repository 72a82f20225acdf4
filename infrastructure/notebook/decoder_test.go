package notebook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nbload/infrastructure/markdown"
	"github.com/ahrav/go-nbload/internal/domain"
	"github.com/ahrav/go-nbload/internal/testutils"
)

func collect(t *testing.T, d *Decoder, data []byte) ([]domain.Fragment, error) {
	t.Helper()
	var frags []domain.Fragment
	for f, err := range d.Decode(data) {
		if err != nil {
			return frags, err
		}
		frags = append(frags, f)
	}
	return frags, nil
}

func lines(frags []domain.Fragment) []int {
	out := make([]int, len(frags))
	for i, f := range frags {
		out[i] = f.Line
	}
	return out
}

func TestDecoder_JupyterLayoutLines(t *testing.T) {
	nb := testutils.NewNotebook().
		Markdown("# Title", "", "Some prose.").
		Code("x = 1", "y = x + 1").
		Raw("raw text").
		Code()
	data := nb.Build()

	frags, err := collect(t, NewDecoder("nb.ipynb"), data)
	require.NoError(t, err)
	require.Len(t, frags, 4)

	assert.Equal(t, nb.FirstLines(), lines(frags))
	assert.Equal(t, []domain.BlockKind{
		domain.BlockNarrative, domain.BlockCode, domain.BlockNarrative, domain.BlockCode,
	}, []domain.BlockKind{frags[0].Kind, frags[1].Kind, frags[2].Kind, frags[3].Kind})

	assert.Equal(t, "# # Title\n#\n# Some prose.", frags[0].Text)
	assert.Equal(t, "x = 1\ny = x + 1", frags[1].Text)
	assert.Equal(t, "# raw text", frags[2].Text)
	assert.Equal(t, "", frags[3].Text)
}

func TestDecoder_CompactLayoutNarrativeThenCode(t *testing.T) {
	nb := testutils.NewNotebook().Compact().
		Markdown("one", "two", "three", "four", "five").
		Code("ok = 1", "fail('boom')")
	data := nb.Build()

	frags, err := collect(t, NewDecoder("nb.ipynb"), data)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 6}, lines(frags))
	assert.Equal(t, 5, frags[0].LineCount(), "narrative keeps its line budget")
}

func TestDecoder_FirstLineLookup(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantLine int
		wantText string
	}{
		{
			name:     "quotes are found through their JSON spelling",
			doc:      "{\"cells\": [\n{\"cell_type\": \"code\",\n\"source\": [\n\"print(\\\"hi\\\")\"]}]}",
			wantLine: 4,
			wantText: `print("hi")`,
		},
		{
			name:     "html-escaped spelling",
			doc:      "{\"cells\": [\n{\"cell_type\": \"code\",\n\"source\": [\n\"ok = 1 \\u003c 2\"]}]}",
			wantLine: 4,
			wantText: "ok = 1 < 2",
		},
		{
			name:     "unlocatable text falls back to the source key",
			doc:      "{\"cells\": [\n{\"cell_type\": \"code\", \"source\":\n[\"\\u0078 = 1\"]}]}",
			wantLine: 2,
			wantText: "x = 1",
		},
		{
			name:     "source given as one string",
			doc:      "{\"cells\": [\n\n{\"cell_type\": \"code\", \"source\": \"a = 1\\nb = 2\"}]}",
			wantLine: 3,
			wantText: "a = 1\nb = 2",
		},
		{
			name:     "first line equal to a key name is searched after the key",
			doc:      "{\"cells\": [{\"cell_type\": \"code\",\n\"source\": [\n\"source = 1\"]}]}",
			wantLine: 3,
			wantText: "source = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags, err := collect(t, NewDecoder("nb.ipynb"), []byte(tt.doc))
			require.NoError(t, err)
			require.Len(t, frags, 1)
			assert.Equal(t, tt.wantLine, frags[0].Line)
			assert.Equal(t, tt.wantText, frags[0].Text)
		})
	}
}

func TestDecoder_SingleBlockDocument(t *testing.T) {
	doc := "\n\n{\"cell_type\": \"code\",\n \"source\": [\"x = 1\\n\", \"y = 2\"]}"

	frags, err := collect(t, NewDecoder("single.json"), []byte(doc))
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 1, frags[0].Line)
	assert.Equal(t, "x = 1\ny = 2", frags[0].Text)
	assert.Equal(t, domain.BlockCode, frags[0].Kind)
}

func TestDecoder_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantFrags int
		wantMsg   string
	}{
		{name: "invalid JSON", doc: `{"cells": [`, wantMsg: "invalid JSON"},
		{name: "no cells and no source", doc: `{"metadata": {}}`, wantMsg: "neither a cells list nor a source field"},
		{name: "cells is not a list", doc: `{"cells": 3}`, wantMsg: "cells is not a list"},
		{
			name:      "cell without source after a good cell",
			doc:       `{"cells": [{"cell_type": "code", "source": "x = 1"}, {"cell_type": "code"}]}`,
			wantFrags: 1,
			wantMsg:   "has no source field",
		},
		{name: "cell that is not an object", doc: `{"cells": ["x = 1"]}`, wantMsg: "has no source field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags, err := collect(t, NewDecoder("bad.ipynb"), []byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedDocument)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "bad.ipynb")
			assert.Len(t, frags, tt.wantFrags)
		})
	}
}

func TestDecoder_EmptyNotebook(t *testing.T) {
	frags, err := collect(t, NewDecoder("empty.ipynb"), testutils.NewNotebook().Build())
	require.NoError(t, err)
	assert.Empty(t, frags)
}

func TestDecoder_SequenceIsRestartableAndStoppable(t *testing.T) {
	data := testutils.NewNotebook().Code("a = 1").Code("b = 2").Code("c = 3").Build()
	seq := NewDecoder("nb.ipynb").Decode(data)

	var first, second []string
	for f, err := range seq {
		require.NoError(t, err)
		first = append(first, f.Text)
	}
	for f, err := range seq {
		require.NoError(t, err)
		second = append(second, f.Text)
		if len(second) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a = 1", "b = 2", "c = 3"}, first)
	assert.Equal(t, []string{"a = 1", "b = 2"}, second)
}

func TestDecoder_Magics(t *testing.T) {
	data := testutils.NewNotebook().
		Code("%matplotlib inline", "!pip install x", "for i in range(2):", "    %time y = i", "x = 1").
		Build()

	t.Run("stripped by default", func(t *testing.T) {
		frags, err := collect(t, NewDecoder("nb.ipynb"), data)
		require.NoError(t, err)
		assert.Equal(t,
			"# %matplotlib inline\n# !pip install x\nfor i in range(2):\n    # %time y = i\nx = 1",
			frags[0].Text)
	})

	t.Run("kept when disabled", func(t *testing.T) {
		frags, err := collect(t, NewDecoder("nb.ipynb", WithStripMagics(false)), data)
		require.NoError(t, err)
		assert.Equal(t,
			"%matplotlib inline\n!pip install x\nfor i in range(2):\n    %time y = i\nx = 1",
			frags[0].Text)
	})
}

func TestDecoder_Literate(t *testing.T) {
	nb := testutils.NewNotebook().
		Markdown("# Setup", "", "```python", "%time a = 1", "b = a + 1", "```").
		Markdown("Only prose here.").
		Code("c = 3")
	data := nb.Build()

	frags, err := collect(t, NewDecoder("lit.lipynb", WithLiterate(markdown.NewRenderer())), data)
	require.NoError(t, err)
	require.Len(t, frags, 3)

	assert.Equal(t, domain.BlockCode, frags[0].Kind)
	assert.Equal(t, "# %time a = 1\nb = a + 1\n", frags[0].Text)
	assert.Equal(t, nb.FirstLines(), lines(frags))

	assert.Equal(t, domain.BlockNarrative, frags[1].Kind)
	assert.Equal(t, "# Only prose here.", frags[1].Text)

	assert.Equal(t, domain.BlockNarrative, frags[2].Kind, "a block without fences contributes no code")
	assert.Equal(t, "# c = 3", frags[2].Text)
}

func TestDecoder_Blocks(t *testing.T) {
	data := testutils.NewNotebook().Markdown("intro").Code("x = 1").Build()

	var blocks []domain.Block
	for b, err := range NewDecoder("nb.ipynb").Blocks(data) {
		require.NoError(t, err)
		blocks = append(blocks, b)
	}

	require.Len(t, blocks, 2)
	assert.Equal(t, domain.BlockNarrative, blocks[0].Kind)
	assert.Equal(t, "intro", blocks[0].Text)
	assert.Equal(t, domain.BlockCode, blocks[1].Kind)
	assert.Greater(t, blocks[1].Offset, blocks[0].Offset)
	assert.Equal(t, byte('{'), data[blocks[1].Offset])
}

func TestFactory(t *testing.T) {
	dec := Factory(WithStripMagics(false))("x.ipynb")
	frags := 0
	for _, err := range dec.Decode([]byte(`{"source": "!ls"}`)) {
		require.NoError(t, err)
		frags++
	}
	assert.Equal(t, 1, frags)
}
