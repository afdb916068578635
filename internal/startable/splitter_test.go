package startable

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleRows exercises every block type once.
var sampleRows = [][]string{
	{"author: ERIK"},
	{"date:", "2020-01-01"},
	{""},
	{"**places;", "all"},
	{"place", "distance"},
	{"text", "km"},
	{"home", "0.0"},
	{},
	{"# a comment"},
	{"***include"},
	{"other.csv"},
	{":col"},
	{"x"},
}

func TestClassifyRow(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want rowClass
	}{
		{"empty row", Row{}, rowBlank},
		{"nil first cell", Row{nil, "x"}, rowBlank},
		{"whitespace first cell", Row{"  ", "x"}, rowBlank},
		{"comment", Row{"# note"}, rowBlank},
		{"table", Row{"**places"}, rowTable},
		{"transposed table", Row{"**places*;all"}, rowTable},
		{"directive", Row{"***include"}, rowDirective},
		{"four stars", Row{"****nope"}, rowBadMarker},
		{"column template", Row{":col"}, rowTemplate},
		{"file template", Row{":::file"}, rowTemplate},
		{"four colons", Row{"::::x"}, rowContent},
		{"colon inside template", Row{":a:b"}, rowContent},
		{"metadata key", Row{"author:", "ERIK"}, rowMetaKey},
		{"metadata inline value", Row{"author: ERIK"}, rowContent},
		{"number", Row{3.5}, rowContent},
		{"typed bool", Row{true}, rowContent},
		{"plain text", Row{"home", "0.0"}, rowContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRow(tt.row, DefaultCommentPrefix))
		})
	}
}

func TestClassifyRow_CustomCommentPrefix(t *testing.T) {
	assert.Equal(t, rowBlank, classifyRow(Row{"// note"}, "//"))
	assert.Equal(t, rowContent, classifyRow(Row{"# note"}, "//"))
}

func TestSplitter_Spans(t *testing.T) {
	spans, issues, err := NewSplitter(StringsSource(sampleRows), "").Spans()
	require.NoError(t, err)
	assert.Empty(t, issues)

	want := []BlockSpan{
		{Type: BlockMetadata, StartRow: 0, EndRow: 2},
		{Type: BlockBlank, StartRow: 2, EndRow: 3},
		{Type: BlockTable, Name: "places", StartRow: 3, EndRow: 7},
		{Type: BlockBlank, StartRow: 7, EndRow: 9},
		{Type: BlockDirective, Name: "include", StartRow: 9, EndRow: 11},
		{Type: BlockTemplateRow, Name: ":col", StartRow: 11, EndRow: 13},
	}
	assert.Equal(t, want, spans)
}

func TestSplitter_SpansCoverGrid(t *testing.T) {
	spans, _, err := NewSplitter(StringsSource(sampleRows), "").Spans()
	require.NoError(t, err)

	next := 0
	for _, s := range spans {
		assert.Equal(t, next, s.StartRow, "span %v is not contiguous", s)
		assert.Positive(t, s.Len())
		next = s.EndRow
	}
	assert.Equal(t, len(sampleRows), next)
}

func TestSplitter_NoPreamble(t *testing.T) {
	spans, _, err := NewSplitter(StringsSource([][]string{{"**t;"}, {"a"}, {"-"}}), "").Spans()
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, BlockSpan{Type: BlockTable, Name: "t", StartRow: 0, EndRow: 3}, spans[0])
}

func TestSplitter_TransposedName(t *testing.T) {
	spans, _, err := NewSplitter(StringsSource([][]string{{"**places*;all"}}), "").Spans()
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "places", spans[0].Name)
}

func TestSplitter_BadMarker(t *testing.T) {
	rows := [][]string{{"****what"}, {"x"}, {"**t;"}}
	spans, issues, err := NewSplitter(StringsSource(rows), "").Spans()
	require.NoError(t, err)

	require.Len(t, spans, 2)
	assert.Equal(t, BlockBlank, spans[0].Type)
	assert.Equal(t, BlockTable, spans[1].Type)

	require.Len(t, issues, 1)
	assert.Equal(t, ValidationError, issues[0].Kind)
	assert.Equal(t, "****what", issues[0].Block)
	assert.Equal(t, 0, issues[0].Row)
}

func TestSplitter_RejectedSpanKeepsNoRows(t *testing.T) {
	s := NewSplitter(StringsSource(sampleRows), "")
	s.gate = func(t BlockType, _ string) bool { return t != BlockTable }

	for {
		rb, err := s.next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if rb.span.Type == BlockTable {
			assert.False(t, rb.kept)
			assert.Nil(t, rb.rows)
		} else {
			assert.True(t, rb.kept)
		}
	}
}

func TestSplitter_BlankSpanSkipsEmptyRows(t *testing.T) {
	s := NewSplitter(StringsSource([][]string{{""}, {"# one"}, {}, {"# two"}}), "")
	rb, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, BlockBlank, rb.span.Type)
	assert.Equal(t, CellGrid{{"# one"}, {"# two"}}, rb.rows)
}

// countingSource counts the rows pulled from it.
type countingSource struct {
	src  RowSource
	read int
}

func (c *countingSource) Next() (Row, error) {
	row, err := c.src.Next()
	if err == nil {
		c.read++
	}
	return row, err
}

func TestSplitter_ReadsOneRowAhead(t *testing.T) {
	src := &countingSource{src: StringsSource(sampleRows)}
	s := NewSplitter(src, "")

	rb, err := s.next()
	require.NoError(t, err)
	assert.Equal(t, BlockMetadata, rb.span.Type)
	// Rows 0-1 plus the blank row that ends the preamble.
	assert.Equal(t, 3, src.read)
}

func TestSplitter_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	n := 0
	src := RowSourceFunc(func() (Row, error) {
		n++
		if n > 2 {
			return nil, boom
		}
		return Row{"**t;"}, nil
	})

	_, _, err := NewSplitter(src, "").Spans()
	assert.ErrorIs(t, err, boom)
}
