package source

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/startable/internal/startable"
)

func readAll(t *testing.T, src startable.RowSource) startable.CellGrid {
	t.Helper()
	var grid startable.CellGrid
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			return grid
		}
		require.NoError(t, err)
		grid = append(grid, row)
	}
}

func TestCSVSource_Rows(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  startable.CellGrid
	}{
		{
			name:  "simple",
			input: "**places;all\nplace;distance\n",
			want:  startable.CellGrid{{"**places", "all"}, {"place", "distance"}},
		},
		{
			name:  "empty lines are kept",
			input: "a\n\n\nb\n",
			want:  startable.CellGrid{{"a"}, {}, {}, {"b"}},
		},
		{
			name:  "leading empty line",
			input: "\n**t\n",
			want:  startable.CellGrid{{}, {"**t"}},
		},
		{
			name:  "separator only line",
			input: "a\n;;\nb",
			want:  startable.CellGrid{{"a"}, {"", "", ""}, {"b"}},
		},
		{
			name:  "quoted newline does not count as a gap",
			input: "\"x\ny\";1\n\nz\n",
			want:  startable.CellGrid{{"x\ny", "1"}, {}, {"z"}},
		},
		{
			name:  "crlf",
			input: "a;b\r\n\r\nc\r\n",
			want:  startable.CellGrid{{"a", "b"}, {}, {"c"}},
		},
		{
			name:  "ragged rows",
			input: "a;b;c\nd\n",
			want:  startable.CellGrid{{"a", "b", "c"}, {"d"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCSVSource(strings.NewReader(tt.input), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, readAll(t, src))
		})
	}
}

func TestCSVSource_Encoding(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		charset string
		want    string
	}{
		{
			name:  "utf-8 bom",
			input: append([]byte{0xEF, 0xBB, 0xBF}, "**t"...),
			want:  "**t",
		},
		{
			name:  "invalid byte replaced",
			input: []byte{'h', 'e', 0x80, 'l', 'o'},
			want:  "he�lo",
		},
		{
			name:    "latin1",
			input:   []byte{'K', 0xF8, 'b', 'e', 'n', 'h', 'a', 'v', 'n'},
			charset: "latin1",
			want:    "København",
		},
		{
			name:    "windows-1252",
			input:   []byte{0x80, '5'},
			charset: "windows-1252",
			want:    "€5",
		},
		{
			name:  "utf-16 bom overrides charset",
			input: []byte{0xFF, 0xFE, 'o', 0, 'k', 0},
			want:  "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCSVSource(bytes.NewReader(tt.input), Options{Charset: tt.charset})
			require.NoError(t, err)
			grid := readAll(t, src)
			require.Len(t, grid, 1)
			assert.Equal(t, tt.want, grid[0][0])
		})
	}
}

func TestCSVSource_UnknownCharset(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader("a"), Options{Charset: "klingon-8"})
	assert.ErrorIs(t, err, ErrUnknownCharset)
}

func TestCSVSource_MaxBytes(t *testing.T) {
	input := strings.Repeat("1;2;3\n", 100)

	src, err := NewCSVSource(strings.NewReader(input), Options{MaxBytes: 64})
	require.NoError(t, err)
	var lastErr error
	for {
		_, err := src.Next()
		if err != nil {
			lastErr = err
			break
		}
	}
	assert.ErrorIs(t, lastErr, ErrTooLarge)

	src, err = NewCSVSource(strings.NewReader(input), Options{MaxBytes: int64(len(input))})
	require.NoError(t, err)
	assert.Len(t, readAll(t, src), 100)
	assert.Equal(t, int64(len(input)), src.BytesRead())
}

func TestCSVSource_Separator(t *testing.T) {
	src, err := NewCSVSource(strings.NewReader("a,b\n"), Options{Separator: ','})
	require.NoError(t, err)
	assert.Equal(t, startable.CellGrid{{"a", "b"}}, readAll(t, src))
}

func TestCSVSource_Parse(t *testing.T) {
	input := "author: ERIK\n" +
		"\n" +
		"**places;all\n" +
		"place;distance\n" +
		"text;km\n" +
		"home;0.0\n" +
		"work;12.5\n" +
		"\n" +
		"**other;\n" +
		"x\n" +
		"-\n" +
		"1\n"

	src, err := NewCSVSource(strings.NewReader(input), Options{})
	require.NoError(t, err)
	blocks, issues, err := startable.Parse(src, startable.Config{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, blocks, 3)

	places, ok := blocks[1].Table()
	require.True(t, ok)
	assert.Equal(t, 2, places.NumRows())
	assert.Equal(t, 2, blocks[1].Span.StartRow)
	assert.Equal(t, 7, blocks[1].Span.EndRow)
}

func TestWriteCSV(t *testing.T) {
	tbl := startable.NewTypedTable("places", nil, false, []startable.Column{
		startable.NewColumn("place", "text", []any{"home", "a;b"}),
		startable.NewColumn("distance", "km", []any{0.0, nil}),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, startable.RenderTable(tbl, startable.RenderOptions{}), 0))
	assert.Equal(t, "**places;all\nplace;distance\ntext;km\nhome;0\n\"a;b\";-\n", buf.String())

	src, err := NewCSVSource(&buf, Options{})
	require.NoError(t, err)
	blocks, issues, err := startable.Parse(src, startable.Config{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, blocks, 1)
	got, _ := blocks[0].Table()
	assert.True(t, got.Equal(tbl, true))
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	reader := NewCountingReader(strings.NewReader(input), 0)

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Len(t, out, 1000)
	assert.Equal(t, int64(1000), reader.BytesRead)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"data.csv", FormatCSV, false},
		{"DATA.CSV", FormatCSV, false},
		{"book.xlsx", FormatExcel, false},
		{"book.pdf", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
