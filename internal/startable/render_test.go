package startable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeOne(t *testing.T, grid CellGrid, cfg Config) *TypedTable {
	t.Helper()
	blocks, issues, err := Parse(GridSource(grid), cfg)
	require.NoError(t, err)
	require.Empty(t, issues)
	return onlyTable(t, blocks)
}

func TestRenderTable_RoundTrip(t *testing.T) {
	when := time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC)
	columns := []Column{
		NewColumn("name", "text", []any{"a", "b", "c"}),
		NewColumn("length", "m", []any{1.5, nil, 1e-7}),
		NewColumn("count", "-", []any{3.0, 4.0, nil}),
		NewColumn("active", "onoff", []any{true, false, true}),
		NewColumn("at", "datetime", []any{when, nil, when.Add(90 * time.Minute)}),
	}
	truncate := func(n int) []Column {
		out := make([]Column, len(columns))
		for i, c := range columns {
			out[i] = NewColumn(c.Name(), c.Unit(), c.Values()[:n])
		}
		return out
	}

	for _, transposed := range []bool{false, true} {
		for ncols := 0; ncols <= len(columns); ncols++ {
			for nrows := 0; nrows <= 3; nrows++ {
				orig := NewTypedTable("t", []string{"calc", "report"}, transposed, truncate(nrows)[:ncols])
				for _, destRow := range []bool{false, true} {
					grid := RenderTable(orig, RenderOptions{DestinationRow: destRow})
					got := decodeOne(t, grid, Config{DestinationRow: destRow})
					assert.True(t, got.Equal(orig, true),
						"transposed=%v cols=%d rows=%d destRow=%v\ngrid: %v", transposed, ncols, nrows, destRow, grid)
				}
			}
		}
	}
}

func TestRenderTable_Layouts(t *testing.T) {
	tbl := NewTypedTable("places", nil, false, []Column{
		NewColumn("place", "text", []any{"home"}),
		NewColumn("distance", "km", []any{0.0}),
	})
	assert.Equal(t, CellGrid{
		{"**places", "all"},
		{"place", "distance"},
		{"text", "km"},
		{"home", "0"},
	}, RenderTable(tbl, RenderOptions{}))

	tr := NewTypedTable("places", nil, true, tbl.Columns())
	assert.Equal(t, CellGrid{
		{"**places*", "all"},
		{"place", "text", "home"},
		{"distance", "km", "0"},
	}, RenderTable(tr, RenderOptions{}))
}

func TestRenderTable_MissingRep(t *testing.T) {
	tbl := NewTypedTable("t", nil, false, []Column{NewColumn("n", "-", []any{nil})})
	grid := RenderTable(tbl, RenderOptions{MissingRep: "nan"})
	assert.Equal(t, Row{"nan"}, grid[len(grid)-1])

	got := decodeOne(t, grid, Config{})
	assert.True(t, got.Equal(tbl, true))
}

func TestTransposedEquivalence(t *testing.T) {
	tests := []struct {
		name       string
		rows       CellGrid
		transposed CellGrid
	}{
		{
			name: "mixed units",
			rows: CellGrid{
				{"**t;", "all"},
				{"a", "b", "c", "d"},
				{"text", "m", "onoff", "datetime"},
				{"x", "1", "1", "01/02/2020"},
				{"y", "2.5", "0", "-"},
			},
			transposed: CellGrid{
				{"**t*;", "all"},
				{"a", "text", "x", "y"},
				{"b", "m", "1", "2.5"},
				{"c", "onoff", "1", "0"},
				{"d", "datetime", "01/02/2020", "-"},
			},
		},
		{
			name:       "no data rows",
			rows:       CellGrid{{"**t;"}, {"a", "b"}, {"text", "-"}},
			transposed: CellGrid{{"**t*;"}, {"a", "text"}, {"b", "-"}},
		},
		{
			name:       "name only",
			rows:       CellGrid{{"**t;"}},
			transposed: CellGrid{{"**t*;"}},
		},
		{
			name:       "blank position ends the data",
			rows:       CellGrid{{"**t;"}, {"a", "b"}, {"-", "-"}, {"1", "1"}, {"", ""}, {"3", "3"}},
			transposed: CellGrid{{"**t*;"}, {"a", "-", "1", "", "3"}, {"b", "-", "1", "", "3"}},
		},
		{
			name:       "typed spreadsheet cells",
			rows:       CellGrid{{"**t;"}, {"n", "on"}, {"kg", "onoff"}, {2.0, true}, {3, 0.0}},
			transposed: CellGrid{{"**t*;"}, {"n", "kg", 2.0, 3}, {"on", "onoff", true, 0.0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decodeOne(t, tt.rows, Config{})
			b := decodeOne(t, tt.transposed, Config{})
			assert.False(t, a.Transposed())
			assert.True(t, b.Transposed())
			assert.True(t, a.Equal(b, false))
			assert.False(t, a.Equal(b, true))
		})
	}
}

func TestRenderDirectiveAndMetadata(t *testing.T) {
	md := NewMetadataBlock()
	md.set("author", "ERIK")
	md.set("date", "2020-01-01")
	dir := &Directive{Name: "include", Lines: []string{"a.csv", "b.csv"}}

	var grid CellGrid
	grid = append(grid, RenderMetadata(md)...)
	grid = append(grid, RenderDirective(dir)...)

	blocks, issues, err := Parse(GridSource(grid), Config{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, blocks, 2)

	gotMD, ok := blocks[0].Metadata()
	require.True(t, ok)
	assert.Equal(t, md.Keys(), gotMD.Keys())
	v, _ := gotMD.Get("date")
	assert.Equal(t, "2020-01-01", v)

	gotDir, ok := blocks[1].Directive()
	require.True(t, ok)
	assert.Equal(t, dir, gotDir)
}
