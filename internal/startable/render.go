package startable

import (
	"strconv"
	"strings"
	"time"
)

// RenderOptions controls how a table is written back to cells.
type RenderOptions struct {
	// MissingRep is written for missing values. Empty means "-".
	MissingRep string
	// DestinationRow writes destinations on their own row after the name row.
	DestinationRow bool
}

// RenderTable writes t in StarTable layout, transposed when t.Transposed() is set.
// Every cell is a string, so the grid can go straight to a CSV writer; decoding the
// result yields a table equal to t.
func RenderTable(t *TypedTable, opts RenderOptions) CellGrid {
	missing := opts.MissingRep
	if missing == "" {
		missing = "-"
	}

	marker := "**" + t.name
	if t.transposed {
		marker += "*"
	}
	dests := strings.Join(t.destinations, " ")

	var grid CellGrid
	if opts.DestinationRow {
		grid = append(grid, Row{marker}, Row{dests})
	} else {
		grid = append(grid, Row{marker, dests})
	}
	if len(t.columns) == 0 {
		return grid
	}

	if t.transposed {
		for _, c := range t.columns {
			row := make(Row, 0, len(c.values)+2)
			row = append(row, c.schema.Name, c.schema.Unit)
			for _, v := range c.values {
				row = append(row, renderValue(v, missing))
			}
			grid = append(grid, row)
		}
		return grid
	}

	header := make(Row, len(t.columns))
	units := make(Row, len(t.columns))
	for i, c := range t.columns {
		header[i] = c.schema.Name
		units[i] = c.schema.Unit
	}
	grid = append(grid, header, units)
	for r := 0; r < t.NumRows(); r++ {
		row := make(Row, len(t.columns))
		for i, c := range t.columns {
			row[i] = renderValue(c.values[r], missing)
		}
		grid = append(grid, row)
	}
	return grid
}

// RenderDirective writes a directive back to cells.
func RenderDirective(d *Directive) CellGrid {
	grid := CellGrid{{"***" + d.Name}}
	for _, l := range d.Lines {
		grid = append(grid, Row{l})
	}
	return grid
}

// RenderMetadata writes metadata lines as ["key:", "value"].
func RenderMetadata(m *MetadataBlock) CellGrid {
	grid := make(CellGrid, 0, len(m.keys))
	for _, k := range m.keys {
		grid = append(grid, Row{k + ":", m.values[k]})
	}
	return grid
}

func renderValue(v any, missing string) Cell {
	switch x := v.(type) {
	case nil:
		return missing
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return FormatDatetime(x)
	}
	return CellString(v)
}
