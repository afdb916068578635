package startable

// table.go decodes TABLE spans.
//
// Row layout (canonical):
//
//	**name;dest ...
//	col1     col2   ...
//	unit1    unit2  ...
//	v11      v12    ...
//
// Transposed layout (name ends with '*'), one column per row:
//
//	**name*;dest ...
//	col1  unit1  v11  v21 ...
//	col2  unit2  v12  v22 ...
//
// Both layouts decode to the same TypedTable shape. Structure (row lengths, unit row)
// is checked for the whole block before any cell is coerced, so a structurally bad
// block never produces coercion issues.

import (
	"strings"
	"unicode"
)

// decodeTable decodes a table span into a *TypedTable. rows[0] is the name row.
func (d *blockDecoder) decodeTable(rows CellGrid) (*TypedTable, bool) {
	marker, _ := rows[0][0].(string)
	name, rest := markerName(marker, 2)
	transposed := strings.HasSuffix(name, "*")
	if transposed {
		name = strings.TrimSpace(strings.TrimSuffix(name, "*"))
	}
	d.name = name
	if name == "" {
		d.fail(ValidationError, d.span.StartRow, 0, "table has an empty name")
		return nil, false
	}

	dests := splitDestinations(rest)
	body := rows[1:]
	bodyStart := d.span.StartRow + 1
	if d.cfg.DestinationRow {
		if len(body) > 0 {
			dests = append(dests, splitDestinations(CellString(body[0][0]))...)
			body = body[1:]
			bodyStart++
		}
	} else {
		for _, c := range rows[0][1:] {
			dests = append(dests, splitDestinations(CellString(c))...)
		}
	}

	var (
		cols []Column
		ok   bool
	)
	if transposed {
		cols, ok = d.decodeColumnRows(body, bodyStart)
	} else {
		cols, ok = d.decodeRowLayout(body, bodyStart)
	}
	if !ok {
		return nil, false
	}

	return &TypedTable{
		name:         name,
		destinations: normalizeDestinations(dests),
		transposed:   transposed,
		columns:      cols,
	}, true
}

func splitDestinations(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
}

// decodeRowLayout handles the canonical layout. body starts at the header row.
func (d *blockDecoder) decodeRowLayout(body CellGrid, start int) ([]Column, bool) {
	if len(body) == 0 {
		return []Column{}, true
	}

	header := body[0]
	ncols := 0
	for ncols < len(header) && !IsBlank(header[ncols]) {
		ncols++
	}

	if len(body) < 2 {
		d.fail(StructuralError, start, NoColumn, "table has column names but no unit row")
		return nil, false
	}
	units := body[1]
	for i := 0; i < ncols; i++ {
		if i >= len(units) || IsBlank(units[i]) {
			d.fail(StructuralError, start+1, i, "unit row has %d units for %d columns", countNonBlank(units, ncols), ncols)
			return nil, false
		}
	}
	if col, extra := trailingCell(units, ncols); extra {
		d.fail(StructuralError, start+1, col, "unit row has a cell beyond the last column")
		return nil, false
	}

	decls := make([]columnDecl, ncols)
	for i := range decls {
		decls[i] = columnDecl{
			name:    cellName(header[i]),
			unit:    cellName(units[i]),
			nameRef: CellRef{Row: start, Col: i},
			unitRef: CellRef{Row: start + 1, Col: i},
		}
	}

	data := body[2:]
	for r, row := range data {
		abs := start + 2 + r
		if len(row) < ncols && !d.cfg.PadShortRows {
			d.fail(StructuralError, abs, len(row), "row has %d cells, table has %d columns", len(row), ncols)
			return nil, false
		}
		if col, extra := trailingCell(row, ncols); extra {
			d.fail(StructuralError, abs, col, "row has a value beyond the last column")
			return nil, false
		}
	}

	if !d.validateColumns(decls) {
		return nil, false
	}

	cols := make([]Column, ncols)
	for i, decl := range decls {
		coerce := CoercerFor(decl.unit)
		values := make([]any, len(data))
		for r, row := range data {
			v, ok := d.coerceCell(coerce, decl, cellAt(row, i), CellRef{Row: start + 2 + r, Col: i})
			if !ok {
				return nil, false
			}
			values[r] = v
		}
		cols[i] = Column{schema: ColumnSchema{Name: decl.name, Unit: decl.unit}, values: values}
	}
	return cols, true
}

// decodeColumnRows handles the transposed layout. Every body row is one column.
func (d *blockDecoder) decodeColumnRows(body CellGrid, start int) ([]Column, bool) {
	decls := make([]columnDecl, len(body))
	for i, row := range body {
		decls[i] = columnDecl{
			name:    cellName(row[0]),
			unit:    cellName(cellAt(row, 1)),
			nameRef: CellRef{Row: start + i, Col: 0},
			unitRef: CellRef{Row: start + i, Col: 1},
		}
	}
	ndata := transposedLen(body)

	for i, row := range body {
		if decls[i].unit == "" {
			d.fail(StructuralError, start+i, 1, "column %q has no unit", decls[i].name)
			return nil, false
		}
		if len(row)-2 < ndata && !d.cfg.PadShortRows {
			d.fail(StructuralError, start+i, len(row), "column %q has %d values, table has %d rows",
				decls[i].name, len(row)-2, ndata)
			return nil, false
		}
	}

	if !d.validateColumns(decls) {
		return nil, false
	}

	cols := make([]Column, len(decls))
	for i, decl := range decls {
		coerce := CoercerFor(decl.unit)
		values := make([]any, ndata)
		for j := range values {
			v, ok := d.coerceCell(coerce, decl, cellAt(body[i], j+2), CellRef{Row: start + i, Col: j + 2})
			if !ok {
				return nil, false
			}
			values[j] = v
		}
		cols[i] = Column{schema: ColumnSchema{Name: decl.name, Unit: decl.unit}, values: values}
	}
	return cols, true
}

// transposedLen counts data positions up to the first one that is blank in every
// column row. Like an empty row in the row layout, that position ends the data.
func transposedLen(body CellGrid) int {
	n := 0
	for positionUsed(body, n+2) {
		n++
	}
	return n
}

func positionUsed(body CellGrid, col int) bool {
	for _, row := range body {
		if !IsBlank(cellAt(row, col)) {
			return true
		}
	}
	return false
}

// coerceCell applies coerce and reports failures. A failed cell decodes to nil
// when the mode lets decoding continue.
func (d *blockDecoder) coerceCell(coerce Coercer, decl columnDecl, c Cell, at CellRef) (any, bool) {
	v, err := coerce(c)
	if err == nil {
		return v, true
	}
	if !d.warn(CoercionError, at.Row, at.Col, "column %q [%s]: %v", decl.name, decl.unit, err) {
		return nil, false
	}
	return nil, true
}

func cellAt(row Row, i int) Cell {
	if i < len(row) {
		return row[i]
	}
	return nil
}

// trailingCell finds the first non-blank cell at or after index from.
func trailingCell(row Row, from int) (int, bool) {
	for i := from; i < len(row); i++ {
		if !IsBlank(row[i]) {
			return i, true
		}
	}
	return 0, false
}

func countNonBlank(row Row, limit int) int {
	n := 0
	for i := 0; i < limit && i < len(row); i++ {
		if !IsBlank(row[i]) {
			n++
		}
	}
	return n
}
