package startable

// decodeDirective reads a "***name" span. Every row after the marker contributes its
// first cell as one line; trailing cells must be blank.
func (d *blockDecoder) decodeDirective(rows CellGrid) (*Directive, bool) {
	marker, _ := rows[0][0].(string)
	name, _ := markerName(marker, 3)
	if name == "" {
		d.fail(ValidationError, d.span.StartRow, 0, "directive has an empty name")
		return nil, false
	}

	dir := &Directive{Name: name, Lines: make([]string, 0, len(rows)-1)}
	for i, row := range rows[1:] {
		abs := d.span.StartRow + 1 + i
		for col := 1; col < len(row); col++ {
			if IsBlank(row[col]) {
				continue
			}
			if !d.warn(ValidationError, abs, col, "directive line has non-blank trailing cell %s", quoteCell(row[col])) {
				return nil, false
			}
			break
		}
		dir.Lines = append(dir.Lines, CellString(row[0]))
	}
	return dir, true
}
