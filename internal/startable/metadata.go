package startable

import "strings"

// decodeMetadata reads preamble lines of the form "key: value" or ["key:", "value"].
// Lines without a colon are reported and skipped.
func (d *blockDecoder) decodeMetadata(rows CellGrid) (*MetadataBlock, bool) {
	mb := NewMetadataBlock()
	for i, row := range rows {
		abs := d.span.StartRow + i
		first, ok := row[0].(string)
		if !ok {
			if !d.warn(ValidationError, abs, 0, "metadata line starts with non-text cell %s", quoteCell(row[0])) {
				return nil, false
			}
			continue
		}

		key, value, found := strings.Cut(first, ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			if !d.warn(ValidationError, abs, 0, "metadata line %q has no key: prefix", first) {
				return nil, false
			}
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" && len(row) > 1 {
			value = strings.TrimSpace(CellString(row[1]))
		}
		mb.set(key, value)
	}
	return mb, true
}
