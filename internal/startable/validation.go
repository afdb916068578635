package startable

// validation.go checks table column declarations before any data is coerced.
//
// Validation happens at two levels:
//  1. Names: every column needs a non-empty name, unique within the table
//  2. Units: every column needs a non-blank unit token
//
// Duplicate names are repairable: in lenient mode the later column is renamed to
// "<name>_fixed_NNN", using the first suffix not already taken in the table.

import (
	"fmt"
	"slices"
	"strings"
)

// columnDecl is one column as declared by the header and unit rows, with the
// absolute grid position of its name and unit cells.
type columnDecl struct {
	name    string
	unit    string
	nameRef CellRef
	unitRef CellRef
}

// validateColumns checks names and units in declaration order. It returns false
// when the block must be abandoned.
func (d *blockDecoder) validateColumns(decls []columnDecl) bool {
	declared := make([]string, len(decls))
	for i, c := range decls {
		declared[i] = c.name
	}

	seen := make(map[string]bool, len(decls))
	for i := range decls {
		c := &decls[i]
		if c.name == "" {
			d.fail(ValidationError, c.nameRef.Row, c.nameRef.Col, "column %d has an empty name", i)
			return false
		}
		if c.unit == "" {
			d.fail(StructuralError, c.unitRef.Row, c.unitRef.Col, "column %q has no unit", c.name)
			return false
		}
		if !seen[c.name] {
			seen[c.name] = true
			continue
		}

		fixed := fixDuplicateName(c.name, declared, seen)
		if !d.warn(ValidationError, c.nameRef.Row, c.nameRef.Col,
			"duplicate column %q renamed to %q", c.name, fixed) {
			return false
		}
		c.name = fixed
		seen[fixed] = true
	}
	return true
}

func fixDuplicateName(name string, declared []string, taken map[string]bool) string {
	for sq := 0; sq < 1000; sq++ {
		candidate := fmt.Sprintf("%s_fixed_%03d", name, sq)
		if !taken[candidate] && !slices.Contains(declared, candidate) {
			return candidate
		}
	}
	return name + "-fixed"
}

// cellName trims a header or unit cell. Typed cells are formatted.
func cellName(c Cell) string {
	return strings.TrimSpace(CellString(c))
}
