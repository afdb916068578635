package startable

import (
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"
)

// BlockType identifies the kind of a StarTable block.
type BlockType int

const (
	BlockMetadata BlockType = iota
	BlockDirective
	BlockTable
	BlockTemplateRow
	BlockBlank
)

var blockTypeNames = [...]string{
	BlockMetadata:    "metadata",
	BlockDirective:   "directive",
	BlockTable:       "table",
	BlockTemplateRow: "template_row",
	BlockBlank:       "blank",
}

func (t BlockType) String() string {
	if t < 0 || int(t) >= len(blockTypeNames) {
		return fmt.Sprintf("BlockType(%d)", int(t))
	}
	return blockTypeNames[t]
}

// ParseBlockType is the inverse of BlockType.String.
func ParseBlockType(s string) (BlockType, error) {
	for i, name := range blockTypeNames {
		if name == s {
			return BlockType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown block type %q", s)
}

// MarshalText lets block types appear as names in JSON and YAML output.
func (t BlockType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Cell is one raw grid value. CSV sources produce strings; spreadsheet sources
// may also produce float64, int, bool, time.Time or nil.
type Cell = any

// Row is one row of cells.
type Row []Cell

// CellGrid is a two-dimensional grid of cells, indexed [row][col].
type CellGrid []Row

// CellRef is an absolute, 0-based position in the source grid.
type CellRef struct {
	Row int
	Col int
}

// String renders the position in spreadsheet A1 notation.
func (r CellRef) String() string {
	name, err := excelize.CoordinatesToCellName(r.Col+1, r.Row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", r.Row+1, r.Col+1)
	}
	return name
}

// BlockSpan is the classified descriptor of a block before full decode.
// EndRow is exclusive.
type BlockSpan struct {
	Type     BlockType `json:"type"`
	Name     string    `json:"name"`
	StartRow int       `json:"start_row"`
	EndRow   int       `json:"end_row"`
}

// Len returns the number of rows covered by the span.
func (s BlockSpan) Len() int { return s.EndRow - s.StartRow }

// ColumnSchema is the declared name and unit of a table column.
type ColumnSchema struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// Kind reports the value type selected by the unit.
func (c ColumnSchema) Kind() ValueKind { return KindForUnit(c.Unit) }

// Column is a decoded table column. Values hold string, float64, bool or
// time.Time according to the column kind; nil marks a missing value.
type Column struct {
	schema ColumnSchema
	values []any
}

// NewColumn builds a column. The value slice is copied.
func NewColumn(name, unit string, values []any) Column {
	return Column{
		schema: ColumnSchema{Name: name, Unit: unit},
		values: slices.Clone(values),
	}
}

func (c Column) Name() string          { return c.schema.Name }
func (c Column) Unit() string          { return c.schema.Unit }
func (c Column) Schema() ColumnSchema  { return c.schema }
func (c Column) Len() int              { return len(c.values) }
func (c Column) Value(i int) any       { return c.values[i] }
func (c Column) Values() []any         { return slices.Clone(c.values) }
func (c Column) IsMissing(i int) bool  { return c.values[i] == nil }

// TypedTable is a decoded table block. It is immutable once produced; every
// accessor returns a copy.
type TypedTable struct {
	name         string
	destinations []string
	transposed   bool
	columns      []Column
}

// NewTypedTable builds a table value. Destinations are deduplicated in order and
// default to "all". Columns are copied.
func NewTypedTable(name string, destinations []string, transposed bool, columns []Column) *TypedTable {
	cols := make([]Column, len(columns))
	for i, c := range columns {
		cols[i] = NewColumn(c.Name(), c.Unit(), c.values)
	}
	return &TypedTable{
		name:         name,
		destinations: normalizeDestinations(destinations),
		transposed:   transposed,
		columns:      cols,
	}
}

func (t *TypedTable) Name() string           { return t.name }
func (t *TypedTable) Destinations() []string { return slices.Clone(t.destinations) }
func (t *TypedTable) Transposed() bool       { return t.transposed }
func (t *TypedTable) NumColumns() int        { return len(t.columns) }

// Columns returns the columns in declaration order.
func (t *TypedTable) Columns() []Column {
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i] = NewColumn(c.Name(), c.Unit(), c.values)
	}
	return out
}

// Column looks up a column by name.
func (t *TypedTable) Column(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.schema.Name == name {
			return NewColumn(c.Name(), c.Unit(), c.values), true
		}
	}
	return Column{}, false
}

// Schema returns the column schemas in order.
func (t *TypedTable) Schema() []ColumnSchema {
	out := make([]ColumnSchema, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.schema
	}
	return out
}

// NumRows returns the number of data rows (0 for a table without columns).
func (t *TypedTable) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].values)
}

// HasDestination reports whether the table is tagged for dest.
func (t *TypedTable) HasDestination(dest string) bool {
	return slices.Contains(t.destinations, dest)
}

// Equal compares two tables field by field. The transposed flag is compared only
// when withLayout is true.
func (t *TypedTable) Equal(o *TypedTable, withLayout bool) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.name != o.name || !slices.Equal(t.destinations, o.destinations) {
		return false
	}
	if withLayout && t.transposed != o.transposed {
		return false
	}
	if len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.columns {
		a, b := t.columns[i], o.columns[i]
		if a.schema != b.schema || len(a.values) != len(b.values) {
			return false
		}
		for j := range a.values {
			if !valuesEqual(a.values[j], b.values[j]) {
				return false
			}
		}
	}
	return true
}

// Directive is a decoded directive block. Its lines are not interpreted here.
type Directive struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// MetadataBlock is an ordered key/value mapping from the file preamble.
type MetadataBlock struct {
	keys   []string
	values map[string]string
}

// NewMetadataBlock returns an empty metadata block.
func NewMetadataBlock() *MetadataBlock {
	return &MetadataBlock{values: make(map[string]string)}
}

// set stores a value. A repeated key keeps its first position and takes the new value.
func (m *MetadataBlock) set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *MetadataBlock) Len() int       { return len(m.keys) }
func (m *MetadataBlock) Keys() []string { return slices.Clone(m.keys) }

// Get returns the value for key.
func (m *MetadataBlock) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// TemplateRow carries the raw rows of a template block (":col", "::table", ":::file").
type TemplateRow struct {
	Marker string   `json:"marker"`
	Rows   CellGrid `json:"rows"`
}

// BlankBlock carries comment and ignored rows between blocks.
type BlankBlock struct {
	Rows CellGrid `json:"rows"`
}

// Block is one emitted stream element. Payload holds exactly one of:
//
//	BlockMetadata    *MetadataBlock
//	BlockDirective   *Directive
//	BlockTable       *TypedTable, *JSONTable or CellGrid (per Config.Output)
//	BlockTemplateRow *TemplateRow
//	BlockBlank       *BlankBlock
type Block struct {
	Type    BlockType
	Span    BlockSpan
	Payload any
}

// Table returns the payload as a typed table.
func (b Block) Table() (*TypedTable, bool) {
	t, ok := b.Payload.(*TypedTable)
	return t, ok
}

// JSONTable returns the payload as a JSON precursor.
func (b Block) JSONTable() (*JSONTable, bool) {
	t, ok := b.Payload.(*JSONTable)
	return t, ok
}

// Directive returns the payload as a directive.
func (b Block) Directive() (*Directive, bool) {
	d, ok := b.Payload.(*Directive)
	return d, ok
}

// Metadata returns the payload as a metadata block.
func (b Block) Metadata() (*MetadataBlock, bool) {
	m, ok := b.Payload.(*MetadataBlock)
	return m, ok
}

func normalizeDestinations(dests []string) []string {
	out := make([]string, 0, len(dests))
	for _, d := range dests {
		if d == "" || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		out = append(out, DefaultDestination)
	}
	return out
}
