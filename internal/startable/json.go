package startable

// json.go builds the JSON precursor of decoded blocks.
//
// Tables have the fixed shape
//
//	{"name": ..., "destinations": {"dest": null, ...}, "columns": {"col": {"unit": ..., "values": [...]}}}
//
// and every value is JSON-native: strings, float64, bool, ISO-8601 strings for
// datetimes and null for missing. Object keys keep their declaration order when
// encoded.

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONColumn is one column of a JSON precursor.
type JSONColumn struct {
	Unit   string `json:"unit"`
	Values []any  `json:"values"`
}

// JSONTable is the JSON-ready form of a table block. Build one with TypedTable.JSON
// or by decoding JSON; the exported maps may be read freely.
type JSONTable struct {
	Name         string                `json:"name"`
	Destinations map[string]any        `json:"destinations"`
	Columns      map[string]JSONColumn `json:"columns"`

	destOrder []string
	colOrder  []string
}

// JSON converts a typed table to its precursor.
func (t *TypedTable) JSON() *JSONTable {
	jt := &JSONTable{
		Name:         t.name,
		Destinations: make(map[string]any, len(t.destinations)),
		Columns:      make(map[string]JSONColumn, len(t.columns)),
		destOrder:    append([]string(nil), t.destinations...),
		colOrder:     make([]string, 0, len(t.columns)),
	}
	for _, d := range t.destinations {
		jt.Destinations[d] = nil
	}
	for _, c := range t.columns {
		values := make([]any, len(c.values))
		for i, v := range c.values {
			values[i] = jsonValue(v)
		}
		jt.Columns[c.schema.Name] = JSONColumn{Unit: c.schema.Unit, Values: values}
		jt.colOrder = append(jt.colOrder, c.schema.Name)
	}
	return jt
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return FormatDatetime(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	}
	return v
}

// DestinationNames returns the destinations in declaration order.
func (jt *JSONTable) DestinationNames() []string { return keyOrder(jt.destOrder, jt.Destinations) }

// ColumnNames returns the column names in declaration order.
func (jt *JSONTable) ColumnNames() []string { return keyOrder(jt.colOrder, jt.Columns) }

// keyOrder returns the recorded order when it still matches the map, otherwise the
// sorted keys.
func keyOrder[V any](order []string, m map[string]V) []string {
	if len(order) == len(m) {
		ok := true
		for _, k := range order {
			if _, found := m[k]; !found {
				ok = false
				break
			}
		}
		if ok {
			return append([]string(nil), order...)
		}
	}
	return slices.Sorted(maps.Keys(m))
}

// MarshalJSON writes the table with keys in declaration order.
func (jt *JSONTable) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	stream.WriteObjectField("name")
	stream.WriteString(jt.Name)
	stream.WriteMore()

	stream.WriteObjectField("destinations")
	stream.WriteObjectStart()
	for i, d := range jt.DestinationNames() {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(d)
		stream.WriteVal(jt.Destinations[d])
	}
	stream.WriteObjectEnd()
	stream.WriteMore()

	stream.WriteObjectField("columns")
	stream.WriteObjectStart()
	for i, name := range jt.ColumnNames() {
		if i > 0 {
			stream.WriteMore()
		}
		col := jt.Columns[name]
		stream.WriteObjectField(name)
		stream.WriteObjectStart()
		stream.WriteObjectField("unit")
		stream.WriteString(col.Unit)
		stream.WriteMore()
		stream.WriteObjectField("values")
		stream.WriteVal(col.Values)
		stream.WriteObjectEnd()
	}
	stream.WriteObjectEnd()
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, fmt.Errorf("encode table %q: %w", jt.Name, stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// Table converts the precursor back to a typed table. Values are coerced again by
// unit, so ISO strings become time.Time and JSON numbers float64. Column order is the
// declaration order when known.
func (jt *JSONTable) Table() (*TypedTable, error) {
	cols := make([]Column, 0, len(jt.Columns))
	for _, name := range jt.ColumnNames() {
		jc := jt.Columns[name]
		coerce := CoercerFor(jc.Unit)
		values := make([]any, len(jc.Values))
		for i, v := range jc.Values {
			if v == nil {
				continue
			}
			cv, err := coerce(v)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q value %d: %w", jt.Name, name, i, err)
			}
			values[i] = cv
		}
		cols = append(cols, Column{schema: ColumnSchema{Name: name, Unit: jc.Unit}, values: values})
	}
	return &TypedTable{
		name:         jt.Name,
		destinations: normalizeDestinations(jt.DestinationNames()),
		columns:      cols,
	}, nil
}

// MarshalJSON writes metadata as an object in key order.
func (m *MetadataBlock) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, k := range m.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		stream.WriteString(m.values[k])
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// jsonBlock is the wire form of a Block.
type jsonBlock struct {
	Type     BlockType `json:"type"`
	Name     string    `json:"name"`
	StartRow int       `json:"start_row"`
	EndRow   int       `json:"end_row"`
	Payload  any       `json:"payload"`
}

// MarshalJSON encodes a block with its span. Typed tables are written as their
// precursor.
func (b Block) MarshalJSON() ([]byte, error) {
	payload := b.Payload
	if t, ok := payload.(*TypedTable); ok {
		payload = t.JSON()
	}
	return json.Marshal(jsonBlock{
		Type:     b.Type,
		Name:     b.Span.Name,
		StartRow: b.Span.StartRow,
		EndRow:   b.Span.EndRow,
		Payload:  payload,
	})
}
