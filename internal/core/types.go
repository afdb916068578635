package core

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/startable/internal/source"
	"github.com/JonMunkholm/startable/internal/startable"
	"github.com/JonMunkholm/startable/internal/store"
)

var (
	// ErrNoInput is returned when a request carries no body to parse.
	ErrNoInput = errors.New("no file provided")

	// ErrInvalidOption wraps a bad mode, output, type or separator value.
	ErrInvalidOption = errors.New("invalid parse option")

	// ErrStoreDisabled is returned by ParseAndStore when no database is configured.
	ErrStoreDisabled = errors.New("storage is not configured")
)

// ParseRequest describes one input to decode. Empty option fields fall back to
// the service defaults.
type ParseRequest struct {
	// Name is the file name. It selects the format when Format is empty and
	// prefixes issue messages.
	Name string
	Body io.Reader

	Format    source.Format
	Charset   string
	Separator string
	Sheet     string

	Mode   string // lenient, strict-block or strict
	Output string // table, jsondata or cellgrid

	// Tables keeps only tables with these names; other block types pass.
	Tables []string
	// Types keeps only blocks of these types.
	Types []string

	DestinationRow *bool
	KeepBlank      *bool
}

// ParseResult is the outcome of one parse.
type ParseResult struct {
	ID        uuid.UUID         `json:"parse_id"`
	Origin    string            `json:"origin"`
	Format    source.Format     `json:"format"`
	Mode      string            `json:"mode"`
	Blocks    []startable.Block `json:"blocks"`
	Issues    startable.Issues  `json:"issues"`
	Rows      int               `json:"rows"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration_ns"`

	// Stored is set by ParseAndStore.
	Stored *store.Summary `json:"stored,omitempty"`
}

// Bundle returns the decoded tables of the result.
func (r *ParseResult) Bundle() *Bundle {
	return NewBundle(r.Blocks)
}

// Bundle gives access to tables by name. Several tables may share a name; they
// are kept in file order.
type Bundle struct {
	tables []*startable.TypedTable
	byName map[string][]*startable.TypedTable
	names  []string
}

// NewBundle collects the tables among blocks. JSON precursor payloads are
// converted back to typed tables; raw cell grids are skipped.
func NewBundle(blocks []startable.Block) *Bundle {
	b := &Bundle{byName: make(map[string][]*startable.TypedTable)}
	for _, blk := range blocks {
		if blk.Type != startable.BlockTable {
			continue
		}
		t, ok := blk.Table()
		if !ok {
			jt, isJSON := blk.JSONTable()
			if !isJSON {
				continue
			}
			var err error
			if t, err = jt.Table(); err != nil {
				continue
			}
		}
		b.add(t)
	}
	return b
}

func (b *Bundle) add(t *startable.TypedTable) {
	name := t.Name()
	if _, seen := b.byName[name]; !seen {
		b.names = append(b.names, name)
	}
	b.byName[name] = append(b.byName[name], t)
	b.tables = append(b.tables, t)
}

// Get returns the first table named name.
func (b *Bundle) Get(name string) (*startable.TypedTable, bool) {
	ts := b.byName[name]
	if len(ts) == 0 {
		return nil, false
	}
	return ts[0], true
}

// All returns every table named name in file order. An empty name returns all
// tables.
func (b *Bundle) All(name string) []*startable.TypedTable {
	if name == "" {
		return append([]*startable.TypedTable(nil), b.tables...)
	}
	return append([]*startable.TypedTable(nil), b.byName[name]...)
}

// Names returns the distinct table names in order of first appearance.
func (b *Bundle) Names() []string {
	return append([]string(nil), b.names...)
}

// Len returns the number of tables.
func (b *Bundle) Len() int { return len(b.tables) }
