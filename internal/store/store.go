// Package store persists decoded StarTable blocks in PostgreSQL.
//
// One parse becomes a row in startable_parses. Tables, directives and metadata
// blocks hang off it; table cells are bulk loaded with the COPY protocol into
// startable_cells, one nullable column per value kind.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	jsoniter "github.com/json-iterator/go"

	"github.com/JonMunkholm/startable/internal/startable"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// beginner is implemented by pools and connections that can open a transaction.
type beginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// ParseRecord describes one parse run.
type ParseRecord struct {
	ID        uuid.UUID
	Origin    string
	Format    string
	Mode      string
	Issues    startable.Issues
	CreatedAt time.Time
}

// Summary counts what a parse stored.
type Summary struct {
	Tables     int   `json:"tables"`
	Directives int   `json:"directives"`
	Metadata   int   `json:"metadata"`
	Cells      int64 `json:"cells"`
	// Skipped counts table blocks stored without cells, e.g. raw cell grids.
	Skipped int `json:"skipped,omitempty"`
}

// Store writes parse results to PostgreSQL.
type Store struct {
	db DBTX
}

// New returns a Store over db. When db can begin transactions (a pool or a
// connection), every SaveParse runs in its own transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the block tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveParse stores rec and every block in order.
func (s *Store) SaveParse(ctx context.Context, rec ParseRecord, blocks []startable.Block) (Summary, error) {
	b, ok := s.db.(beginner)
	if !ok {
		return saveParse(ctx, s.db, rec, blocks)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	sum, err := saveParse(ctx, tx, rec, blocks)
	if err != nil {
		return Summary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Summary{}, fmt.Errorf("commit: %w", err)
	}
	return sum, nil
}

// Count reports what is stored for a parse.
func (s *Store) Count(ctx context.Context, parseID uuid.UUID) (Summary, error) {
	var sum Summary
	var tables, directives, metadata int64
	err := s.db.QueryRow(ctx, countParseSQL, pgUUID(parseID)).Scan(&tables, &directives, &metadata, &sum.Cells)
	if err != nil {
		return Summary{}, fmt.Errorf("count parse %s: %w", parseID, err)
	}
	sum.Tables, sum.Directives, sum.Metadata = int(tables), int(directives), int(metadata)
	return sum, nil
}

// DefaultPurgeBatchSize is used when PurgeBefore gets a non-positive batch size.
const DefaultPurgeBatchSize = 500

// PurgeBefore deletes parses created before cutoff, batchSize parses per
// statement, and returns how many were deleted. Blocks and cells go with them.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultPurgeBatchSize
	}
	ts := pgtype.Timestamptz{Time: cutoff, Valid: true}

	var total int64
	for {
		tag, err := s.db.Exec(ctx, purgeParsesSQL, ts, batchSize)
		if err != nil {
			return total, fmt.Errorf("purge parses before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		n := tag.RowsAffected()
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func saveParse(ctx context.Context, db DBTX, rec ParseRecord, blocks []startable.Block) (Summary, error) {
	var sum Summary

	issues := rec.Issues
	if issues == nil {
		issues = startable.Issues{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return sum, fmt.Errorf("encode issues: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := db.Exec(ctx, insertParseSQL,
		pgUUID(rec.ID), rec.Origin, rec.Format, rec.Mode, issuesJSON, created); err != nil {
		return sum, fmt.Errorf("insert parse: %w", err)
	}

	for seq, b := range blocks {
		switch b.Type {
		case startable.BlockTable:
			t, err := tableOf(b)
			if err != nil {
				return sum, err
			}
			if t == nil {
				sum.Skipped++
				continue
			}
			n, err := SaveTable(ctx, db, rec.ID, seq, b.Span, t)
			if err != nil {
				return sum, err
			}
			sum.Tables++
			sum.Cells += n

		case startable.BlockDirective:
			d, _ := b.Directive()
			if err := SaveDirective(ctx, db, rec.ID, seq, b.Span, d); err != nil {
				return sum, err
			}
			sum.Directives++

		case startable.BlockMetadata:
			m, _ := b.Metadata()
			if err := SaveMetadata(ctx, db, rec.ID, seq, b.Span, m); err != nil {
				return sum, err
			}
			sum.Metadata++
		}
	}
	return sum, nil
}

// tableOf returns the typed table behind a table block, or nil for payloads that
// carry no typed values.
func tableOf(b startable.Block) (*startable.TypedTable, error) {
	if t, ok := b.Table(); ok {
		return t, nil
	}
	if jt, ok := b.JSONTable(); ok {
		t, err := jt.Table()
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", b.Span.Name, err)
		}
		return t, nil
	}
	return nil, nil
}

// SaveTable inserts the table row and copies its cells. It returns the number of
// cells copied.
func SaveTable(ctx context.Context, db DBTX, parseID uuid.UUID, seq int, span startable.BlockSpan, t *startable.TypedTable) (int64, error) {
	tableID := uuid.New()

	schema, err := json.Marshal(t.Schema())
	if err != nil {
		return 0, fmt.Errorf("encode schema of %q: %w", t.Name(), err)
	}
	if _, err := db.Exec(ctx, insertTableSQL,
		pgUUID(tableID), pgUUID(parseID), seq, t.Name(), t.Destinations(), t.Transposed(),
		schema, span.StartRow, span.EndRow); err != nil {
		return 0, fmt.Errorf("insert table %q: %w", t.Name(), err)
	}

	if t.NumRows() == 0 || t.NumColumns() == 0 {
		return 0, nil
	}
	n, err := db.CopyFrom(ctx, pgx.Identifier{"startable_cells"}, cellColumns, newCellSource(tableID, t))
	if err != nil {
		return 0, fmt.Errorf("copy cells of %q: %w", t.Name(), err)
	}
	return n, nil
}

// SaveDirective inserts one directive.
func SaveDirective(ctx context.Context, db DBTX, parseID uuid.UUID, seq int, span startable.BlockSpan, d *startable.Directive) error {
	lines := d.Lines
	if lines == nil {
		lines = []string{}
	}
	if _, err := db.Exec(ctx, insertDirectiveSQL,
		pgUUID(parseID), seq, d.Name, lines, span.StartRow, span.EndRow); err != nil {
		return fmt.Errorf("insert directive %q: %w", d.Name, err)
	}
	return nil
}

// SaveMetadata inserts one metadata block as a JSON object in file order.
func SaveMetadata(ctx context.Context, db DBTX, parseID uuid.UUID, seq int, span startable.BlockSpan, m *startable.MetadataBlock) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := db.Exec(ctx, insertMetadataSQL,
		pgUUID(parseID), seq, data, span.StartRow, span.EndRow); err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// cellSource feeds a table to CopyFrom column by column.
type cellSource struct {
	tableID pgtype.UUID
	columns []startable.Column
	col     int
	row     int
	started bool
}

func newCellSource(tableID uuid.UUID, t *startable.TypedTable) *cellSource {
	return &cellSource{tableID: pgUUID(tableID), columns: t.Columns()}
}

func (c *cellSource) Next() bool {
	if !c.started {
		c.started = true
	} else {
		c.row++
	}
	for c.col < len(c.columns) {
		if c.row < c.columns[c.col].Len() {
			return true
		}
		c.col++
		c.row = 0
	}
	return false
}

func (c *cellSource) Values() ([]any, error) {
	col := c.columns[c.col]
	num, txt, flag, ts := cellValue(col.Value(c.row))
	return []any{c.tableID, int32(c.col), int32(c.row), num, txt, flag, ts}, nil
}

func (c *cellSource) Err() error { return nil }

// cellValue spreads a decoded value over the four nullable columns.
func cellValue(v any) (pgtype.Float8, pgtype.Text, pgtype.Bool, pgtype.Timestamptz) {
	var (
		num  pgtype.Float8
		txt  pgtype.Text
		flag pgtype.Bool
		ts   pgtype.Timestamptz
	)
	switch x := v.(type) {
	case float64:
		num = pgtype.Float8{Float64: x, Valid: true}
	case string:
		txt = pgtype.Text{String: x, Valid: true}
	case bool:
		flag = pgtype.Bool{Bool: x, Valid: true}
	case time.Time:
		ts = pgtype.Timestamptz{Time: x, Valid: true}
	}
	return num, txt, flag, ts
}
