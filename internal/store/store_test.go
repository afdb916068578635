package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/startable/internal/startable"
)

type execCall struct {
	sql  string
	args []any
}

type copyCall struct {
	table pgx.Identifier
	cols  []string
	rows  [][]any
}

// fakeDB records statements instead of running them.
type fakeDB struct {
	execs   []execCall
	copies  []copyCall
	failOn  string // Exec fails when the statement contains this
	scanned []int64
	// affected is returned by successive Execs as the rows affected; the
	// default tag reports one row.
	affected []int64
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("duplicate key value violates unique constraint")
	}
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if len(f.affected) > 0 {
		n := f.affected[0]
		f.affected = f.affected[1:]
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{vals: f.scanned}
}

func (f *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	call := copyCall{table: table, cols: cols}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		call.rows = append(call.rows, vals)
	}
	f.copies = append(f.copies, call)
	return int64(len(call.rows)), src.Err()
}

type fakeRow struct{ vals []int64 }

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		return errors.New("scan: wrong number of destinations")
	}
	for i, d := range dest {
		*(d.(*int64)) = r.vals[i]
	}
	return nil
}

// fakeTxDB can begin transactions.
type fakeTxDB struct {
	fakeDB
	tx *fakeTx
}

func (f *fakeTxDB) Begin(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{db: &f.fakeDB}
	return f.tx, nil
}

type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	return t.db.CopyFrom(ctx, table, cols, src)
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func sampleBlocks(t *testing.T, output startable.Output) []startable.Block {
	t.Helper()
	grid := startable.CellGrid{
		{"author:", "ERIK"},
		{},
		{"**places;", "all"},
		{"place", "distance", "visited", "when"},
		{"text", "km", "onoff", "datetime"},
		{"home", "0", "1", "2020-01-02"},
		{"work", "-", "0", "-"},
		{},
		{"***note"},
		{"hello"},
	}
	blocks, issues, err := startable.Parse(startable.GridSource(grid), startable.Config{Output: output})
	require.NoError(t, err)
	require.Empty(t, issues)
	require.Len(t, blocks, 3)
	return blocks
}

func TestSaveParse(t *testing.T) {
	db := &fakeDB{}
	s := New(db)
	id := uuid.New()

	sum, err := s.SaveParse(context.Background(), ParseRecord{ID: id, Origin: "places.csv", Format: "csv", Mode: "lenient"},
		sampleBlocks(t, startable.OutputTable))
	require.NoError(t, err)

	assert.Equal(t, Summary{Tables: 1, Directives: 1, Metadata: 1, Cells: 8}, sum)

	require.Len(t, db.execs, 4)
	assert.Contains(t, db.execs[0].sql, "INSERT INTO startable_parses")
	assert.Equal(t, pgtype.UUID{Bytes: id, Valid: true}, db.execs[0].args[0])
	assert.JSONEq(t, `[]`, string(db.execs[0].args[4].([]byte)))

	assert.Contains(t, db.execs[1].sql, "INSERT INTO startable_metadata")
	assert.JSONEq(t, `{"author":"ERIK"}`, string(db.execs[1].args[2].([]byte)))

	assert.Contains(t, db.execs[2].sql, "INSERT INTO startable_tables")
	assert.Equal(t, "places", db.execs[2].args[3])
	assert.Equal(t, []string{"all"}, db.execs[2].args[4])
	assert.JSONEq(t,
		`[{"name":"place","unit":"text"},{"name":"distance","unit":"km"},{"name":"visited","unit":"onoff"},{"name":"when","unit":"datetime"}]`,
		string(db.execs[2].args[6].([]byte)))
	assert.Equal(t, 2, db.execs[2].args[7])
	assert.Equal(t, 7, db.execs[2].args[8])

	assert.Contains(t, db.execs[3].sql, "INSERT INTO startable_directives")
	assert.Equal(t, "note", db.execs[3].args[2])
	assert.Equal(t, []string{"hello"}, db.execs[3].args[3])
}

func TestSaveParse_CopiesTypedCells(t *testing.T) {
	db := &fakeDB{}
	_, err := New(db).SaveParse(context.Background(), ParseRecord{ID: uuid.New()}, sampleBlocks(t, startable.OutputTable))
	require.NoError(t, err)

	require.Len(t, db.copies, 1)
	cp := db.copies[0]
	assert.Equal(t, pgx.Identifier{"startable_cells"}, cp.table)
	assert.Equal(t, cellColumns, cp.cols)
	require.Len(t, cp.rows, 8)

	// Column-major: place, distance, visited, when.
	assert.Equal(t, pgtype.Text{String: "home", Valid: true}, cp.rows[0][4])
	assert.Equal(t, int32(0), cp.rows[0][1])
	assert.Equal(t, int32(1), cp.rows[1][2])

	assert.Equal(t, pgtype.Float8{Float64: 0, Valid: true}, cp.rows[2][3])
	missing := cp.rows[3]
	assert.Equal(t, int32(1), missing[1])
	assert.Equal(t, pgtype.Float8{}, missing[3])
	assert.Equal(t, pgtype.Text{}, missing[4])
	assert.Equal(t, pgtype.Bool{}, missing[5])
	assert.Equal(t, pgtype.Timestamptz{}, missing[6])

	assert.Equal(t, pgtype.Bool{Bool: true, Valid: true}, cp.rows[4][5])
	assert.Equal(t, pgtype.Timestamptz{Time: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Valid: true}, cp.rows[6][6])
	assert.Equal(t, pgtype.Timestamptz{}, cp.rows[7][6])
}

func TestSaveParse_PayloadShapes(t *testing.T) {
	tests := []struct {
		name   string
		output startable.Output
		want   Summary
	}{
		{"json precursor", startable.OutputJSON, Summary{Tables: 1, Directives: 1, Metadata: 1, Cells: 8}},
		{"cell grid", startable.OutputCellGrid, Summary{Directives: 1, Metadata: 1, Skipped: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := New(&fakeDB{}).SaveParse(context.Background(), ParseRecord{ID: uuid.New()}, sampleBlocks(t, tt.output))
			require.NoError(t, err)
			assert.Equal(t, tt.want, sum)
		})
	}
}

func TestSaveParse_EmptyTableCopiesNothing(t *testing.T) {
	blocks, _, err := startable.Parse(startable.GridSource(startable.CellGrid{{"**empty;"}}), startable.Config{})
	require.NoError(t, err)

	db := &fakeDB{}
	sum, err := New(db).SaveParse(context.Background(), ParseRecord{ID: uuid.New()}, blocks)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Tables)
	assert.Empty(t, db.copies)
}

func TestSaveParse_Transaction(t *testing.T) {
	db := &fakeTxDB{}
	_, err := New(db).SaveParse(context.Background(), ParseRecord{ID: uuid.New()}, sampleBlocks(t, startable.OutputTable))
	require.NoError(t, err)
	require.NotNil(t, db.tx)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
}

func TestSaveParse_RollsBackOnError(t *testing.T) {
	db := &fakeTxDB{fakeDB: fakeDB{failOn: "startable_directives"}}
	_, err := New(db).SaveParse(context.Background(), ParseRecord{ID: uuid.New()}, sampleBlocks(t, startable.OutputTable))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `insert directive "note"`)
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestSaveParse_RecordsIssues(t *testing.T) {
	db := &fakeDB{}
	issues := startable.Issues{{Kind: startable.CoercionError, Severity: startable.SeverityWarning, Block: "t", Row: 4, Col: 1, Message: "bad"}}
	_, err := New(db).SaveParse(context.Background(), ParseRecord{ID: uuid.New(), Issues: issues}, nil)
	require.NoError(t, err)
	require.Len(t, db.execs, 1)
	assert.JSONEq(t,
		`[{"kind":"coercion","severity":"warning","block":"t","row":4,"col":1,"message":"bad"}]`,
		string(db.execs[0].args[4].([]byte)))
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, New(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	for _, table := range []string{"startable_parses", "startable_tables", "startable_cells", "startable_directives", "startable_metadata"} {
		assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestCount(t *testing.T) {
	db := &fakeDB{scanned: []int64{2, 1, 1, 40}}
	sum, err := New(db).Count(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, Summary{Tables: 2, Directives: 1, Metadata: 1, Cells: 40}, sum)
}

func TestPurgeBefore(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("batches until short", func(t *testing.T) {
		db := &fakeDB{affected: []int64{10, 10, 3}}
		n, err := New(db).PurgeBefore(context.Background(), cutoff, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(23), n)
		require.Len(t, db.execs, 3)
		assert.Contains(t, db.execs[0].sql, "DELETE FROM startable_parses")
		assert.Equal(t, pgtype.Timestamptz{Time: cutoff, Valid: true}, db.execs[0].args[0])
		assert.Equal(t, 10, db.execs[0].args[1])
	})

	t.Run("default batch size", func(t *testing.T) {
		db := &fakeDB{affected: []int64{0}}
		n, err := New(db).PurgeBefore(context.Background(), cutoff, 0)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, DefaultPurgeBatchSize, db.execs[0].args[1])
	})

	t.Run("error", func(t *testing.T) {
		db := &fakeDB{failOn: "DELETE"}
		_, err := New(db).PurgeBefore(context.Background(), cutoff, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "purge parses before 2024-01-01T00:00:00Z")
	})
}
