package store

// schemaSQL creates the tables decoded blocks are stored in. Cells are stored one
// per row with one nullable column per value kind; a missing value leaves all four
// NULL.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS startable_parses (
	id          UUID PRIMARY KEY,
	origin      TEXT NOT NULL,
	format      TEXT NOT NULL,
	mode        TEXT NOT NULL,
	issues      JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS startable_tables (
	id            UUID PRIMARY KEY,
	parse_id      UUID NOT NULL REFERENCES startable_parses(id) ON DELETE CASCADE,
	seq           INT NOT NULL,
	name          TEXT NOT NULL,
	destinations  TEXT[] NOT NULL,
	transposed    BOOLEAN NOT NULL,
	columns       JSONB NOT NULL,
	start_row     INT NOT NULL,
	end_row       INT NOT NULL
);

CREATE INDEX IF NOT EXISTS startable_tables_parse_idx ON startable_tables (parse_id, seq);
CREATE INDEX IF NOT EXISTS startable_tables_name_idx ON startable_tables (name);

CREATE TABLE IF NOT EXISTS startable_cells (
	table_id  UUID NOT NULL REFERENCES startable_tables(id) ON DELETE CASCADE,
	col_idx   INT NOT NULL,
	row_idx   INT NOT NULL,
	num       DOUBLE PRECISION,
	txt       TEXT,
	flag      BOOLEAN,
	ts        TIMESTAMPTZ,
	PRIMARY KEY (table_id, col_idx, row_idx)
);

CREATE TABLE IF NOT EXISTS startable_directives (
	parse_id   UUID NOT NULL REFERENCES startable_parses(id) ON DELETE CASCADE,
	seq        INT NOT NULL,
	name       TEXT NOT NULL,
	lines      TEXT[] NOT NULL,
	start_row  INT NOT NULL,
	end_row    INT NOT NULL,
	PRIMARY KEY (parse_id, seq)
);

CREATE TABLE IF NOT EXISTS startable_metadata (
	parse_id   UUID NOT NULL REFERENCES startable_parses(id) ON DELETE CASCADE,
	seq        INT NOT NULL,
	data       JSONB NOT NULL,
	start_row  INT NOT NULL,
	end_row    INT NOT NULL,
	PRIMARY KEY (parse_id, seq)
);
`

const (
	insertParseSQL = `INSERT INTO startable_parses (id, origin, format, mode, issues, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	insertTableSQL = `INSERT INTO startable_tables (id, parse_id, seq, name, destinations, transposed, columns, start_row, end_row)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertDirectiveSQL = `INSERT INTO startable_directives (parse_id, seq, name, lines, start_row, end_row)
VALUES ($1, $2, $3, $4, $5, $6)`

	insertMetadataSQL = `INSERT INTO startable_metadata (parse_id, seq, data, start_row, end_row)
VALUES ($1, $2, $3, $4, $5)`

	purgeParsesSQL = `DELETE FROM startable_parses WHERE id IN (
	SELECT id FROM startable_parses WHERE created_at < $1 ORDER BY created_at LIMIT $2
)`

	countParseSQL = `SELECT
	(SELECT count(*) FROM startable_tables WHERE parse_id = $1),
	(SELECT count(*) FROM startable_directives WHERE parse_id = $1),
	(SELECT count(*) FROM startable_metadata WHERE parse_id = $1),
	(SELECT count(*) FROM startable_cells c JOIN startable_tables t ON t.id = c.table_id WHERE t.parse_id = $1)`
)

var cellColumns = []string{"table_id", "col_idx", "row_idx", "num", "txt", "flag", "ts"}
