package startable

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultDestination is used when a table names no destination.
const DefaultDestination = "all"

// DefaultCommentPrefix marks a comment row when it starts the first cell.
const DefaultCommentPrefix = "#"

// Mode is the error policy of a stream.
type Mode int

const (
	// Lenient collects issues, substitutes missing values for bad cells and drops
	// only structurally malformed blocks.
	Lenient Mode = iota
	// StrictBlock drops a block at its first issue and continues with the next one.
	StrictBlock
	// Strict terminates the stream at the first issue.
	Strict
)

func (m Mode) String() string {
	switch m {
	case StrictBlock:
		return "strict-block"
	case Strict:
		return "strict"
	default:
		return "lenient"
	}
}

// ParseMode reads a mode name. The empty string is Lenient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict-block", "strict_block", "block":
		return StrictBlock, nil
	case "strict":
		return Strict, nil
	}
	return Lenient, fmt.Errorf("unknown parse mode %q (want lenient, strict-block or strict)", s)
}

// Output selects the payload type of table blocks.
type Output int

const (
	OutputTable    Output = iota // *TypedTable
	OutputJSON                   // *JSONTable
	OutputCellGrid               // raw CellGrid, no decode
)

func (o Output) String() string {
	switch o {
	case OutputJSON:
		return "jsondata"
	case OutputCellGrid:
		return "cellgrid"
	default:
		return "table"
	}
}

// ParseOutput reads an output name. The empty string is OutputTable.
func ParseOutput(s string) (Output, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "pdtable":
		return OutputTable, nil
	case "json", "jsondata":
		return OutputJSON, nil
	case "cellgrid", "cells":
		return OutputCellGrid, nil
	}
	return OutputTable, fmt.Errorf("unknown output %q (want table, jsondata or cellgrid)", s)
}

// Config is threaded through one parse. The zero value is a lenient, unfiltered
// parse producing typed tables.
type Config struct {
	Mode   Mode
	Filter Filter
	Output Output

	// CommentPrefix marks comment rows; empty means DefaultCommentPrefix.
	CommentPrefix string

	// DestinationRow reads destinations from the row after the table name row
	// instead of from the name row itself.
	DestinationRow bool

	// PadShortRows treats physically short rows as padded with empty cells.
	// Spreadsheet readers drop trailing empty cells, so their hosts set this.
	PadShortRows bool

	// KeepBlank emits BLANK blocks instead of discarding them.
	KeepBlank bool

	// Origin names the input in issue messages, e.g. a file name.
	Origin string

	Logger *slog.Logger
}

func (c Config) commentPrefix() string {
	if c.CommentPrefix == "" {
		return DefaultCommentPrefix
	}
	return c.CommentPrefix
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
