// Package startable decodes StarTable block markup from a grid of cells.
//
// A StarTable input is a sequence of rows (from a CSV file or a spreadsheet sheet)
// in which free-text metadata, directive blocks and table blocks are interleaved.
// This package is the block-splitting and typed-decoding engine: it scans the raw
// grid, partitions it into typed block spans and decodes each span into a value.
// It has no file, network or database dependencies; host readers live in
// internal/source and the service layer in internal/core.
//
// # Block Markup
//
//	author:;Jane
//	**places;all
//	place;distance
//	text;km
//	home;0.0
//
//	***include
//	other.csv
//
// Rows before the first marker are metadata lines. A first cell starting with `**`
// opens a table, `***` a directive, `:`/`::`/`:::` a template row. A blank row (or a
// first cell starting with the comment prefix) closes the current block.
//
// # Pipeline
//
// The pipeline is pull-based and single pass:
//
//  1. [Splitter] classifies rows into [BlockSpan] values by their first cell only
//  2. The [Filter] gate is asked once per span, from the marker row alone
//  3. Accepted spans are decoded by the table, directive or metadata decoder
//  4. [Stream] yields one [Block] per call to [Stream.Next]
//
// Rejected spans are never materialised: the splitter keeps classifying first cells to
// find the next boundary but does not store their rows.
//
// # Error Policy
//
// Every problem is reported as an [Issue] with block name, absolute row, column and
// message. In [Lenient] mode (the default) issues are collected, unparseable cells become
// missing values and structurally malformed blocks are dropped while the stream
// continues at the next span boundary. [StrictBlock] drops a block at its first issue.
// [Strict] terminates the stream at the first issue and returns it from [Stream.Err].
package startable
