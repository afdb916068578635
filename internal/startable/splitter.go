package startable

// splitter.go partitions a row sequence into block spans.
//
// The splitter is a small state machine that classifies each row by its first cell
// only, so boundary detection costs the same for a 3-column and a 3000-column row.
// A span ends where the next marker or blank row starts, which means the splitter
// always reads exactly one row past the end of the span it returns.

import (
	"errors"
	"io"
	"strings"
)

// RowSource is a lazily produced sequence of rows. Next returns io.EOF after the
// last row.
type RowSource interface {
	Next() (Row, error)
}

// RowSourceFunc adapts a function to RowSource.
type RowSourceFunc func() (Row, error)

func (f RowSourceFunc) Next() (Row, error) { return f() }

// GridSource serves rows from an in-memory grid.
func GridSource(grid CellGrid) RowSource {
	i := 0
	return RowSourceFunc(func() (Row, error) {
		if i >= len(grid) {
			return nil, io.EOF
		}
		i++
		return grid[i-1], nil
	})
}

// StringsSource serves rows of string cells.
func StringsSource(rows [][]string) RowSource {
	i := 0
	return RowSourceFunc(func() (Row, error) {
		if i >= len(rows) {
			return nil, io.EOF
		}
		row := make(Row, len(rows[i]))
		for j, c := range rows[i] {
			row[j] = c
		}
		i++
		return row, nil
	})
}

// rowClass is the classification of one row from its first cell.
type rowClass int

const (
	rowContent rowClass = iota
	rowBlank
	rowTable
	rowDirective
	rowTemplate
	rowMetaKey
	rowBadMarker
)

// classifyRow inspects only row[0].
func classifyRow(row Row, commentPrefix string) rowClass {
	if len(row) == 0 || row[0] == nil {
		return rowBlank
	}
	s, ok := row[0].(string)
	if !ok {
		// Typed spreadsheet cells are never markers.
		return rowContent
	}
	if strings.TrimSpace(s) == "" || strings.HasPrefix(s, commentPrefix) {
		return rowBlank
	}

	if strings.HasPrefix(s, "**") {
		switch countLeading(s, '*') {
		case 2:
			return rowTable
		case 3:
			return rowDirective
		default:
			return rowBadMarker
		}
	}

	if strings.HasPrefix(s, ":") {
		n := countLeading(s, ':')
		if n <= 3 && !strings.ContainsRune(s[n:], ':') {
			return rowTemplate
		}
		return rowContent
	}

	trimmed := strings.TrimRightFunc(s, isSpace)
	if strings.HasSuffix(trimmed, ":") && strings.Count(trimmed, ":") == 1 {
		return rowMetaKey
	}
	return rowContent
}

func countLeading(s string, c byte) int {
	n := 0
	for n < len(s) && s[n] == c {
		n++
	}
	return n
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

// markerName extracts the block name from a marker cell: the text after the star
// prefix up to the first ';', trimmed. rest is whatever followed the separator.
func markerName(cell string, stars int) (name, rest string) {
	body := cell[stars:]
	name, rest, _ = strings.Cut(body, ";")
	return strings.TrimSpace(name), rest
}

// spanName returns the name a span is known by before decode.
func spanName(class rowClass, row Row) string {
	s, _ := row[0].(string)
	switch class {
	case rowTable:
		name, _ := markerName(s, 2)
		return strings.TrimSpace(strings.TrimSuffix(name, "*"))
	case rowDirective:
		name, _ := markerName(s, 3)
		return name
	case rowTemplate:
		return strings.TrimSpace(s)
	}
	return ""
}

// rawBlock is a classified span. rows is nil when the gate rejected the span.
type rawBlock struct {
	span BlockSpan
	kept bool
	rows CellGrid
}

// Splitter turns a RowSource into a sequence of spans.
type Splitter struct {
	src           RowSource
	commentPrefix string

	// gate is asked once per span, when the span opens.
	gate func(BlockType, string) bool
	// onIssue receives issues found while classifying.
	onIssue func(Issue)
	// onWarning receives issues that never end the stream, whatever the mode.
	onWarning func(Issue)

	pos       int // absolute index of the next row to read
	pending   Row
	pendClass rowClass
	hasPend   bool
	started   bool
	eof       bool
}

// NewSplitter returns a splitter that keeps every span.
func NewSplitter(src RowSource, commentPrefix string) *Splitter {
	if commentPrefix == "" {
		commentPrefix = DefaultCommentPrefix
	}
	return &Splitter{src: src, commentPrefix: commentPrefix}
}

func (s *Splitter) read() (Row, error) {
	row, err := s.src.Next()
	if err != nil {
		return nil, err
	}
	s.pos++
	return row, nil
}

// next returns the next span with its rows. It returns io.EOF after the last span.
func (s *Splitter) next() (*rawBlock, error) {
	for {
		rb, err := s.nextSpan()
		if err != nil {
			return nil, err
		}
		// Empty preamble spans are not blocks.
		if rb.span.Len() == 0 {
			continue
		}
		return rb, nil
	}
}

// Spans classifies the remaining input without keeping any rows. Issues found while
// classifying (unrecognized markers) are returned alongside the spans.
func (s *Splitter) Spans() ([]BlockSpan, Issues, error) {
	var issues Issues
	s.gate = func(BlockType, string) bool { return false }
	s.onIssue = func(is Issue) {
		is.Severity = SeverityWarning
		issues = append(issues, is)
	}

	var spans []BlockSpan
	for {
		rb, err := s.next()
		if errors.Is(err, io.EOF) {
			return spans, issues, nil
		}
		if err != nil {
			return spans, issues, err
		}
		spans = append(spans, rb.span)
	}
}

func (s *Splitter) nextSpan() (*rawBlock, error) {
	if s.eof && !s.hasPend {
		return nil, io.EOF
	}

	rb := &rawBlock{}
	if !s.started {
		// The preamble is a metadata span starting at row 0, possibly empty.
		s.started = true
		rb.span = BlockSpan{Type: BlockMetadata, StartRow: 0}
		rb.kept = s.allow(BlockMetadata, "")
	} else {
		row, class := s.pending, s.pendClass
		s.hasPend = false
		s.open(rb, row, class)
	}

	for {
		row, err := s.read()
		if errors.Is(err, io.EOF) {
			s.eof = true
			rb.span.EndRow = s.pos
			return rb, nil
		}
		if err != nil {
			return nil, err
		}

		class := classifyRow(row, s.commentPrefix)
		if s.boundary(rb.span.Type, class) {
			if rb.kept && rb.span.Type == BlockTable && class == rowBlank {
				s.checkCutShort(rb, row)
			}
			s.pending, s.pendClass, s.hasPend = row, class, true
			rb.span.EndRow = s.pos - 1
			return rb, nil
		}
		if rb.kept && !(rb.span.Type == BlockBlank && rowIsEmpty(row)) {
			rb.rows = append(rb.rows, row)
		}
	}
}

// open starts a span from its first row.
func (s *Splitter) open(rb *rawBlock, row Row, class rowClass) {
	start := s.pos - 1
	switch class {
	case rowTable:
		rb.span = BlockSpan{Type: BlockTable, Name: spanName(class, row), StartRow: start}
	case rowDirective:
		rb.span = BlockSpan{Type: BlockDirective, Name: spanName(class, row), StartRow: start}
	case rowTemplate:
		rb.span = BlockSpan{Type: BlockTemplateRow, Name: spanName(class, row), StartRow: start}
	default:
		if class == rowBadMarker && s.onIssue != nil {
			s.onIssue(Issue{
				Kind:    ValidationError,
				Block:   strings.TrimSpace(CellString(row[0])),
				Row:     start,
				Col:     0,
				Message: "unrecognized block marker " + quoteCell(row[0]),
			})
		}
		rb.span = BlockSpan{Type: BlockBlank, StartRow: start}
	}

	rb.kept = s.allow(rb.span.Type, rb.span.Name)
	if rb.kept && !rowIsEmpty(row) {
		rb.rows = append(rb.rows, row)
	}
}

// checkCutShort warns when a table is ended by a row whose first cell is empty
// but which still holds values. Those values are not part of any block.
func (s *Splitter) checkCutShort(rb *rawBlock, row Row) {
	if s.onWarning == nil || len(row) == 0 || !IsBlank(row[0]) {
		return
	}
	col, ok := trailingCell(row, 1)
	if !ok {
		return
	}
	s.onWarning(Issue{
		Kind:    StructuralError,
		Block:   rb.span.Name,
		Row:     s.pos - 1,
		Col:     col,
		Message: "row with an empty first cell ends the table; its values are ignored",
	})
}

// rowIsEmpty reports whether every cell of row is blank. Only called on rows that
// are being kept.
func rowIsEmpty(row Row) bool {
	for _, c := range row {
		if !IsBlank(c) {
			return false
		}
	}
	return true
}

// boundary reports whether a row of class ends a span of type cur.
func (s *Splitter) boundary(cur BlockType, class rowClass) bool {
	switch class {
	case rowTable, rowDirective, rowTemplate, rowBadMarker:
		return true
	case rowBlank:
		return cur != BlockBlank
	case rowMetaKey:
		return cur != BlockMetadata && cur != BlockBlank
	}
	return false
}

func (s *Splitter) allow(t BlockType, name string) bool {
	if s.gate == nil {
		return true
	}
	return s.gate(t, name)
}

func quoteCell(c Cell) string {
	return `"` + CellString(c) + `"`
}
