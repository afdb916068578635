package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/startable/internal/startable"
)

// DefaultSeparator is the StarTable CSV field separator.
const DefaultSeparator = ';'

// CSVSource reads rows of string cells from delimited text.
//
// encoding/csv drops empty lines, but an empty line closes a StarTable block, so the
// source puts them back: the line position of every record is compared with the end
// of the previous one and the gap is replayed as empty rows.
type CSVSource struct {
	r       *csv.Reader
	counter *CountingReader
	closer  io.Closer

	lastLine int // line on which the previous record ended
	blanks   int // empty rows still owed before held
	held     startable.Row
}

// NewCSVSource wraps r. opts.Separator defaults to ';' and opts.Charset to UTF-8.
func NewCSVSource(r io.Reader, opts Options) (*CSVSource, error) {
	counter := NewCountingReader(r, opts.MaxBytes)
	decoded, err := Decode(counter, opts.Charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.Comma = opts.separator()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	s := &CSVSource{r: cr, counter: counter}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// Next implements startable.RowSource.
func (s *CSVSource) Next() (startable.Row, error) {
	if s.blanks > 0 {
		s.blanks--
		return startable.Row{}, nil
	}
	if s.held != nil {
		row := s.held
		s.held = nil
		return row, nil
	}

	rec, err := s.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("csv: %w", err)
	}

	row := make(startable.Row, len(rec))
	for i, field := range rec {
		row[i] = field
	}

	start, _ := s.r.FieldPos(0)
	end, _ := s.r.FieldPos(len(rec) - 1)
	end += strings.Count(rec[len(rec)-1], "\n")
	gap := start - s.lastLine - 1
	s.lastLine = end
	if gap > 0 {
		s.blanks = gap - 1
		s.held = row
		return startable.Row{}, nil
	}
	return row, nil
}

// PadShortRows is false: CSV rows keep their physical length.
func (s *CSVSource) PadShortRows() bool { return false }

// BytesRead reports the raw bytes consumed so far.
func (s *CSVSource) BytesRead() int64 { return s.counter.BytesRead }

// Close closes the underlying reader when it is closable.
func (s *CSVSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// WriteCSV writes a grid as delimited text. Cells are rendered with startable.CellString.
func WriteCSV(w io.Writer, grid startable.CellGrid, sep rune) error {
	if sep == 0 {
		sep = DefaultSeparator
	}
	cw := csv.NewWriter(w)
	cw.Comma = sep

	var rec []string
	for _, row := range grid {
		rec = rec[:0]
		for _, c := range row {
			rec = append(rec, startable.CellString(c))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
