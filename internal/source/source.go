// Package source provides the row sources that feed the StarTable engine: delimited
// text and Excel workbooks, plus a CSV writer for rendered grids.
package source

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/startable/internal/startable"
)

// Format is an input file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor Excel.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// ParseFormat reads a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv", "txt":
		return FormatCSV, nil
	case "xlsx", "xlsm", "excel":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// DetectFormat picks a format from a file name's extension.
func DetectFormat(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return ParseFormat(ext)
}

// Options configure how a source is opened.
type Options struct {
	// Format overrides detection from the file name.
	Format Format
	// Separator is the CSV field separator; 0 means ';'.
	Separator rune
	// Charset names the CSV text encoding; empty means UTF-8.
	Charset string
	// Sheet selects the Excel worksheet; empty means the first one.
	Sheet string
	// MaxBytes caps the CSV input size; 0 means no cap.
	MaxBytes int64
}

func (o Options) separator() rune {
	if o.Separator == 0 {
		return DefaultSeparator
	}
	return o.Separator
}

// Source is an open row source.
type Source interface {
	startable.RowSource
	io.Closer
	// PadShortRows reports whether the source drops trailing empty cells.
	PadShortRows() bool
}

// Open returns a source for r. name is used for format detection when
// opts.Format is empty.
func Open(r io.Reader, name string, opts Options) (Source, error) {
	format := opts.Format
	if format == "" {
		var err error
		if format, err = DetectFormat(name); err != nil {
			return nil, err
		}
	}

	switch format {
	case FormatCSV:
		return NewCSVSource(r, opts)
	case FormatExcel:
		return OpenExcel(r, opts.Sheet)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
