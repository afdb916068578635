package source

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/startable/internal/startable"
)

// ErrNoSheet is returned when a workbook lacks the requested worksheet.
var ErrNoSheet = errors.New("worksheet not found")

// ExcelSource streams the rows of one worksheet. Number and boolean cells are
// returned typed (float64, bool); everything else is a string. Date cells arrive as
// serial numbers, which the datetime coercer understands.
type ExcelSource struct {
	f     *excelize.File
	rows  *excelize.Rows
	sheet string
	row   int
}

// OpenExcel reads a workbook from r. sheet == "" selects the first worksheet.
func OpenExcel(r io.Reader, sheet string) (*ExcelSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, ErrNoSheet
		}
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %q", ErrNoSheet, sheet)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return &ExcelSource{f: f, rows: rows, sheet: sheet}, nil
}

// Sheet returns the worksheet being read.
func (s *ExcelSource) Sheet() string { return s.sheet }

// Next implements startable.RowSource.
func (s *ExcelSource) Next() (startable.Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", s.sheet, err)
		}
		return nil, io.EOF
	}
	s.row++

	raw, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet %q row %d: %w", s.sheet, s.row, err)
	}

	row := make(startable.Row, len(raw))
	for i, v := range raw {
		if v == "" {
			row[i] = ""
			continue
		}
		row[i] = s.typed(i, v)
	}
	return row, nil
}

// typed converts a raw cell value according to the cell type stored in the sheet.
// Only values that read as numbers need the lookup: text never becomes a number
// or a boolean. The first lookup makes excelize load the worksheet, so a sheet
// with numeric cells is held in memory while it is read.
func (s *ExcelSource) typed(col int, raw string) startable.Cell {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	ref, err := excelize.CoordinatesToCellName(col+1, s.row)
	if err != nil {
		return raw
	}
	ct, err := s.f.GetCellType(s.sheet, ref)
	if err != nil {
		return raw
	}

	switch ct {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		// Unset cells with a value are numbers written without a type attribute.
		return f
	case excelize.CellTypeBool:
		return f != 0
	}
	return raw
}

// PadShortRows is true: workbooks omit trailing empty cells.
func (s *ExcelSource) PadShortRows() bool { return true }

// Close releases the workbook.
func (s *ExcelSource) Close() error {
	if err := s.rows.Close(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
