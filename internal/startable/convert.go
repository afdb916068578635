package startable

// convert.go provides the unit-driven coercion of raw cells into typed values.
//
// A column's unit token selects the coercer:
//   - "text"     -> string
//   - "onoff"    -> bool (0/1/true/false)
//   - "datetime" -> time.Time (day-first, ISO layouts tried first)
//   - anything else, including "-" -> float64 tagged with the unit
//
// "-" and "nan" (any case) are missing-value markers in every non-text column and
// decode to nil. Typed spreadsheet cells are accepted where they make sense: numbers
// in float columns, booleans and 0/1 in onoff columns, time values (or Excel serial
// dates) in datetime columns.

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

// Reserved unit tokens.
const (
	UnitText          = "text"
	UnitOnOff         = "onoff"
	UnitDatetime      = "datetime"
	UnitDimensionless = "-"
)

// ValueKind is the Go value type produced for a column.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindText
	KindBool
	KindDatetime
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "onoff"
	case KindDatetime:
		return "datetime"
	default:
		return "float"
	}
}

// KindForUnit maps a unit token to its value kind.
func KindForUnit(unit string) ValueKind {
	switch unit {
	case UnitText:
		return KindText
	case UnitOnOff:
		return KindBool
	case UnitDatetime:
		return KindDatetime
	default:
		return KindFloat
	}
}

// ErrInvalidValue is wrapped by every coercion failure.
var ErrInvalidValue = errors.New("invalid value")

// Coercer converts one raw cell. A nil result with a nil error is a missing value.
type Coercer func(Cell) (any, error)

// CoercerFor returns the coercer selected by unit.
func CoercerFor(unit string) Coercer {
	switch KindForUnit(unit) {
	case KindText:
		return CoerceText
	case KindBool:
		return CoerceOnOff
	case KindDatetime:
		return CoerceDatetime
	default:
		return CoerceFloat
	}
}

// datetimeLayouts are tried in order. ISO forms come first; the remaining numeric
// forms are read day-first.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"2.1.2006",
	"20060102",
}

// IsMissingMarker reports whether s is a StarTable missing-value marker.
func IsMissingMarker(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "-" || s == "nan"
}

// IsBlank reports whether a cell is nil or whitespace only.
func IsBlank(c Cell) bool {
	if c == nil {
		return true
	}
	s, ok := c.(string)
	return ok && strings.TrimSpace(s) == ""
}

// CellString renders any cell as a string. Nil becomes "".
func CellString(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return FormatDatetime(v)
	default:
		return cast.ToString(v)
	}
}

// CoerceText keeps strings as they are and formats other scalars.
func CoerceText(c Cell) (any, error) {
	return CellString(c), nil
}

// CoerceOnOff accepts 0/1/true/false in any case, booleans and numeric 0/1.
func CoerceOnOff(c Cell) (any, error) {
	switch v := c.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not 0, 1, true or false", ErrInvalidValue, v)
	case nil:
		return nil, fmt.Errorf("%w: empty onoff cell", ErrInvalidValue)
	}

	f, err := cast.ToFloat64E(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v is not an onoff value", ErrInvalidValue, c)
	}
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return nil, fmt.Errorf("%w: %v is not 0 or 1", ErrInvalidValue, c)
}

// CoerceFloat parses numbers. Missing markers decode to nil.
func CoerceFloat(c Cell) (any, error) {
	switch v := c.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty numeric cell", ErrInvalidValue)
	case bool:
		return nil, fmt.Errorf("%w: boolean %v in numeric column", ErrInvalidValue, v)
	case time.Time:
		return nil, fmt.Errorf("%w: date %s in numeric column", ErrInvalidValue, FormatDatetime(v))
	case string:
		s := strings.TrimSpace(v)
		if IsMissingMarker(s) {
			return nil, nil
		}
		if s == "" {
			return nil, fmt.Errorf("%w: empty numeric cell", ErrInvalidValue)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, v)
		}
		return f, nil
	}

	f, err := cast.ToFloat64E(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v is not a number", ErrInvalidValue, c)
	}
	return f, nil
}

// CoerceDatetime parses date and time values. Float cells are read as Excel serial dates.
func CoerceDatetime(c Cell) (any, error) {
	switch v := c.(type) {
	case time.Time:
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: empty datetime cell", ErrInvalidValue)
	case bool:
		return nil, fmt.Errorf("%w: boolean %v in datetime column", ErrInvalidValue, v)
	case string:
		return parseDatetime(v)
	}

	f, err := cast.ToFloat64E(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v is not a datetime", ErrInvalidValue, c)
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v is not a datetime: %v", ErrInvalidValue, c, err)
	}
	return t, nil
}

func parseDatetime(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if IsMissingMarker(s) {
		return nil, nil
	}
	if s == "" || !unicode.IsDigit(rune(s[0])) {
		return nil, fmt.Errorf("%w: %q is not a datetime", ErrInvalidValue, raw)
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// Last resort for the long tail of RFC forms.
	t, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a datetime", ErrInvalidValue, raw)
	}
	return t, nil
}

// FormatDatetime renders t as ISO-8601. UTC values carry no zone suffix.
func FormatDatetime(t time.Time) string {
	if t.Location() == time.UTC {
		return t.Format("2006-01-02T15:04:05.999999999")
	}
	return t.Format(time.RFC3339Nano)
}

// valuesEqual compares two decoded values.
func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
