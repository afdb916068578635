package startable

// issue.go defines the issue model shared by every decoder.
//
// Issues fall into three kinds:
//
//	STRUCTURAL  block boundary or shape violations (ragged rows, missing unit row)
//	COERCION    a cell cannot be parsed as its column's unit type
//	VALIDATION  names and markers (duplicate/empty column names, unknown markers,
//	            malformed metadata or directive lines)
//
// An Issue always carries the block name, the absolute row index and, when it
// applies, the column index, so the message points at one place in the source grid.

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// IssueKind classifies an Issue.
type IssueKind int

const (
	StructuralError IssueKind = iota
	CoercionError
	ValidationError
)

func (k IssueKind) String() string {
	switch k {
	case StructuralError:
		return "structural"
	case CoercionError:
		return "coercion"
	case ValidationError:
		return "validation"
	default:
		return fmt.Sprintf("IssueKind(%d)", int(k))
	}
}

// Code returns the support reference code for the kind.
func (k IssueKind) Code() string {
	switch k {
	case StructuralError:
		return "STR001"
	case CoercionError:
		return "COE001"
	case ValidationError:
		return "VAL001"
	default:
		return "ERR000"
	}
}

func (k IssueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Severity tells whether an issue cost data (Error) or was repaired in place (Warning).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NoColumn marks an Issue that is not tied to a single column.
const NoColumn = -1

// Issue is one problem found while decoding.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Block    string    `json:"block"`
	Row      int       `json:"row"`
	Col      int       `json:"col"`
	Message  string    `json:"message"`
	Origin   string    `json:"origin,omitempty"`
}

// Location renders the issue position, e.g. "B7" or "row 7".
func (i *Issue) Location() string {
	if i.Col == NoColumn {
		return fmt.Sprintf("row %d", i.Row+1)
	}
	return CellRef{Row: i.Row, Col: i.Col}.String()
}

func (i *Issue) Error() string {
	var b strings.Builder
	if i.Origin != "" {
		b.WriteString(i.Origin)
		b.WriteString(": ")
	}
	b.WriteString(i.Location())
	if i.Block != "" {
		fmt.Fprintf(&b, " in %q", i.Block)
	}
	fmt.Fprintf(&b, ": %s error: %s", i.Kind, i.Message)
	return b.String()
}

// Issues is an ordered list of issues.
type Issues []Issue

// Err folds the list into one error, or nil when empty.
func (is Issues) Err() error {
	var result *multierror.Error
	for i := range is {
		issue := is[i]
		result = multierror.Append(result, &issue)
	}
	return result.ErrorOrNil()
}

// Count returns the number of issues of the given kind.
func (is Issues) Count(kind IssueKind) int {
	n := 0
	for _, i := range is {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// ForBlock returns the issues raised while decoding the named block.
func (is Issues) ForBlock(name string) Issues {
	var out Issues
	for _, i := range is {
		if i.Block == name {
			out = append(out, i)
		}
	}
	return out
}
