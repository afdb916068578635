package startable

import "fmt"

// blockDecoder carries the per-span state shared by the table, directive and
// metadata decoders. It is created for one span and discarded afterwards.
type blockDecoder struct {
	cfg  *Config
	span BlockSpan
	// sink records an issue and reports whether decoding may continue. fatal issues
	// always stop the block.
	sink func(is Issue, fatal bool) bool
	// name is the block name used in issues; it can differ from span.Name once the
	// table decoder has parsed the marker cell.
	name string
}

func newBlockDecoder(cfg *Config, span BlockSpan, sink func(Issue, bool) bool) *blockDecoder {
	return &blockDecoder{cfg: cfg, span: span, sink: sink, name: span.Name}
}

// warn records a recoverable issue. It returns false when the mode says the block
// must be dropped anyway.
func (d *blockDecoder) warn(kind IssueKind, row, col int, format string, args ...any) bool {
	return d.sink(d.issue(kind, row, col, format, args...), false)
}

// fail records an issue that makes the block unusable.
func (d *blockDecoder) fail(kind IssueKind, row, col int, format string, args ...any) {
	d.sink(d.issue(kind, row, col, format, args...), true)
}

func (d *blockDecoder) issue(kind IssueKind, row, col int, format string, args ...any) Issue {
	return Issue{
		Kind:    kind,
		Block:   d.name,
		Row:     row,
		Col:     col,
		Message: fmt.Sprintf(format, args...),
	}
}
