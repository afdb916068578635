package startable

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
)

// Stream drives splitter, filter and decoders over one row source and yields
// blocks one at a time. It is forward-only and must be used by a single goroutine.
//
//	st := startable.NewStream(src, startable.Config{Filter: startable.TablesNamed("places")})
//	for st.Next() {
//		blk := st.Block()
//		...
//	}
//	if err := st.Err(); err != nil {
//		...
//	}
//	issues := st.Issues()
type Stream struct {
	cfg   Config
	log   *slog.Logger
	split *Splitter

	block  Block
	issues Issues
	err    error
	done   bool

	blocks int
}

// NewStream prepares a stream. No row is read until the first call to Next.
func NewStream(src RowSource, cfg Config) *Stream {
	s := &Stream{
		cfg: cfg,
		log: cfg.logger(),
	}
	s.split = NewSplitter(src, cfg.commentPrefix())
	s.split.gate = s.allow
	s.split.onIssue = func(is Issue) { s.record(is, false) }
	s.split.onWarning = s.warn
	return s
}

// allow is the splitter gate. It is asked once per span, before any body row is read.
func (s *Stream) allow(t BlockType, name string) bool {
	if t == BlockBlank {
		return s.cfg.KeepBlank
	}
	return s.cfg.Filter == nil || s.cfg.Filter(t, name)
}

// record applies the mode to one issue and reports whether the current block may
// still be emitted.
func (s *Stream) record(is Issue, fatal bool) bool {
	is.Origin = s.cfg.Origin
	cont := false
	switch {
	case s.cfg.Mode == Strict:
		is.Severity = SeverityError
		if s.err == nil {
			stop := is
			s.err = &stop
		}
	case s.cfg.Mode == StrictBlock || fatal:
		is.Severity = SeverityError
	default:
		is.Severity = SeverityWarning
		cont = true
	}
	s.addIssue(is)
	return cont
}

// warn records an issue that leaves the stream and the current block intact.
func (s *Stream) warn(is Issue) {
	is.Origin = s.cfg.Origin
	is.Severity = SeverityWarning
	s.addIssue(is)
}

func (s *Stream) addIssue(is Issue) {
	s.issues = append(s.issues, is)
	s.log.Warn("startable issue",
		slog.String("kind", is.Kind.String()),
		slog.String("severity", is.Severity.String()),
		slog.String("block", is.Block),
		slog.String("at", is.Location()),
		slog.String("message", is.Message),
	)
}

// Next advances to the next emitted block. It returns false at the end of the
// input, after a read error, or after the first issue in Strict mode.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		rb, err := s.split.next()
		if s.err != nil {
			return s.finish()
		}
		if errors.Is(err, io.EOF) {
			return s.finish()
		}
		if err != nil {
			s.err = fmt.Errorf("read row %d: %w", s.split.pos, err)
			return s.finish()
		}

		s.log.Debug("span",
			slog.String("type", rb.span.Type.String()),
			slog.String("name", rb.span.Name),
			slog.Int("start", rb.span.StartRow),
			slog.Int("end", rb.span.EndRow),
			slog.Bool("decode", rb.kept),
		)
		if !rb.kept {
			continue
		}

		blk, ok := s.decode(rb)
		if s.err != nil {
			return s.finish()
		}
		if ok {
			s.block = blk
			s.blocks++
			return true
		}
	}
}

func (s *Stream) finish() bool {
	s.done = true
	s.block = Block{}
	s.log.Debug("stream done",
		slog.Int("blocks", s.blocks),
		slog.Int("issues", len(s.issues)),
		slog.Bool("failed", s.err != nil),
	)
	return false
}

// decode turns one kept span into a block. It returns false when the block is not
// emitted, either because it was abandoned or because it carries nothing.
func (s *Stream) decode(rb *rawBlock) (Block, bool) {
	d := newBlockDecoder(&s.cfg, rb.span, s.record)
	b := Block{Type: rb.span.Type, Span: rb.span}

	switch rb.span.Type {
	case BlockMetadata:
		mb, ok := d.decodeMetadata(rb.rows)
		if !ok || mb.Len() == 0 {
			return b, false
		}
		b.Payload = mb

	case BlockDirective:
		dir, ok := d.decodeDirective(rb.rows)
		if !ok {
			return b, false
		}
		b.Payload = dir

	case BlockTable:
		if s.cfg.Output == OutputCellGrid {
			b.Payload = rb.rows
			break
		}
		t, ok := d.decodeTable(rb.rows)
		if !ok {
			return b, false
		}
		if s.cfg.Output == OutputJSON {
			b.Payload = t.JSON()
		} else {
			b.Payload = t
		}

	case BlockTemplateRow:
		b.Payload = &TemplateRow{Marker: rb.span.Name, Rows: rb.rows}

	case BlockBlank:
		b.Payload = &BlankBlock{Rows: rb.rows}

	default:
		panic(fmt.Sprintf("startable: unhandled block type %v", rb.span.Type))
	}
	return b, true
}

// Block returns the block produced by the last successful call to Next.
func (s *Stream) Block() Block { return s.block }

// Err returns the error that ended the stream early: a row source failure, or the
// first *Issue in Strict mode. It is nil after a complete read.
func (s *Stream) Err() error { return s.err }

// Issues returns every issue recorded so far, in input order.
func (s *Stream) Issues() Issues {
	out := make(Issues, len(s.issues))
	copy(out, s.issues)
	return out
}

// All adapts the stream to range-over-func. A terminating error is yielded last
// with a zero Block.
func (s *Stream) All() iter.Seq2[Block, error] {
	return func(yield func(Block, error) bool) {
		for s.Next() {
			if !yield(s.block, nil) {
				return
			}
		}
		if s.err != nil {
			yield(Block{}, s.err)
		}
	}
}

// Parse drains a stream into a slice.
func Parse(src RowSource, cfg Config) ([]Block, Issues, error) {
	st := NewStream(src, cfg)
	var blocks []Block
	for st.Next() {
		blocks = append(blocks, st.Block())
	}
	return blocks, st.Issues(), st.Err()
}

// Spans classifies a source without decoding any block.
func Spans(src RowSource, cfg Config) ([]BlockSpan, Issues, error) {
	spans, issues, err := NewSplitter(src, cfg.commentPrefix()).Spans()
	for i := range issues {
		issues[i].Origin = cfg.Origin
	}
	return spans, issues, err
}
