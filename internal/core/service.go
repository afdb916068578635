package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JonMunkholm/startable/internal/config"
	"github.com/JonMunkholm/startable/internal/logging"
	"github.com/JonMunkholm/startable/internal/source"
	"github.com/JonMunkholm/startable/internal/startable"
	"github.com/JonMunkholm/startable/internal/store"
)

// BlockStore persists parse results. *store.Store satisfies it.
type BlockStore interface {
	SaveParse(ctx context.Context, rec store.ParseRecord, blocks []startable.Block) (store.Summary, error)
	PurgeBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// Service decodes StarTable inputs. It is safe for concurrent use.
type Service struct {
	cfg     *config.Config
	limiter *ParseLimiter
	store   BlockStore
}

// NewService creates a Service. st may be nil, in which case ParseAndStore
// returns ErrStoreDisabled.
func NewService(cfg *config.Config, st BlockStore) *Service {
	return &Service{
		cfg:     cfg,
		limiter: NewParseLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		store:   st,
	}
}

// StoreEnabled reports whether ParseAndStore can persist results.
func (s *Service) StoreEnabled() bool {
	return s.store != nil
}

// LimiterStatus returns the parse slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForParses blocks until running parses finish or ctx is done.
func (s *Service) WaitForParses(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Parse decodes req.Body into blocks.
//
// Registered directive handlers run on every emitted directive. In strict mode
// the first issue ends the parse: the blocks decoded so far are returned together
// with the *startable.Issue as error. Any other error returns a nil result.
func (s *Service) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	if req.Body == nil {
		return nil, ErrNoInput
	}
	cfg, opts, err := s.buildConfig(req)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := &ParseResult{
		ID:        uuid.New(),
		Origin:    req.Name,
		Format:    opts.Format,
		Mode:      cfg.Mode.String(),
		StartedAt: time.Now(),
	}
	logger := logging.WithFields(ctx,
		"parse_id", res.ID,
		"origin", req.Name,
		"client_ip", ClientIPFromContext(ctx),
	)
	cfg.Logger = logger

	src, err := source.Open(source.NewCountingReader(req.Body, s.cfg.Upload.MaxFileSize), req.Name, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", displayName(req.Name), err)
	}
	defer src.Close()
	cfg.PadShortRows = src.PadShortRows()

	logger.Debug("parse started", "format", opts.Format, "mode", res.Mode)

	st := startable.NewStream(s.rows(ctx, src, &res.Rows), cfg)
	for st.Next() {
		b := st.Block()
		if b.Type == startable.BlockDirective {
			out, handled, err := applyDirective(ctx, b)
			if err != nil {
				return nil, err
			}
			if handled {
				res.Blocks = append(res.Blocks, out...)
				continue
			}
		}
		res.Blocks = append(res.Blocks, b)
	}
	res.Issues = st.Issues()
	res.Duration = time.Since(res.StartedAt)

	if err := st.Err(); err != nil {
		var issue *startable.Issue
		if errors.As(err, &issue) {
			logger.Info("parse stopped", "blocks", len(res.Blocks), "error", err)
			return res, err
		}
		return nil, fmt.Errorf("parse %s: %w", displayName(req.Name), err)
	}

	logger.Info("parse completed",
		"blocks", len(res.Blocks),
		"issues", len(res.Issues),
		"rows", res.Rows,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// ParseAndStore parses req and persists the result.
func (s *Service) ParseAndStore(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}

	res, err := s.Parse(ctx, req)
	if err != nil {
		return res, err
	}

	sum, err := s.store.SaveParse(ctx, store.ParseRecord{
		ID:        res.ID,
		Origin:    res.Origin,
		Format:    string(res.Format),
		Mode:      res.Mode,
		Issues:    res.Issues,
		CreatedAt: res.StartedAt,
	}, res.Blocks)
	if err != nil {
		return nil, fmt.Errorf("store parse %s: %w", res.ID, err)
	}
	res.Stored = &sum

	logging.WithFields(ctx, "parse_id", res.ID).Info("parse stored",
		"tables", sum.Tables,
		"cells", sum.Cells,
	)
	return res, nil
}

// Spans classifies req.Body into block spans without decoding any block.
func (s *Service) Spans(ctx context.Context, req ParseRequest) ([]startable.BlockSpan, startable.Issues, error) {
	if req.Body == nil {
		return nil, nil, ErrNoInput
	}
	cfg, opts, err := s.buildConfig(req)
	if err != nil {
		return nil, nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	src, err := source.Open(source.NewCountingReader(req.Body, s.cfg.Upload.MaxFileSize), req.Name, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", displayName(req.Name), err)
	}
	defer src.Close()

	var rows int
	spans, issues, err := startable.Spans(s.rows(ctx, src, &rows), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("split %s: %w", displayName(req.Name), err)
	}
	return spans, issues, nil
}

// withTimeout bounds one parse by the configured upload timeout.
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Upload.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Upload.Timeout)
}

// rows adapts src so that reads stop once ctx is done, counting rows into n.
func (s *Service) rows(ctx context.Context, src startable.RowSource, n *int) startable.RowSource {
	return startable.RowSourceFunc(func() (startable.Row, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := src.Next()
		if err == nil {
			*n++
		}
		return row, err
	})
}

// applyDirective runs the registered handler for a directive block, if any.
func applyDirective(ctx context.Context, b startable.Block) ([]startable.Block, bool, error) {
	d, ok := b.Directive()
	if !ok {
		return nil, false, nil
	}
	h, ok := DirectiveFor(d.Name)
	if !ok {
		return nil, false, nil
	}
	out, err := h(ctx, b)
	if err != nil {
		return nil, true, fmt.Errorf("directive %q at row %d: %w", d.Name, b.Span.StartRow+1, err)
	}
	return out, true, nil
}

// buildConfig merges req with the configured defaults.
func (s *Service) buildConfig(req ParseRequest) (startable.Config, source.Options, error) {
	defaults := s.cfg.Parse
	var cfg startable.Config

	mode, err := startable.ParseMode(firstNonEmpty(req.Mode, defaults.Mode))
	if err != nil {
		return cfg, source.Options{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	output, err := startable.ParseOutput(firstNonEmpty(req.Output, defaults.Output))
	if err != nil {
		return cfg, source.Options{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	var filters []startable.Filter
	if len(req.Tables) > 0 {
		filters = append(filters, startable.TablesNamed(req.Tables...))
	}
	if len(req.Types) > 0 {
		types := make([]startable.BlockType, 0, len(req.Types))
		for _, name := range req.Types {
			t, err := startable.ParseBlockType(strings.TrimSpace(name))
			if err != nil {
				return cfg, source.Options{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
			}
			types = append(types, t)
		}
		filters = append(filters, startable.OnlyTypes(types...))
	}

	sep, err := ParseSeparator(firstNonEmpty(req.Separator, defaults.Separator))
	if err != nil {
		return cfg, source.Options{}, err
	}

	format := req.Format
	if format == "" {
		if format, err = source.DetectFormat(req.Name); err != nil {
			if filepath.Ext(req.Name) != "" {
				return cfg, source.Options{}, err
			}
			// Raw bodies without a file name are read as CSV.
			format = source.FormatCSV
		}
	}

	cfg = startable.Config{
		Mode:           mode,
		Output:         output,
		CommentPrefix:  defaults.CommentPrefix,
		DestinationRow: boolOr(req.DestinationRow, defaults.DestinationRow),
		KeepBlank:      boolOr(req.KeepBlank, defaults.KeepBlank),
		Origin:         req.Name,
	}
	if len(filters) > 0 {
		cfg.Filter = startable.AllOf(filters...)
	}

	opts := source.Options{
		Format:    format,
		Separator: sep,
		Charset:   firstNonEmpty(req.Charset, defaults.Charset),
		Sheet:     req.Sheet,
	}
	return cfg, opts, nil
}

// ParseSeparator reads a one-character separator. "tab" and "\t" name the tab.
func ParseSeparator(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: separator %q must be a single character", ErrInvalidOption, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func displayName(name string) string {
	if name == "" {
		return "input"
	}
	return name
}
