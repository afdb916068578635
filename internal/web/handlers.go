package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/startable/internal/core"
	"github.com/JonMunkholm/startable/internal/source"
	"github.com/JonMunkholm/startable/internal/startable"
)

// maxMemory is how much of a multipart upload is buffered before spilling to disk.
const maxMemory = 32 << 20

// multipartOverhead allows for form boundaries and headers on top of the file itself.
const multipartOverhead = 1 << 20

// parseResponse is the body of a strict-mode failure: the partial result plus
// the issue that stopped the parse.
type parseResponse struct {
	*core.ParseResult
	Error *ErrorResponse `json:"error,omitempty"`
}

type spansResponse struct {
	Spans  []startable.BlockSpan `json:"spans"`
	Issues startable.Issues      `json:"issues"`
}

type healthResponse struct {
	Status string             `json:"status"`
	Store  bool               `json:"store"`
	Parses core.LimiterStatus `json:"parses"`
}

// handleParse decodes an uploaded file and returns its blocks.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := s.readParseRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer cleanup()

	res, err := s.service.Parse(WithRequestMetadata(r.Context(), r), req)
	s.respondParse(w, r, res, err)
}

// handleParseStore decodes an uploaded file and persists the result.
func (s *Server) handleParseStore(w http.ResponseWriter, r *http.Request) {
	if !s.service.StoreEnabled() {
		s.respondError(w, r, core.ErrStoreDisabled)
		return
	}

	req, cleanup, err := s.readParseRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer cleanup()

	res, err := s.service.ParseAndStore(WithRequestMetadata(r.Context(), r), req)
	s.respondParse(w, r, res, err)
}

// handleSpans classifies an uploaded file into block spans.
func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := s.readParseRequest(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer cleanup()

	spans, issues, err := s.service.Spans(WithRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if spans == nil {
		spans = []startable.BlockSpan{}
	}
	if issues == nil {
		issues = startable.Issues{}
	}
	writeJSON(w, http.StatusOK, spansResponse{Spans: spans, Issues: issues})
}

// handleHealth reports liveness and parse slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Store:  s.service.StoreEnabled(),
		Parses: s.service.LimiterStatus(),
	})
}

// respondParse writes a parse result. A strict-mode failure still carries the
// blocks decoded before the first issue.
func (s *Server) respondParse(w http.ResponseWriter, r *http.Request, res *core.ParseResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	var issue *startable.Issue
	if res == nil || !errors.As(err, &issue) {
		s.respondError(w, r, err)
		return
	}

	msg := core.MapError(err)
	writeJSON(w, http.StatusUnprocessableEntity, parseResponse{
		ParseResult: res,
		Error: &ErrorResponse{
			Error:   err.Error(),
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		},
	})
}

// readParseRequest builds a parse request from a multipart "file" field or,
// for any other content type, from the raw body. Options come from the query
// string or, for multipart uploads, from form fields.
func (s *Server) readParseRequest(w http.ResponseWriter, r *http.Request) (core.ParseRequest, func(), error) {
	noop := func() {}
	if max := s.cfg.Upload.MaxFileSize; max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+multipartOverhead)
	}

	var req core.ParseRequest
	cleanup := noop

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return req, noop, fmt.Errorf("%w: %v", source.ErrTooLarge, err)
			}
			return req, noop, fmt.Errorf("%w: invalid form: %v", core.ErrNoInput, err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			r.MultipartForm.RemoveAll()
			return req, noop, core.ErrNoInput
		}
		req.Name = header.Filename
		req.Body = file
		cleanup = func() {
			file.Close()
			r.MultipartForm.RemoveAll()
		}
	} else {
		if r.Body == nil || r.ContentLength == 0 {
			return req, noop, core.ErrNoInput
		}
		req.Name = r.URL.Query().Get("name")
		req.Body = r.Body
	}

	if err := readOptions(r, &req); err != nil {
		cleanup()
		return req, noop, err
	}
	return req, cleanup, nil
}

// readOptions fills the parse options of req from the request.
func readOptions(r *http.Request, req *core.ParseRequest) error {
	get := func(name string) string {
		if v := r.URL.Query().Get(name); v != "" {
			return v
		}
		if r.MultipartForm != nil {
			if vs := r.MultipartForm.Value[name]; len(vs) > 0 {
				return vs[0]
			}
		}
		return ""
	}

	req.Mode = get("mode")
	req.Output = get("output")
	req.Tables = splitList(get("tables"))
	req.Types = splitList(get("types"))
	req.Separator = get("sep")
	req.Charset = get("charset")
	req.Sheet = get("sheet")

	if f := get("format"); f != "" {
		format, err := source.ParseFormat(f)
		if err != nil {
			return err
		}
		req.Format = format
	}

	var err error
	if req.DestinationRow, err = boolParam(get("dest_row"), "dest_row"); err != nil {
		return err
	}
	if req.KeepBlank, err = boolParam(get("keep_blank"), "keep_blank"); err != nil {
		return err
	}
	return nil
}

// splitList splits a comma-separated parameter, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolParam(v, name string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not a boolean", core.ErrInvalidOption, name, v)
	}
	return &b, nil
}
