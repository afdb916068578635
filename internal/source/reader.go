package source

// reader.go prepares raw bytes for the CSV reader without loading the file into memory:
//
//   - a leading UTF-8 or UTF-16 byte order mark is consumed
//   - input in a legacy charset (latin1, windows-1252, ...) is decoded to UTF-8
//   - invalid UTF-8 sequences become U+FFFD instead of failing the parse
//   - bytes are counted, and reading stops with ErrTooLarge past a size limit
//
// Use Decode to apply the transforms in the right order.

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrTooLarge is returned once a source grows past its byte limit.
var ErrTooLarge = errors.New("input exceeds size limit")

// ErrUnknownCharset is returned for a charset name the IANA index does not know.
var ErrUnknownCharset = errors.New("unknown charset")

// LookupCharset resolves an IANA or common charset name. The empty string and
// "utf-8" resolve to UTF-8.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return unicode.UTF8, nil
	case "latin1", "latin-1":
		name = "ISO-8859-1"
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	return enc, nil
}

// Decode wraps r so it yields clean UTF-8. A byte order mark, when present, overrides
// the named charset.
func Decode(r io.Reader, charset string) (io.Reader, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return nil, err
	}
	// The UTF-8 decoder also replaces invalid sequences, so it runs even for UTF-8 input.
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}

// CountingReader tracks bytes read and enforces an optional limit.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64 // 0 means no limit
}

// NewCountingReader wraps r. limit <= 0 disables the limit.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	if r.Limit > 0 && r.BytesRead >= r.Limit {
		// Probe for one more byte to tell "exactly at the limit" from "over it".
		var probe [1]byte
		n, err := r.reader.Read(probe[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if r.Limit > 0 && int64(len(p)) > r.Limit-r.BytesRead {
		p = p[:r.Limit-r.BytesRead]
	}
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
