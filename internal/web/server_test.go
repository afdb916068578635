package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/startable/internal/config"
	"github.com/JonMunkholm/startable/internal/core"
	"github.com/JonMunkholm/startable/internal/startable"
	"github.com/JonMunkholm/startable/internal/store"
)

const placesCSV = "author:;ERIK\n" +
	"\n" +
	"**places;all\n" +
	"place;distance\n" +
	"text;km\n" +
	"home;0.0\n" +
	"work;12.5\n"

const badCSV = "**good;\n" +
	"x\n" +
	"-\n" +
	"1\n" +
	"\n" +
	"**bad;\n" +
	"y\n" +
	"km\n" +
	"far\n"

type fakeStore struct {
	saved int
}

func (f *fakeStore) SaveParse(_ context.Context, _ store.ParseRecord, blocks []startable.Block) (store.Summary, error) {
	f.saved++
	return store.Summary{Tables: 1, Metadata: 1, Cells: 4}, nil
}

func (f *fakeStore) PurgeBefore(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Parse: config.ParseConfig{
			Mode:          "lenient",
			Output:        "table",
			Separator:     ";",
			CommentPrefix: "#",
		},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, st core.BlockStore) *Server {
	t.Helper()
	s := NewServer(cfg, core.NewService(cfg, st))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandleParse_Multipart(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	body, contentType := multipartBody(t, "places.csv", placesCSV, map[string]string{"types": "table"})
	req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	out := decode(t, rec)
	assert.NotEmpty(t, out["parse_id"])
	assert.Equal(t, "places.csv", out["origin"])
	assert.Equal(t, "csv", out["format"])

	blocks := out["blocks"].([]any)
	require.Len(t, blocks, 1)
	table := blocks[0].(map[string]any)
	assert.Equal(t, "table", table["type"])
	assert.Equal(t, "places", table["name"])
	assert.EqualValues(t, 2, table["start_row"])
	assert.EqualValues(t, 7, table["end_row"])
	assert.NotNil(t, table["payload"])
}

func TestHandleParse_RawBody(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse?tables=places&mode=strict-block", strings.NewReader(placesCSV))
	req.Header.Set("Content-Type", "text/csv")

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "strict-block", out["mode"])
	assert.Len(t, out["blocks"].([]any), 2)
}

func TestHandleParse_StrictFailure(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse?mode=strict&name=bad.csv", strings.NewReader(badCSV))
	rec := serve(s, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Len(t, out["blocks"].([]any), 1)
	errBody := out["error"].(map[string]any)
	assert.Equal(t, "COE001", errBody["code"])
	assert.Contains(t, errBody["error"], "bad.csv")
	assert.Len(t, out["issues"].([]any), 1)
}

func TestHandleParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"empty body", "/api/parse", "", http.StatusBadRequest, "FILE004"},
		{"bad mode", "/api/parse?mode=sloppy", placesCSV, http.StatusBadRequest, "PRS001"},
		{"bad bool", "/api/parse?keep_blank=maybe", placesCSV, http.StatusBadRequest, "PRS001"},
		{"bad format", "/api/parse?format=pdf", placesCSV, http.StatusBadRequest, "FILE002"},
		{"bad extension", "/api/parse?name=x.docx", placesCSV, http.StatusBadRequest, "FILE002"},
		{"bad charset", "/api/parse?charset=klingon", placesCSV, http.StatusBadRequest, "FILE003"},
	}

	s := newTestServer(t, testConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			rec := serve(s, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode(t, rec)["code"])
		})
	}
}

func TestHandleParse_MissingFile(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	body, contentType := multipartBody(t, "", "", map[string]string{"mode": "strict"})
	req := httptest.NewRequest(http.MethodPost, "/api/parse", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decode(t, rec)["code"])
}

func TestHandleParse_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 32
	s := newTestServer(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(placesCSV))
	rec := serve(s, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode(t, rec)["code"])
}

func TestHandleParseStore(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s := newTestServer(t, testConfig(), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/parse/store", strings.NewReader(placesCSV))
		rec := serve(s, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "PRS002", decode(t, rec)["code"])
	})

	t.Run("stores", func(t *testing.T) {
		st := &fakeStore{}
		s := newTestServer(t, testConfig(), st)
		req := httptest.NewRequest(http.MethodPost, "/api/parse/store", strings.NewReader(placesCSV))
		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 1, st.saved)

		stored := decode(t, rec)["stored"].(map[string]any)
		assert.EqualValues(t, 1, stored["tables"])
		assert.EqualValues(t, 4, stored["cells"])
	})
}

func TestHandleSpans(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/spans", strings.NewReader("****what\n\n"+placesCSV))
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	spans := out["spans"].([]any)
	require.NotEmpty(t, spans)
	assert.Equal(t, "blank", spans[0].(map[string]any)["type"])
	assert.Len(t, out["issues"].([]any), 1)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeStore{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, true, out["store"])
	assert.EqualValues(t, 2, out["parses"].(map[string]any)["max_concurrent"])
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(placesCSV))
	assert.Equal(t, http.StatusUnauthorized, serve(s, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(placesCSV))
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	// Health checks stay open.
	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s := newTestServer(t, cfg, nil)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decode(t, rec)["code"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&startable.Issue{}, http.StatusUnprocessableEntity},
		{core.ErrNoInput, http.StatusBadRequest},
		{core.ErrTooManyParses, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
