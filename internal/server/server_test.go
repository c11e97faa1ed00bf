package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediastream/internal/api"
	"mediastream/internal/models"
	"mediastream/internal/observability/metrics"
	"mediastream/internal/storage"
)

type stubIngestor struct {
	store *storage.Storage
}

func (s *stubIngestor) Ingest(ctx context.Context, data []byte, filename, mimeType string) (models.MediaAsset, error) {
	category := models.MediaTypeOther
	if slash := strings.IndexByte(mimeType, '/'); slash > 0 {
		switch mimeType[:slash] {
		case "video":
			category = models.MediaTypeVideo
		case "audio":
			category = models.MediaTypeAudio
		}
	}
	return s.store.CreateMediaAsset(ctx, models.MediaAsset{
		MediaType:        category,
		StorageKey:       string(category) + "/stub-" + filename,
		OriginalFilename: filename,
		CanonicalURL:     "https://cdn.example.com/" + string(category) + "/stub-" + filename,
		SizeBytes:        int64(len(data)),
	})
}

func newTestHandler(t *testing.T) (*api.Handler, *storage.Storage) {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "store.json")
	store, err := storage.NewStorage(storePath)
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewHandler(store, &stubIngestor{store: store}, logger), store
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestNewReturnsErrorWhenHandlerNil(t *testing.T) {
	t.Parallel()

	srv, err := New(nil, Config{})
	if err == nil {
		t.Fatalf("expected error when handler is nil, got server: %#v", srv)
	}
}

func TestServerRoutesMediaEndpoints(t *testing.T) {
	handler, _ := newTestHandler(t)
	recorder := metrics.New()
	srv, err := New(handler, Config{Addr: "127.0.0.1:0", Metrics: recorder})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	body, contentType := multipartBody(t, "clip.mp4", "video/mp4", []byte("payload"))
	req := httptest.NewRequest(http.MethodPost, "/api/media", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "videoFiles") {
		t.Fatalf("list: expected videoFiles field, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mediastream_http_requests_total") {
		t.Fatalf("metrics: expected request counter in exposition, got %s", rec.Body.String())
	}
}

func TestServerSetsRequestIDHeader(t *testing.T) {
	handler, _ := newTestHandler(t)
	srv, err := New(handler, Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "incoming")
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "incoming" {
		t.Fatalf("expected incoming request id to be preserved, got %q", got)
	}
}

func TestRateLimitMiddlewareGlobalLimit(t *testing.T) {
	rl, err := newRateLimiter(RateLimitConfig{GlobalRPS: 0.001, GlobalBurst: 1})
	if err != nil {
		t.Fatalf("newRateLimiter error: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	chain := rateLimitMiddleware(rl, nil, next)

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewareThrottlesUploadsPerIP(t *testing.T) {
	rl, err := newRateLimiter(RateLimitConfig{UploadLimit: 1, UploadWindow: time.Hour})
	if err != nil {
		t.Fatalf("newRateLimiter error: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	chain := rateLimitMiddleware(rl, nil, next)

	post := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/media", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec
	}

	if rec := post("10.0.0.1:1234"); rec.Code != http.StatusCreated {
		t.Fatalf("first upload: expected 201, got %d", rec.Code)
	}
	rec := post("10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on throttled upload")
	}
	if rec := post("10.0.0.2:1234"); rec.Code != http.StatusCreated {
		t.Fatalf("different ip: expected 201, got %d", rec.Code)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/media", nil)
	getReq.RemoteAddr = "10.0.0.1:1234"
	getRec := httptest.NewRecorder()
	chain.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusNoContent {
		t.Fatalf("list is not throttled: expected 204, got %d", getRec.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	if got := extractClientIP(req); got != "192.0.2.1" {
		t.Fatalf("remote addr: got %q", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.9")
	if got := extractClientIP(req); got != "203.0.113.9" {
		t.Fatalf("x-real-ip: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := extractClientIP(req); got != "198.51.100.7" {
		t.Fatalf("x-forwarded-for: got %q", got)
	}
}
