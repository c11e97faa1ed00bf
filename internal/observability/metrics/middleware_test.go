package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPMiddlewareRecordsRequests(t *testing.T) {
	recorder := New()
	handler := HTTPMiddleware(recorder, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/media/abc12345", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	var buf bytes.Buffer
	recorder.Write(&buf)
	body := buf.String()

	expected := `mediastream_http_requests_total{method="GET",path="/api/media/:id",status="418"} 1`
	if !strings.Contains(body, expected) {
		t.Fatalf("expected metrics output to contain %q, got %q", expected, body)
	}
}

func TestHTTPMiddlewareDefaultsStatusToOK(t *testing.T) {
	recorder := New()
	handler := HTTPMiddleware(recorder, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	var buf bytes.Buffer
	recorder.Write(&buf)

	expected := `mediastream_http_requests_total{method="GET",path="/healthz",status="200"} 1`
	if !strings.Contains(buf.String(), expected) {
		t.Fatalf("expected metrics output to contain %q, got %q", expected, buf.String())
	}
}
