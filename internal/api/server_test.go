package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aischolar/scholar/internal/log"
)

func testServer(t *testing.T, deps Deps, opts Options) http.Handler {
	t.Helper()
	return NewServer(deps, opts, log.NewNop()).Handler()
}

func TestServer_HealthEndpoints(t *testing.T) {
	handler := testServer(t, Deps{}, Options{})

	t.Run("GET /health returns 200", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if w.Body.String() != "ok" {
			t.Errorf("body = %q, want ok", w.Body.String())
		}
	})

	t.Run("GET /ready returns 503 without pool", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})
}

func TestServer_UnconfiguredServicesReturn503(t *testing.T) {
	handler := testServer(t, Deps{}, Options{})

	requests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/v1/instances", ""},
		{http.MethodPost, "/api/v1/instances", `{"name":"test1"}`},
		{http.MethodGet, "/api/v1/instances/alpha/search?q=x", ""},
		{http.MethodPost, "/api/v1/instances/alpha/backups", ""},
		{http.MethodGet, "/api/v1/monitor/performance", ""},
		{http.MethodPost, "/api/v1/instances/alpha/zotero/sync", ""},
		{http.MethodGet, "/api/v1/analytics/usage?instance=alpha", ""},
		{http.MethodGet, "/api/v1/profile/alice/interests", ""},
		{http.MethodGet, "/api/v1/instances/alpha/graph/entities", ""},
		{http.MethodGet, "/api/v1/arxiv/search?q=x", ""},
	}
	for _, req := range requests {
		t.Run(req.method+" "+req.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(req.method, req.path, strings.NewReader(req.body)))
			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", w.Code)
			}
		})
	}
}

func TestServer_UnknownRouteReturns404(t *testing.T) {
	handler := testServer(t, Deps{}, Options{})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	handler := testServer(t, Deps{}, Options{})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestServer_CORS(t *testing.T) {
	handler := testServer(t, Deps{}, Options{CORSOrigins: []string{"http://localhost:4200"}})

	t.Run("allowed origin echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:4200")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("other origin not echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight answered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/instances", nil)
		req.Header.Set("Origin", "http://localhost:4200")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("Allow-Methods not set on preflight")
		}
	})
}
