package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aischolar/scholar/internal/log"
)

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panicking)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		requestIDMiddleware(false)(ok).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Header().Get(requestIDHeader) == "" {
			t.Error("no request id assigned")
		}
	})

	t.Run("upstream id ignored without trust", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "spoofed")
		w := httptest.NewRecorder()
		requestIDMiddleware(false)(ok).ServeHTTP(w, req)
		if w.Header().Get(requestIDHeader) == "spoofed" {
			t.Error("untrusted upstream id honored")
		}
	})

	t.Run("upstream id honored with trust", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "req-42")
		w := httptest.NewRecorder()
		requestIDMiddleware(true)(ok).ServeHTTP(w, req)
		if got := w.Header().Get(requestIDHeader); got != "req-42" {
			t.Errorf("request id = %q, want req-42", got)
		}
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"direct", "192.0.2.1:1234", "", "", false, "192.0.2.1"},
		{"proxy headers ignored untrusted", "192.0.2.1:1234", "10.0.0.9", "", false, "192.0.2.1"},
		{"x-real-ip trusted", "192.0.2.1:1234", "10.0.0.9", "", true, "10.0.0.9"},
		{"forwarded-for first hop", "192.0.2.1:1234", "", "10.0.0.9, 172.16.0.1", true, "10.0.0.9"},
		{"forwarded-for single", "192.0.2.1:1234", "", "10.0.0.9", true, "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIPLimiters(t *testing.T) {
	limiters := newIPLimiters(3)

	allowed := 0
	for range 10 {
		if limiters.allow("192.0.2.1") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Errorf("allowed = %d, want burst of 3", allowed)
	}

	// A different client has its own bucket.
	if !limiters.allow("192.0.2.2") {
		t.Error("second client rejected despite fresh bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rateLimitMiddleware(newIPLimiters(1), false)(ok)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1000"
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
		tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v, want [outer inner]", order)
	}
}
