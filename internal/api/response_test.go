package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
	"github.com/aischolar/scholar/internal/zotero"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]string{"name": "alpha"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Content-Length") == "" {
		t.Error("Content-Length not set")
	}
	var decoded map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if decoded["name"] != "alpha" {
		t.Errorf("body = %v", decoded)
	}
}

func TestServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid name", instance.ErrInvalidName, http.StatusBadRequest},
		{"reserved name", fmt.Errorf("create: %w", instance.ErrReservedName), http.StatusBadRequest},
		{"instance missing", instance.ErrInstanceNotFound, http.StatusNotFound},
		{"collection missing", vectorstore.ErrCollectionNotFound, http.StatusNotFound},
		{"chunk missing", vectorstore.ErrChunkNotFound, http.StatusNotFound},
		{"backup missing", backup.ErrBackupNotFound, http.StatusNotFound},
		{"instance exists", instance.ErrInstanceExists, http.StatusConflict},
		{"checksum mismatch", backup.ErrChecksumMismatch, http.StatusUnprocessableEntity},
		{"archive corrupt", backup.ErrArchiveCorrupt, http.StatusUnprocessableEntity},
		{"bad signature", zotero.ErrInvalidSignature, http.StatusUnauthorized},
		{"replayed event", zotero.ErrReplayedEvent, http.StatusUnauthorized},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			serviceError(w, tt.err)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestServiceError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	serviceError(w, fmt.Errorf("pq: connection to 10.0.0.3 refused"))

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Message != "internal server error" {
		t.Errorf("message = %q, internal details leaked", resp.Message)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 5},
		{"?n=10", 10},
		{"?n=abc", 5},
		{"?n=-3", 1},
		{"?n=9999", 50},
	}
	for _, tt := range tests {
		t.Run("q"+tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if got := parseIntParam(r, "n", 5, 1, 50); got != tt.want {
				t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}
