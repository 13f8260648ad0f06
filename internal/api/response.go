package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/ingest"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/vectorstore"
	"github.com/aischolar/scholar/internal/zotero"
)

// writeJSON writes a JSON response with the given status code.
// The body is encoded to a buffer first so encoding failures can still
// become a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// serviceError maps a service error to an HTTP status via the package
// sentinel errors: validation failures become 400, missing entities
// 404, conflicts 409, everything unrecognized 500.
func serviceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"

	switch {
	case errors.Is(err, instance.ErrInvalidName),
		errors.Is(err, instance.ErrReservedName),
		errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, backup.ErrInvalidTransition):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, instance.ErrInstanceNotFound),
		errors.Is(err, vectorstore.ErrCollectionNotFound),
		errors.Is(err, vectorstore.ErrChunkNotFound),
		errors.Is(err, backup.ErrBackupNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, instance.ErrInstanceExists),
		errors.Is(err, vectorstore.ErrCollectionExists):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, backup.ErrChecksumMismatch),
		errors.Is(err, backup.ErrArchiveCorrupt),
		errors.Is(err, backup.ErrVersionUnsupported):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, zotero.ErrMissingSignature),
		errors.Is(err, zotero.ErrInvalidSignature),
		errors.Is(err, zotero.ErrReplayedEvent):
		status, msg = http.StatusUnauthorized, err.Error()
	}

	writeError(w, status, http.StatusText(status), msg)
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
