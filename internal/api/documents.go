package api

import (
	"encoding/json"
	"net/http"

	"github.com/aischolar/scholar/internal/ingest"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// MaxInlineTextLength bounds inline document bodies. Larger corpora go
// through file or directory ingestion.
const MaxInlineTextLength = 1 << 20

// DocumentHandler handles document ingestion and removal.
type DocumentHandler struct {
	ingest *ingest.Service
	store  *vectorstore.Store
	logger log.Logger
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/instances/{name}/documents", h.create)
	mux.HandleFunc("DELETE /api/v1/instances/{name}/documents/{id}", h.remove)
}

// CreateDocumentRequest is the request body for ingesting a document.
// Exactly one source must be set: a URL to fetch, a server-local path,
// or inline title plus text.
type CreateDocumentRequest struct {
	URL      string            `json:"url,omitempty"`
	Path     string            `json:"path,omitempty"`
	Title    string            `json:"title,omitempty"`
	Text     string            `json:"text,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r CreateDocumentRequest) sources() int {
	n := 0
	if r.URL != "" {
		n++
	}
	if r.Path != "" {
		n++
	}
	if r.Text != "" {
		n++
	}
	return n
}

func (h *DocumentHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "ingestion service not configured")
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid request body")
		return
	}
	if req.sources() != 1 {
		writeError(w, http.StatusBadRequest, "bad request", "exactly one of url, path or text is required")
		return
	}
	if len(req.Text) > MaxInlineTextLength {
		writeError(w, http.StatusBadRequest, "bad request", "inline text too large")
		return
	}

	name := r.PathValue("name")
	var (
		result ingest.Result
		err    error
	)
	switch {
	case req.URL != "":
		result, err = h.ingest.IngestURL(r.Context(), name, req.URL)
	case req.Path != "":
		result, err = h.ingest.IngestFile(r.Context(), name, req.Path)
	default:
		result, err = h.ingest.IngestText(r.Context(), name, req.Title, req.Text, req.Metadata)
	}
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *DocumentHandler) remove(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "vector store not configured")
		return
	}

	name := r.PathValue("name")
	if err := instance.ValidateName(name); err != nil {
		serviceError(w, err)
		return
	}
	collection := instance.CollectionName(name)
	if err := h.store.DeleteChunk(r.Context(), collection, r.PathValue("id")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
