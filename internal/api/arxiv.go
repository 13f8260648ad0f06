package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aischolar/scholar/internal/arxiv"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// MaxArxivResults bounds one search or import page.
const MaxArxivResults = 100

// ArxivHandler exposes arXiv search and import.
type ArxivHandler struct {
	client *arxiv.Client
	store  *vectorstore.Store
	logger log.Logger
}

// RegisterRoutes registers arXiv routes on the given mux.
func (h *ArxivHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/arxiv/search", h.search)
	mux.HandleFunc("POST /api/v1/instances/{name}/arxiv/import", h.importPapers)
}

// search proxies an arXiv query.
// Query parameters: q (required), start, max (default 10).
func (h *ArxivHandler) search(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "arxiv client not configured")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad request", "query parameter q is required")
		return
	}

	result, err := h.client.Search(r.Context(), arxiv.SearchRequest{
		Query:      query,
		Start:      parseIntParam(r, "start", 0, 0, 10000),
		MaxResults: parseIntParam(r, "max", 10, 1, MaxArxivResults),
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ImportArxivRequest is the request body for importing papers.
type ImportArxivRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// importPapers searches arXiv and stores the abstracts in the named
// instance.
func (h *ArxivHandler) importPapers(w http.ResponseWriter, r *http.Request) {
	if h.client == nil || h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "arxiv import not configured")
		return
	}
	var req ImportArxivRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad request", "query is required")
		return
	}
	if req.MaxResults <= 0 || req.MaxResults > MaxArxivResults {
		req.MaxResults = 10
	}

	result, err := h.client.Import(r.Context(), h.store, r.PathValue("name"), arxiv.SearchRequest{
		Query:      req.Query,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
