package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aischolar/scholar/internal/graph"
	"github.com/aischolar/scholar/internal/log"
)

// MaxGraphTextLength bounds texts submitted for graph indexing.
const MaxGraphTextLength = 1 << 20

// GraphHandler exposes the per-instance knowledge graph.
type GraphHandler struct {
	store  *graph.Store
	logger log.Logger
}

// RegisterRoutes registers graph routes on the given mux.
func (h *GraphHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/instances/{name}/graph/index", h.index)
	mux.HandleFunc("GET /api/v1/instances/{name}/graph/entities", h.entities)
	mux.HandleFunc("GET /api/v1/instances/{name}/graph/neighbors", h.neighbors)
	mux.HandleFunc("DELETE /api/v1/instances/{name}/graph", h.clear)
}

// IndexGraphRequest is the request body for graph indexing.
type IndexGraphRequest struct {
	Text string `json:"text"`
}

func (h *GraphHandler) index(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "graph store not configured")
		return
	}
	var req IndexGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "bad request", "text is required")
		return
	}
	if len(req.Text) > MaxGraphTextLength {
		writeError(w, http.StatusBadRequest, "bad request", "text too large")
		return
	}

	entities, relations, err := h.store.IndexText(r.Context(), r.PathValue("name"), req.Text)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities":  entities,
		"relations": relations,
	})
}

func (h *GraphHandler) entities(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "graph store not configured")
		return
	}
	limit := parseIntParam(r, "limit", 50, 1, 500)

	nodes, err := h.store.Entities(r.Context(), r.PathValue("name"), limit)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": nodes,
		"total":    len(nodes),
	})
}

// neighbors returns entities related to ?entity=, strongest first.
func (h *GraphHandler) neighbors(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "graph store not configured")
		return
	}
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		writeError(w, http.StatusBadRequest, "bad request", "query parameter entity is required")
		return
	}
	limit := parseIntParam(r, "limit", 20, 1, 200)

	neighbors, err := h.store.Neighbors(r.Context(), r.PathValue("name"), entity, limit)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity":    entity,
		"neighbors": neighbors,
	})
}

func (h *GraphHandler) clear(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "graph store not configured")
		return
	}
	if err := h.store.Clear(r.Context(), r.PathValue("name")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
