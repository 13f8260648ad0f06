package api

import (
	"encoding/json"
	"net/http"

	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
)

// MaxDescriptionLength bounds instance descriptions.
const MaxDescriptionLength = 512

// InstanceHandler handles instance lifecycle endpoints.
type InstanceHandler struct {
	manager *instance.Manager
	logger  log.Logger
}

// RegisterRoutes registers instance routes on the given mux.
func (h *InstanceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/instances", h.create)
	mux.HandleFunc("GET /api/v1/instances", h.list)
	mux.HandleFunc("GET /api/v1/instances/audit", h.audit)
	mux.HandleFunc("GET /api/v1/instances/{name}", h.get)
	mux.HandleFunc("DELETE /api/v1/instances/{name}", h.remove)
}

// CreateInstanceRequest is the request body for creating an instance.
type CreateInstanceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *InstanceHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "instance manager not configured")
		return
	}

	var req CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid request body")
		return
	}
	if len(req.Description) > MaxDescriptionLength {
		writeError(w, http.StatusBadRequest, "bad request", "description too long")
		return
	}

	info, err := h.manager.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *InstanceHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "instance manager not configured")
		return
	}
	instances, err := h.manager.List(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instances": instances,
		"total":     len(instances),
	})
}

func (h *InstanceHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "instance manager not configured")
		return
	}
	info, err := h.manager.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *InstanceHandler) remove(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "instance manager not configured")
		return
	}
	if err := h.manager.Delete(r.Context(), r.PathValue("name")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InstanceHandler) audit(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "instance manager not configured")
		return
	}
	report, err := h.manager.ValidateSeparation(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clean":  report.Clean(),
		"report": report,
	})
}
