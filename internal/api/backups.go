package api

import (
	"encoding/json"
	"net/http"

	"github.com/aischolar/scholar/internal/backup"
	"github.com/aischolar/scholar/internal/log"
)

// BackupHandler handles backup lifecycle endpoints.
type BackupHandler struct {
	service *backup.Service
	logger  log.Logger
}

// RegisterRoutes registers backup routes on the given mux.
func (h *BackupHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/instances/{name}/backups", h.create)
	mux.HandleFunc("GET /api/v1/instances/{name}/backups", h.list)
	mux.HandleFunc("POST /api/v1/instances/{name}/backups/{id}/restore", h.restore)
	mux.HandleFunc("POST /api/v1/backups/{id}/validate", h.validate)
	mux.HandleFunc("GET /api/v1/backups/{id}", h.get)
	mux.HandleFunc("DELETE /api/v1/backups/{id}", h.remove)
}

// CreateBackupRequest is the request body for creating a backup.
type CreateBackupRequest struct {
	Type backup.Type `json:"type"`
}

func (h *BackupHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "backup service not configured")
		return
	}

	req := CreateBackupRequest{Type: backup.TypeFull}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request", "invalid request body")
			return
		}
	}
	if !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "bad request", "unknown backup type")
		return
	}

	meta, err := h.service.Create(r.Context(), r.PathValue("name"), req.Type)
	if err != nil {
		serviceError(w, err)
		return
	}
	status := http.StatusCreated
	if meta.Status == backup.StatusFailed {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, meta)
}

func (h *BackupHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "backup service not configured")
		return
	}
	backups, err := h.service.List(r.PathValue("name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backups": backups,
		"total":   len(backups),
	})
}

func (h *BackupHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "backup service not configured")
		return
	}
	meta, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// restore replays backup {id} into instance {name}, creating the
// instance if needed.
func (h *BackupHandler) restore(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "backup service not configured")
		return
	}
	result, err := h.service.Restore(r.Context(), r.PathValue("id"), r.PathValue("name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BackupHandler) validate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "backup service not configured")
		return
	}
	id := r.PathValue("id")
	if err := h.service.Validate(id); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "valid": true})
}

func (h *BackupHandler) remove(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "backup service not configured")
		return
	}
	if err := h.service.Delete(r.PathValue("id")); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
