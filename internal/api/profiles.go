package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/profile"
)

// MaxInterestsListed bounds interest listings.
const MaxInterestsListed = 100

// ProfileHandler exposes per-user interest profiles.
type ProfileHandler struct {
	store  *profile.Store
	logger log.Logger
}

// RegisterRoutes registers profile routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/profile/{user}/interests", h.list)
	mux.HandleFunc("POST /api/v1/profile/{user}/interests", h.track)
	mux.HandleFunc("DELETE /api/v1/profile/{user}/interests/{id}", h.forget)
}

func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "profile store not configured")
		return
	}
	user := r.PathValue("user")
	limit := parseIntParam(r, "limit", 20, 1, MaxInterestsListed)

	interests, err := h.store.Interests(r.Context(), user, limit)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"interests": interests,
		"total":     len(interests),
	})
}

// TrackInterestRequest is the request body for recording an interest.
type TrackInterestRequest struct {
	Topic string `json:"topic"`
}

func (h *ProfileHandler) track(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "profile store not configured")
		return
	}
	var req TrackInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "bad request", "topic is required")
		return
	}
	if err := h.store.Track(r.Context(), r.PathValue("user"), req.Topic); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) forget(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "profile store not configured")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid interest id")
		return
	}
	if err := h.store.Forget(r.Context(), r.PathValue("user"), id); err != nil {
		writeError(w, http.StatusNotFound, "not found", "interest not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
