package api

import (
	"net/http"

	"github.com/aischolar/scholar/internal/analytics"
	"github.com/aischolar/scholar/internal/log"
)

// Analytics window bounds.
const (
	DefaultUsageDays = 7
	DefaultTopDays   = 30
	MaxWindowDays    = 365
	MaxTopQueries    = 100
)

// AnalyticsHandler exposes query-log aggregates.
type AnalyticsHandler struct {
	service *analytics.Service
	logger  log.Logger
}

// RegisterRoutes registers analytics routes on the given mux.
func (h *AnalyticsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics/usage", h.usage)
	mux.HandleFunc("GET /api/v1/analytics/top-queries", h.topQueries)
}

// usage returns per-day query aggregates.
// Query parameters: instance (required), days (default 7).
func (h *AnalyticsHandler) usage(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "analytics not configured")
		return
	}
	instanceName := r.URL.Query().Get("instance")
	days := parseIntParam(r, "days", DefaultUsageDays, 1, MaxWindowDays)

	usage, err := h.service.Usage(r.Context(), instanceName, days)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instance": instanceName,
		"days":     days,
		"usage":    usage,
	})
}

// topQueries returns the most popular queries in the window.
// Query parameters: instance (required), limit (default 10), days (default 30).
func (h *AnalyticsHandler) topQueries(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "analytics not configured")
		return
	}
	instanceName := r.URL.Query().Get("instance")
	limit := parseIntParam(r, "limit", 10, 1, MaxTopQueries)
	days := parseIntParam(r, "days", DefaultTopDays, 1, MaxWindowDays)

	top, err := h.service.TopQueries(r.Context(), instanceName, limit, days)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instance": instanceName,
		"days":     days,
		"queries":  top,
	})
}
