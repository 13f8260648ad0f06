package api

import (
	"net/http"

	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/monitor"
)

// MonitorHandler handles health and performance endpoints.
type MonitorHandler struct {
	monitor *monitor.Monitor
	logger  log.Logger
}

// RegisterRoutes registers monitoring routes on the given mux.
func (h *MonitorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/instances/{name}/health", h.health)
	mux.HandleFunc("POST /api/v1/instances/{name}/optimize", h.optimize)
	mux.HandleFunc("GET /api/v1/monitor/health", h.healthAll)
	mux.HandleFunc("GET /api/v1/monitor/performance", h.performance)
}

func (h *MonitorHandler) health(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "monitor not configured")
		return
	}
	health, err := h.monitor.CheckHealth(r.Context(), r.PathValue("name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (h *MonitorHandler) healthAll(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "monitor not configured")
		return
	}
	reports, err := h.monitor.CheckAll(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instances": reports,
		"total":     len(reports),
	})
}

func (h *MonitorHandler) optimize(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "monitor not configured")
		return
	}
	result, err := h.monitor.Optimize(r.Context(), r.PathValue("name"))
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MonitorHandler) performance(w http.ResponseWriter, _ *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "monitor not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}
