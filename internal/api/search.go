package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/aischolar/scholar/internal/analytics"
	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/monitor"
	"github.com/aischolar/scholar/internal/profile"
	"github.com/aischolar/scholar/internal/vectorstore"
)

// Search parameter bounds.
const (
	DefaultTopK    = 5
	MaxTopK        = 50
	MaxQueryLength = 1024
)

// SearchHandler handles semantic search with optional personalization.
// analytics, profiles and monitor are optional; search works without
// them, it just is not recorded or re-ranked.
type SearchHandler struct {
	store     *vectorstore.Store
	analytics *analytics.Service
	profiles  *profile.Store
	monitor   *monitor.Monitor
	logger    log.Logger
}

// RegisterRoutes registers search routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/instances/{name}/search", h.search)
}

// search runs a semantic query against one instance.
// Query parameters:
//   - q: the query text (required)
//   - top_k: result count (default 5, max 50)
//   - user: user id; enables interest tracking and personalized ranking
//   - filter: metadata filter as "key:value", repeatable (AND logic)
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "vector store not configured")
		return
	}

	name := r.PathValue("name")
	if err := instance.ValidateName(name); err != nil {
		serviceError(w, err)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad request", "query parameter q is required")
		return
	}
	if len(query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "bad request", "query too long")
		return
	}
	topK := parseIntParam(r, "top_k", DefaultTopK, 1, MaxTopK)
	user := r.URL.Query().Get("user")

	opts := []vectorstore.SearchOption{vectorstore.WithTopK(topK)}
	for _, f := range r.URL.Query()["filter"] {
		key, value, ok := strings.Cut(f, ":")
		if !ok || key == "" {
			writeError(w, http.StatusBadRequest, "bad request", "filter must be key:value")
			return
		}
		opts = append(opts, vectorstore.WithFilter(key, value))
	}

	start := time.Now()
	results, err := h.store.Query(r.Context(), instance.CollectionName(name), query, opts...)
	latency := time.Since(start)

	if h.monitor != nil {
		h.monitor.RecordQuery(latency, err != nil)
	}
	if err != nil {
		serviceError(w, err)
		return
	}

	// Recording and personalization are best-effort; a broken profile
	// store must not fail the search.
	if h.analytics != nil {
		if recErr := h.analytics.Record(r.Context(), analytics.Entry{
			InstanceName: name,
			UserID:       user,
			Query:        query,
			Latency:      latency,
			ResultCount:  len(results),
		}); recErr != nil {
			h.logger.Warn("query log record failed", "error", recErr)
		}
	}

	resp := map[string]any{
		"query":      query,
		"latency_ms": latency.Milliseconds(),
		"total":      len(results),
	}
	if user != "" && h.profiles != nil {
		if trackErr := h.profiles.Track(r.Context(), user, query); trackErr != nil {
			h.logger.Warn("interest tracking failed", "user", user, "error", trackErr)
		}
		interests, intErr := h.profiles.Interests(r.Context(), user, 20)
		if intErr != nil {
			h.logger.Warn("interest lookup failed", "user", user, "error", intErr)
		}
		resp["results"] = profile.Rerank(results, interests)
		resp["personalized"] = true
	} else {
		resp["results"] = results
		resp["personalized"] = false
	}

	writeJSON(w, http.StatusOK, resp)
}
