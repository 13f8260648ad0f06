package api

import (
	"io"
	"net/http"
	"time"

	"github.com/aischolar/scholar/internal/instance"
	"github.com/aischolar/scholar/internal/log"
	"github.com/aischolar/scholar/internal/zotero"
)

// MaxWebhookBody bounds webhook payloads; Zotero events are tiny.
const MaxWebhookBody = 64 * 1024

// ZoteroHandler handles library sync and webhook deliveries.
type ZoteroHandler struct {
	syncer  *zotero.Syncer
	secret  []byte
	limiter *zotero.WebhookLimiter
	logger  log.Logger
}

// RegisterRoutes registers Zotero routes on the given mux.
func (h *ZoteroHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/instances/{name}/zotero/sync", h.sync)
	mux.HandleFunc("POST /webhooks/zotero", h.webhook)
}

// sync triggers a library sync into the named instance. ?full=true
// forces a complete resync.
func (h *ZoteroHandler) sync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "zotero sync not configured")
		return
	}
	full := r.URL.Query().Get("full") == "true"
	result, err := h.syncer.Sync(r.Context(), r.PathValue("name"), full)
	if err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// webhook handles library-change deliveries. The target instance comes
// from the ?instance query parameter configured in the webhook URL.
// Signature verification happens before anything else touches the body.
func (h *ZoteroHandler) webhook(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil || len(h.secret) == 0 {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "zotero webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "reading body")
		return
	}
	if err := zotero.VerifySignature(h.secret, body, r.Header.Get(zotero.SignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		serviceError(w, err)
		return
	}

	event, err := zotero.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "invalid event payload")
		return
	}
	if err := event.Fresh(time.Now()); err != nil {
		h.logger.Warn("webhook event rejected as stale", "error", err)
		serviceError(w, err)
		return
	}
	if !h.limiter.Allow(event.UserID) {
		writeError(w, http.StatusTooManyRequests, "rate limited", "too many webhook deliveries")
		return
	}

	instanceName := r.URL.Query().Get("instance")
	if err := instance.ValidateName(instanceName); err != nil {
		serviceError(w, err)
		return
	}

	result, err := h.syncer.Sync(r.Context(), instanceName, false)
	if err != nil {
		h.logger.Error("webhook-triggered sync failed",
			"instance", instanceName, "error", err)
		serviceError(w, err)
		return
	}

	h.logger.Info("webhook sync completed",
		"instance", instanceName,
		"event", event.Event,
		"library_version", event.LibraryVersion,
		"synced", result.ItemsSynced)
	writeJSON(w, http.StatusOK, result)
}
