package zotero

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Scholar-Signature"

// ReplayWindow bounds how far an event's timestamp may lie from the
// server clock. A captured signed payload is useless once its timestamp
// ages out.
const ReplayWindow = 5 * time.Minute

var (
	// ErrMissingSignature is returned when the signature header is absent.
	ErrMissingSignature = errors.New("missing webhook signature")

	// ErrInvalidSignature is returned when verification fails.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrReplayedEvent is returned when an event's timestamp falls
	// outside the replay window.
	ErrReplayedEvent = errors.New("webhook event outside replay window")
)

// WebhookEvent is the payload delivered on library changes.
type WebhookEvent struct {
	Event          string `json:"event"` // e.g. "library.update"
	UserID         string `json:"user_id"`
	LibraryVersion int    `json:"library_version"`
	Timestamp      int64  `json:"timestamp"` // unix seconds, set by the sender
}

// Fresh reports whether the event's timestamp lies within ReplayWindow
// of now. Events without a timestamp are rejected.
func (e WebhookEvent) Fresh(now time.Time) error {
	if e.Timestamp == 0 {
		return fmt.Errorf("%w: missing timestamp", ErrReplayedEvent)
	}
	drift := now.Sub(time.Unix(e.Timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > ReplayWindow {
		return fmt.Errorf("%w: event is %s from server time", ErrReplayedEvent, drift)
	}
	return nil
}

// VerifySignature checks the hex HMAC-SHA256 signature of body against
// the shared secret. Comparison is constant-time.
func VerifySignature(secret []byte, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	// Accept the common "sha256=" prefix convention.
	signature = strings.TrimPrefix(signature, "sha256=")

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: not valid hex", ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 signature for a payload. Used by
// tests and by senders.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent validates and decodes a webhook payload.
func ParseEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("parsing webhook payload: %w", err)
	}
	if event.Event == "" {
		return WebhookEvent{}, fmt.Errorf("webhook payload missing event type")
	}
	return event, nil
}
