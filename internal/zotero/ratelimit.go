package zotero

import (
	"sync"
	"time"
)

// Webhook delivery limits. A misbehaving sender hammering the endpoint
// must not translate into a full resync per request.
const (
	webhookWindow     = time.Minute
	webhookMaxPerKey  = 10
	webhookMaxTracked = 1000
)

// WebhookLimiter is a sliding-window rate limiter keyed by sender.
type WebhookLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
	now     func() time.Time
}

// NewWebhookLimiter creates a limiter with the default window and
// per-key budget.
func NewWebhookLimiter() *WebhookLimiter {
	return &WebhookLimiter{
		window:  webhookWindow,
		max:     webhookMaxPerKey,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records one delivery for key and reports whether it is within
// budget. Old timestamps fall out of the window lazily.
func (l *WebhookLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.max {
		l.entries[key] = recent
		return false
	}

	l.entries[key] = append(recent, now)

	// Bound the key map itself; drop everything when a flood of unique
	// keys would otherwise grow it without limit.
	if len(l.entries) > webhookMaxTracked {
		l.entries = map[string][]time.Time{key: l.entries[key]}
	}
	return true
}
