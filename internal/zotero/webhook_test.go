package zotero

import (
	"errors"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	body := []byte(`{"event":"library.update","library_version":42}`)
	sig := Sign(secret, body)

	tests := []struct {
		name      string
		signature string
		wantErr   error
	}{
		{"valid", sig, nil},
		{"valid with prefix", "sha256=" + sig, nil},
		{"missing", "", ErrMissingSignature},
		{"not hex", "zzzz", ErrInvalidSignature},
		{"wrong signature", Sign(secret, []byte("other body")), ErrInvalidSignature},
		{"wrong secret", Sign([]byte("another-secret-value-entirely!!"), body), ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(secret, body, tt.signature)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("VerifySignature() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifySignature() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"event":"library.update","user_id":"123","library_version":42}`))
	if err != nil {
		t.Fatalf("ParseEvent() error: %v", err)
	}
	if event.Event != "library.update" || event.LibraryVersion != 42 {
		t.Errorf("event = %+v", event)
	}

	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseEvent([]byte(`{}`)); err == nil {
		t.Error("expected error for missing event type")
	}
}

func TestWebhookEventFresh(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		stamp   time.Time
		wantErr bool
	}{
		{"current", now, false},
		{"just inside window", now.Add(-ReplayWindow + time.Second), false},
		{"slightly ahead of server clock", now.Add(time.Minute), false},
		{"aged out", now.Add(-ReplayWindow - time.Second), true},
		{"far future", now.Add(ReplayWindow + time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := WebhookEvent{Event: "library.update", Timestamp: tt.stamp.Unix()}
			err := event.Fresh(now)
			if tt.wantErr {
				if !errors.Is(err, ErrReplayedEvent) {
					t.Errorf("Fresh() error = %v, want ErrReplayedEvent", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Fresh() error = %v, want nil", err)
			}
		})
	}

	t.Run("missing timestamp", func(t *testing.T) {
		event := WebhookEvent{Event: "library.update"}
		if err := event.Fresh(now); !errors.Is(err, ErrReplayedEvent) {
			t.Errorf("Fresh() error = %v, want ErrReplayedEvent", err)
		}
	})
}

func TestWebhookLimiter(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l := NewWebhookLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < webhookMaxPerKey; i++ {
		if !l.Allow("sender-a") {
			t.Fatalf("request %d denied inside budget", i)
		}
	}
	if l.Allow("sender-a") {
		t.Error("request over budget allowed")
	}

	// Other keys have their own budget.
	if !l.Allow("sender-b") {
		t.Error("independent key denied")
	}

	// The window slides: after it passes, the key has budget again.
	now = now.Add(webhookWindow + time.Second)
	if !l.Allow("sender-a") {
		t.Error("request denied after window passed")
	}
}
