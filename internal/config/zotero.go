package config

import (
	"encoding/json"
	"fmt"
)

// ZoteroConfig holds Zotero Web API credentials and webhook settings.
type ZoteroConfig struct {
	// BaseURL is the Zotero API base (override for tests).
	BaseURL string `mapstructure:"base_url" json:"base_url"`

	// APIKey is the Zotero Web API key. SENSITIVE: masked in MarshalJSON.
	APIKey string `mapstructure:"api_key" json:"api_key"`

	// UserID is the numeric Zotero user (library) identifier.
	UserID string `mapstructure:"user_id" json:"user_id"`

	// WebhookSecret is the shared HMAC secret for webhook signature
	// verification. SENSITIVE: masked in MarshalJSON.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`

	// PageSize is the items-per-request page size (max 100 per Zotero API).
	PageSize int `mapstructure:"page_size" json:"page_size"`
}

// MarshalJSON masks sensitive Zotero fields.
func (z ZoteroConfig) MarshalJSON() ([]byte, error) {
	type alias ZoteroConfig
	a := alias(z)
	a.APIKey = maskSecret(a.APIKey)
	a.WebhookSecret = maskSecret(a.WebhookSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal zotero config: %w", err)
	}
	return data, nil
}
