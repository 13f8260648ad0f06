package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. API Key validation (required for embedding generation)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Embedding configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "scholar_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// 4. PostgreSQL SSL mode validation
	// DO NOT mutate config in Validate() - just validate.
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable).
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 5. Backup retention validation
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("%w: retention_days must be >= 0, got %d", ErrInvalidRetention, c.Backup.RetentionDays)
	}
	if c.Backup.RetentionCount < 0 {
		return fmt.Errorf("%w: retention_count must be >= 0, got %d", ErrInvalidRetention, c.Backup.RetentionCount)
	}
	if c.Backup.IntervalHours < 0 {
		return fmt.Errorf("%w: interval_hours must be >= 0, got %d", ErrInvalidRetention, c.Backup.IntervalHours)
	}

	return nil
}

// ValidateServe validates the additional requirements of serve mode.
// Webhook verification needs a shared secret with at least 32 bytes of entropy;
// the API works without Zotero credentials (sync endpoints return an error).
func (c *Config) ValidateServe() error {
	if c == nil {
		return ErrConfigNil
	}

	// Webhook secret only required when a Zotero key is configured —
	// without sync there is nothing for a webhook to invalidate.
	if c.Zotero.APIKey != "" {
		if c.Zotero.WebhookSecret == "" {
			return fmt.Errorf("%w: set ZOTERO_WEBHOOK_SECRET", ErrMissingWebhookSecret)
		}
		if len(c.Zotero.WebhookSecret) < 32 {
			return fmt.Errorf("%w: must be at least 32 bytes, got %d",
				ErrInvalidWebhookSecret, len(c.Zotero.WebhookSecret))
		}
	}

	return nil
}
