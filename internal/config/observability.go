package config

// TracingConfig holds OTLP trace exporter settings.
// Traces are sent to a local collector/agent over OTLP HTTP; the agent
// handles authentication and forwarding, so no API key lives in the app.
type TracingConfig struct {
	// Enabled toggles tracing. Default: false.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Endpoint is the OTLP HTTP endpoint (host:port, default localhost:4318).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string `mapstructure:"environment" json:"environment"`

	// ServiceName is the service name shown in the APM backend.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
