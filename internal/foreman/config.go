package foreman

import "time"

// ClientConfig tunes the controller transport. The user-facing settings
// (server, credentials, attribute overrides) live in the foreman section and
// are parsed by ParseSettings instead.
type ClientConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`             // per-request timeout (default 30s)
	RateLimit          float64       `mapstructure:"rate_limit"`          // requests per second, 0 = unlimited
	CACertPath         string        `mapstructure:"ca_cert_path"`        // PEM bundle for the controller's TLS cert
	ResolveConcurrency int           `mapstructure:"resolve_concurrency"` // parallel attribute lookups (default 1)
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            30 * time.Second,
		ResolveConcurrency: 1,
	}
}
