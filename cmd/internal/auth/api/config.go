package authapi

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config controls request parsing and client address resolution.
type Config struct {
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"AUTH_TRUST_PROXY" envDefault:"false"`

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `env:"AUTH_MAX_BODY_BYTES" envDefault:"65536"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{MaxBodyBytes: 64 << 10}
}

// LoadConfigFromEnv reads COURSEHUB_AUTH_* variables.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "COURSEHUB_"}); err != nil {
		return Config{}, fmt.Errorf("auth config: %w", err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return cfg, nil
}
