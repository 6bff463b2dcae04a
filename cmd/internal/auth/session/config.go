package session

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "COURSEHUB_"

// Config holds the timing rules shared by Validator, Service and Sweeper.
//
// InactivityTimeout is the single source for staleness: the validator compares
// against it on read and the sweep derives its cutoff from it.
type Config struct {
	// Lifetime is the absolute session (and token) lifetime. Never extended.
	Lifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"168h"`

	// InactivityTimeout ends a session that has seen no request for this long.
	InactivityTimeout time.Duration `env:"SESSION_INACTIVITY_TIMEOUT" envDefault:"30m"`

	// ActivityUpdateInterval is the minimum gap between persisted activity writes.
	ActivityUpdateInterval time.Duration `env:"SESSION_ACTIVITY_INTERVAL" envDefault:"1m"`

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`

	// RetentionWindow is how long past its absolute expiry a record is kept before purge.
	// Zero disables purging from the sweeper.
	RetentionWindow time.Duration `env:"SESSION_RETENTION" envDefault:"720h"`

	// MinTokenLength rejects obviously truncated tokens before any decode work.
	MinTokenLength int `env:"SESSION_MIN_TOKEN_LENGTH" envDefault:"32"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Lifetime:               7 * 24 * time.Hour,
		InactivityTimeout:      30 * time.Minute,
		ActivityUpdateInterval: time.Minute,
		SweepInterval:          5 * time.Minute,
		RetentionWindow:        30 * 24 * time.Hour,
		MinTokenLength:         32,
	}
}

// LoadConfigFromEnv reads COURSEHUB_SESSION_* variables over the defaults.
// Returns an error wrapping ErrConfig if parsing or validation fails.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the ordering ActivityUpdateInterval < InactivityTimeout <= Lifetime.
func (c Config) Validate() error {
	switch {
	case c.Lifetime <= 0:
		return fmt.Errorf("%w: lifetime must be positive", ErrConfig)
	case c.InactivityTimeout <= 0:
		return fmt.Errorf("%w: inactivity timeout must be positive", ErrConfig)
	case c.ActivityUpdateInterval <= 0:
		return fmt.Errorf("%w: activity update interval must be positive", ErrConfig)
	case c.ActivityUpdateInterval >= c.InactivityTimeout:
		return fmt.Errorf("%w: activity update interval %s must be below inactivity timeout %s",
			ErrConfig, c.ActivityUpdateInterval, c.InactivityTimeout)
	case c.InactivityTimeout > c.Lifetime:
		return fmt.Errorf("%w: inactivity timeout %s exceeds lifetime %s", ErrConfig, c.InactivityTimeout, c.Lifetime)
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep interval must be positive", ErrConfig)
	case c.RetentionWindow < 0:
		return fmt.Errorf("%w: retention window must not be negative", ErrConfig)
	case c.MinTokenLength < 1:
		return fmt.Errorf("%w: minimum token length must be positive", ErrConfig)
	}
	return nil
}

// idleCutoff is the last activity time at or before which a session is stale at now.
func (c Config) idleCutoff(now time.Time) time.Time {
	return now.Add(-c.InactivityTimeout)
}

// isStale reports whether lastActivity is at least InactivityTimeout before now.
func (c Config) isStale(now, lastActivity time.Time) bool {
	return !lastActivity.After(c.idleCutoff(now))
}

// isExpired reports whether now has reached the absolute expiry.
func isExpired(now, absoluteExpiry time.Time) bool {
	return !now.Before(absoluteExpiry)
}
