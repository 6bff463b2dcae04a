// Package ratelimit throttles credential endpoints per client key.
//
// Counting is a fixed window in Redis (INCR, EXPIRE on first hit) when a
// client is configured and an in-process sliding window otherwise.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures. Middleware lets requests through when it sees one.
var ErrUnavailable = errors.New("ratelimit: backend unavailable")

// Config bounds attempts per key per window.
type Config struct {
	Limit  int           `env:"RATE_LIMIT_ATTEMPTS" envDefault:"10"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Enabled reports whether limiting is switched on.
func (c Config) Enabled() bool { return c.Limit > 0 && c.Window > 0 }

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts one attempt against key and decides whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(limit int, count int64, ttl time.Duration) Decision {
	if count > int64(limit) {
		return Decision{Allowed: false, RetryAfter: ttl}
	}
	return Decision{Allowed: true, Remaining: limit - int(count)}
}
