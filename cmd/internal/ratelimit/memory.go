package ratelimit

import (
	"context"
	"sync"
	"time"

	"coursehub/cmd/internal/clock"
)

// MemoryLimiter is a per-key sliding window for single-instance deployments.
type MemoryLimiter struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	events map[string][]time.Time
}

// NewMemoryLimiter constructs a MemoryLimiter. A nil clock uses the system clock.
func NewMemoryLimiter(cfg Config, c clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, clock: clock.OrSystem(c), events: map[string][]time.Time{}}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.cfg.Window)
	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.cfg.Limit {
		l.events[key] = kept
		return Decision{Allowed: false, RetryAfter: roundUp(kept[0].Add(l.cfg.Window).Sub(now))}, nil
	}
	kept = append(kept, now)
	l.events[key] = kept
	return Decision{Allowed: true, Remaining: l.cfg.Limit - len(kept)}, nil
}

// Prune drops keys with no attempts inside the window.
func (l *MemoryLimiter) Prune() int {
	cut := l.clock.Now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, ts := range l.events {
		if len(ts) == 0 || !ts[len(ts)-1].After(cut) {
			delete(l.events, k)
			n++
		}
	}
	return n
}

var _ Limiter = (*MemoryLimiter)(nil)
