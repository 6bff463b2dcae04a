package session

import (
	"log/slog"
	"time"

	"coursehub/cmd/internal/clock"
	"coursehub/cmd/security/token"
)

// TokenIssuer signs identity tokens. *token.Codec implements it.
type TokenIssuer interface {
	Issue(principalID, role string, lifetime time.Duration) (string, token.Claims, error)
}

// TokenVerifier verifies identity tokens. *token.Codec implements it.
type TokenVerifier interface {
	Verify(raw string) (token.Claims, error)
}

// Metrics receives session outcomes. The app wires a Prometheus implementation.
type Metrics interface {
	ObserveValidation(reason Reason)
	AddSwept(n int64)
	AddPurged(n int64)
}

type nopMetrics struct{}

func (nopMetrics) ObserveValidation(Reason) {}
func (nopMetrics) AddSwept(int64)           {}
func (nopMetrics) AddPurged(int64)          {}

type settings struct {
	clock   clock.Clock
	log     *slog.Logger
	metrics Metrics
}

// Option configures optional Validator, Service and Sweeper dependencies.
type Option func(*settings)

// WithClock overrides the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *settings) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *settings) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *settings) {
		if m != nil {
			o.metrics = m
		}
	}
}

func buildOptions(opts []Option) settings {
	o := settings{
		clock:   clock.System{},
		log:     slog.Default(),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	return o
}
