package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coursehub/cmd/internal/clock"
	"coursehub/cmd/security/token"
)

// Reason is the outcome of validating a presented token. The zero value means accepted.
type Reason string

const (
	Accepted         Reason = ""
	MissingToken     Reason = "missing_token"
	MalformedToken   Reason = "malformed_token"
	ExpiredToken     Reason = "expired_token"
	NoSession        Reason = "no_session"
	SessionExpired   Reason = "session_expired"
	SessionInactive  Reason = "session_inactive"
	SessionStaleness Reason = "session_stale"
)

// Reasons lists every rejection reason, in pipeline order.
var Reasons = []Reason{
	MissingToken, MalformedToken, ExpiredToken, NoSession,
	SessionExpired, SessionInactive, SessionStaleness,
}

// Message is a user-safe explanation. Every rejection asks the client to sign in again.
func (r Reason) Message() string {
	switch r {
	case Accepted:
		return "ok"
	case MissingToken:
		return "sign in required"
	case MalformedToken:
		return "invalid credentials, please sign in again"
	case ExpiredToken, SessionExpired:
		return "your session has expired, please sign in again"
	case NoSession:
		return "you have been signed out, please sign in again"
	case SessionInactive:
		return "this session was closed, please sign in again"
	case SessionStaleness:
		return "signed out after inactivity, please sign in again"
	default:
		return "please sign in again"
	}
}

// Label is the metrics label for r.
func (r Reason) Label() string {
	if r == Accepted {
		return "accepted"
	}
	return string(r)
}

// Principal is the authenticated identity taken from verified token claims.
type Principal struct {
	ID   string
	Role string
}

// Result is the validator's decision. Session and Principal are set only when accepted.
type Result struct {
	Reason    Reason
	Principal Principal
	Session   Session
}

// Accepted reports whether the request may proceed.
func (r Result) Accepted() bool { return r.Reason == Accepted }

func rejected(reason Reason) Result { return Result{Reason: reason} }

// Validator is the per-request token and session check.
type Validator struct {
	cfg     Config
	store   Store
	tokens  TokenVerifier
	clock   clock.Clock
	log     *slog.Logger
	metrics Metrics
}

// NewValidator builds a Validator over store and tokens.
func NewValidator(cfg Config, store Store, tokens TokenVerifier, opts ...Option) *Validator {
	o := buildOptions(opts)
	return &Validator{
		cfg:     cfg,
		store:   store,
		tokens:  tokens,
		clock:   o.clock,
		log:     o.log,
		metrics: o.metrics,
	}
}

// Validate decides whether raw grants access.
//
// Every authentication failure is reported through Result.Reason. The error is
// non-nil only when the store itself failed; callers treat that as a server error.
func (v *Validator) Validate(ctx context.Context, raw string) (Result, error) {
	res, err := v.validate(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	v.metrics.ObserveValidation(res.Reason)
	return res, nil
}

func (v *Validator) validate(ctx context.Context, raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return rejected(MissingToken), nil
	}
	if len(raw) < v.cfg.MinTokenLength {
		return rejected(MalformedToken), nil
	}

	claims, err := v.tokens.Verify(raw)
	switch {
	case errors.Is(err, token.ErrExpiredToken):
		return rejected(ExpiredToken), nil
	case err != nil:
		return rejected(MalformedToken), nil
	}
	if claims.PrincipalID == "" || claims.Role == "" {
		return rejected(MalformedToken), nil
	}

	s, err := v.store.FindActive(ctx, raw, claims.PrincipalID)
	if errors.Is(err, ErrNotFound) {
		return rejected(NoSession), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("session: find: %w", err)
	}

	now := v.clock.Now()

	if isExpired(now, s.AbsoluteExpiry) {
		if err := v.store.Deactivate(ctx, s.ID, now, ReasonExpired); err != nil {
			return Result{}, fmt.Errorf("session: deactivate expired: %w", err)
		}
		v.log.Info("session.expired", "session_id", s.ID, "owner_id", s.OwnerID)
		return rejected(SessionExpired), nil
	}

	if v.cfg.isStale(now, s.LastActivity) {
		if err := v.store.Deactivate(ctx, s.ID, now, ReasonStale); err != nil {
			return Result{}, fmt.Errorf("session: deactivate stale: %w", err)
		}
		v.log.Info("session.stale", "session_id", s.ID, "owner_id", s.OwnerID)
		return rejected(SessionStaleness), nil
	}

	if now.Sub(s.LastActivity) > v.cfg.ActivityUpdateInterval {
		ok, err := v.store.Touch(ctx, s.ID, now)
		if err != nil {
			return Result{}, fmt.Errorf("session: touch: %w", err)
		}
		if !ok {
			// Closed between the lookup and the write (logout, close, or sweep).
			return rejected(SessionInactive), nil
		}
		s.LastActivity = now
	}

	return Result{
		Reason:    Accepted,
		Principal: Principal{ID: claims.PrincipalID, Role: claims.Role},
		Session:   s,
	}, nil
}
