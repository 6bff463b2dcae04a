package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"coursehub/cmd/identity/ids"
	"coursehub/cmd/internal/clock"
)

// createAttempts bounds retries when a freshly issued token collides with a recorded one.
const createAttempts = 3

// Service implements the owner-facing session lifecycle and the stale sweep.
type Service struct {
	cfg     Config
	store   Store
	tokens  TokenIssuer
	clock   clock.Clock
	log     *slog.Logger
	metrics Metrics
}

// NewService constructs a Service.
func NewService(cfg Config, store Store, tokens TokenIssuer, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		cfg:     cfg,
		store:   store,
		tokens:  tokens,
		clock:   o.clock,
		log:     o.log,
		metrics: o.metrics,
	}
}

// Config returns the timing rules the service was built with.
func (s *Service) Config() Config { return s.cfg }

// CreateSession issues a token for an already authenticated principal and
// records the session. The token is returned only after the record is stored.
func (s *Service) CreateSession(ctx context.Context, principalID, role string, meta ClientMeta) (string, Session, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", Session{}, errors.New("session: empty principal id")
	}
	meta = meta.normalize()

	for attempt := 1; ; attempt++ {
		now := s.clock.Now()

		raw, claims, err := s.tokens.Issue(principalID, role, s.cfg.Lifetime)
		if err != nil {
			return "", Session{}, fmt.Errorf("session: issue token: %w", err)
		}
		// The record expires with the token, whose "exp" is cut to the second.
		expiry := claims.ExpiresAt
		if expiry.IsZero() {
			expiry = now.Add(s.cfg.Lifetime)
		}

		id, err := ids.NewULID(now)
		if err != nil {
			return "", Session{}, fmt.Errorf("session: new id: %w", err)
		}

		sess := Session{
			ID:             id,
			OwnerID:        principalID,
			Token:          raw,
			ClientAddress:  meta.Address,
			ClientAgent:    meta.Agent,
			DeviceSummary:  meta.DeviceSummary,
			CreatedAt:      now,
			LastActivity:   now,
			AbsoluteExpiry: expiry,
			IsActive:       true,
		}

		err = s.store.Create(ctx, sess)
		if errors.Is(err, ErrDuplicateToken) && attempt < createAttempts {
			s.log.Warn("session.create.duplicate_token", "owner_id", principalID, "attempt", attempt)
			continue
		}
		if err != nil {
			return "", Session{}, fmt.Errorf("session: create: %w", err)
		}

		s.log.Info("session.create.ok", "session_id", sess.ID, "owner_id", principalID, "device", sess.DeviceSummary)
		return raw, sess, nil
	}
}

// ListActiveSessions returns the principal's active sessions, most recent activity first.
// Tokens are never part of the result.
func (s *Service) ListActiveSessions(ctx context.Context, principalID string) ([]View, error) {
	rows, err := s.store.ListActive(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	out := make([]View, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.View())
	}
	return out, nil
}

// CloseSession deactivates one of the principal's sessions.
// A session that does not exist or belongs to someone else yields ErrNotFound.
// Closing an already inactive session of one's own succeeds.
func (s *Service) CloseSession(ctx context.Context, principalID, sessionID string) error {
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session: get: %w", err)
	}
	if sess.OwnerID != principalID {
		return ErrNotFound
	}
	if !sess.IsActive {
		return nil
	}

	if err := s.store.Deactivate(ctx, sess.ID, s.clock.Now(), ReasonClosed); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	s.log.Info("session.close.ok", "session_id", sess.ID, "owner_id", principalID)
	return nil
}

// CloseOtherSessions deactivates every active session of principalID except the
// one holding currentToken, and returns how many were closed.
func (s *Service) CloseOtherSessions(ctx context.Context, principalID, currentToken string) (int64, error) {
	n, err := s.store.DeactivateAllExcept(ctx, principalID, currentToken, s.clock.Now(), ReasonClosedOther)
	if err != nil {
		return 0, fmt.Errorf("session: close others: %w", err)
	}
	s.log.Info("session.close_others.ok", "owner_id", principalID, "closed", n)
	return n, nil
}

// LogoutCurrent deactivates the session holding currentToken.
// Unknown or already inactive sessions are not an error.
func (s *Service) LogoutCurrent(ctx context.Context, currentToken string) error {
	if err := s.store.DeactivateByToken(ctx, currentToken, s.clock.Now(), ReasonLogout); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

// SweepStaleSessions deactivates every active session past its absolute expiry
// or idle for at least the inactivity timeout. Safe to run concurrently with
// itself and with request traffic.
func (s *Service) SweepStaleSessions(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	n, err := s.store.DeactivateStale(ctx, now, s.cfg.idleCutoff(now))
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}
	s.metrics.AddSwept(n)
	return n, nil
}

// PurgeExpired deletes records whose absolute expiry is older than the retention window.
// A zero window is a no-op.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if s.cfg.RetentionWindow <= 0 {
		return 0, nil
	}
	before := s.clock.Now().Add(-s.cfg.RetentionWindow)
	n, err := s.store.Purge(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	s.metrics.AddPurged(n)
	return n, nil
}
