package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"coursehub/cmd/identity/ids"
	"coursehub/cmd/internal/clock"
	"coursehub/cmd/security/password"
)

// RegisterInput describes a sign-up request.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// Service registers and authenticates users.
type Service struct {
	store Store
	pw    password.Config
	clock clock.Clock
	log   *slog.Logger

	dummyOnce sync.Once
	dummy     string
}

// NewService constructs a Service. A nil clock or logger falls back to the defaults.
func NewService(store Store, pw password.Config, c clock.Clock, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, pw: pw, clock: clock.OrSystem(c), log: log}
}

// Register creates an account. Only student and instructor may be self-assigned.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	email := strings.TrimSpace(in.Email)
	if !validEmail(email) {
		return User{}, invalid(op, "a valid email is required")
	}
	role, ok := ParseRole(in.Role)
	if !ok || !role.SelfAssignable() {
		return User{}, invalid(op, "role must be student or instructor")
	}

	hash, err := s.pw.Hash(in.Password)
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return User{}, invalid(op, fmt.Sprintf("password must be at least %d characters", s.pw.Policy.MinLength))
	case errors.Is(err, password.ErrPasswordTooLong):
		return User{}, invalid(op, fmt.Sprintf("password must be at most %d characters", s.pw.Policy.MaxLength))
	case errors.Is(err, password.ErrWeakPassword):
		return User{}, invalid(op, "password is too easy to guess")
	case err != nil:
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	u := User{
		ID:           id,
		Email:        email,
		EmailNorm:    NormalizeEmail(email),
		DisplayName:  cleanDisplayName(in.DisplayName),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}

	s.log.Info("identity.register.ok", "user_id", u.ID, "role", string(u.Role))
	return u, nil
}

// Authenticate checks an email/password pair and returns the account.
// Unknown email and wrong password both yield ErrInvalidCredentials after comparable work.
func (s *Service) Authenticate(ctx context.Context, email, pw string) (User, error) {
	const op = "identity.Authenticate"

	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		_, _ = s.pw.Verify(s.dummyHash(), pw)
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.pw.Verify(u.PasswordHash, pw)
	if err != nil {
		s.log.Error("identity.verify.fail", "user_id", u.ID, "err", err)
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	if s.pw.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, pw)
	}
	return u, nil
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) rehash(ctx context.Context, u User, pw string) {
	// Policy is skipped: the password already proved itself under the old rules.
	next, err := s.pw.HashUnchecked(pw)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, u.ID, next)
	}
	if err != nil {
		s.log.Warn("identity.rehash.fail", "user_id", u.ID, "err", err)
		return
	}
	s.log.Info("identity.rehash.ok", "user_id", u.ID)
}

func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.pw.DummyHash()
		if err != nil {
			s.log.Error("identity.dummy_hash.fail", "err", err)
			return
		}
		s.dummy = h
	})
	return s.dummy
}
