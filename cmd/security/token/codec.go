package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"coursehub/cmd/internal/clock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretBytes is the smallest HS256 secret accepted by New.
const MinSecretBytes = 32

// MinLeeway is the smallest leeway accepted by New. The "exp" claim has whole-second
// precision, so a token must stay verifiable through the second it expires in.
const MinLeeway = time.Second

// Config configures a Codec. Field tags are read by the app config loader.
type Config struct {
	// Secret is the raw HMAC key. Measured in bytes, not runes.
	Secret string `env:"TOKEN_SECRET"`
	// Issuer is written to and required in the "iss" claim.
	Issuer string `env:"TOKEN_ISSUER" envDefault:"coursehub"`
	// Leeway is the clock skew tolerated on exp/iat checks.
	Leeway time.Duration `env:"TOKEN_LEEWAY" envDefault:"30s"`
}

// Claims is the verified identity carried by a token.
type Claims struct {
	PrincipalID string
	Role        string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type jwtClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Codec issues and verifies identity tokens.
type Codec struct {
	secret []byte
	issuer string
	leeway time.Duration
	clock  clock.Clock
}

// New builds a Codec. A nil clock means the system clock.
func New(cfg Config, c clock.Clock) (*Codec, error) {
	secret := []byte(strings.TrimSpace(cfg.Secret))
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecretTooShort, MinSecretBytes)
	}
	if cfg.Leeway < MinLeeway {
		return nil, fmt.Errorf("%w: got %s, need at least %s", ErrLeewayTooShort, cfg.Leeway, MinLeeway)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "coursehub"
	}
	return &Codec{
		secret: secret,
		issuer: issuer,
		leeway: cfg.Leeway,
		clock:  clock.OrSystem(c),
	}, nil
}

// Issue signs a token for principalID with the given role, valid for lifetime.
// The returned ExpiresAt is the signed "exp", truncated to the second.
func (c *Codec) Issue(principalID, role string, lifetime time.Duration) (string, Claims, error) {
	principalID = strings.TrimSpace(principalID)
	role = strings.TrimSpace(role)
	if principalID == "" || role == "" {
		return "", Claims{}, ErrMissingClaims
	}
	if lifetime <= 0 {
		return "", Claims{}, fmt.Errorf("token: non-positive lifetime %s", lifetime)
	}

	now := c.clock.Now()
	claims := jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principalID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, toClaims(claims), nil
}

// Verify checks signature, issuer and expiry, then requires both identity claims.
func (c *Codec) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrMalformedToken
	}

	var claims jwtClaims
	_, err := jwt.ParseWithClaims(raw, &claims, c.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		// Signature is checked before claims, so an expired report implies a genuine token.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Role) == "" {
		return Claims{}, ErrMissingClaims
	}
	return toClaims(claims), nil
}

func (c *Codec) key(_ *jwt.Token) (any, error) {
	return c.secret, nil
}

func toClaims(jc jwtClaims) Claims {
	out := Claims{
		PrincipalID: jc.Subject,
		Role:        jc.Role,
		TokenID:     jc.ID,
	}
	if jc.IssuedAt != nil {
		out.IssuedAt = jc.IssuedAt.Time.UTC()
	}
	if jc.ExpiresAt != nil {
		out.ExpiresAt = jc.ExpiresAt.Time.UTC()
	}
	return out
}
