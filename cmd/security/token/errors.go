package token

import (
	"errors"
	"fmt"
)

// Public, stable errors for callers.
var (
	// ErrMalformedToken covers unparseable input, bad signatures, unexpected algorithms and wrong issuers.
	ErrMalformedToken = errors.New("malformed token")

	// ErrExpiredToken is returned once the embedded expiry (plus leeway) has passed.
	ErrExpiredToken = errors.New("expired token")

	// ErrMissingClaims is returned when a correctly signed token lacks the principal id or role.
	// It matches ErrMalformedToken under errors.Is.
	ErrMissingClaims = fmt.Errorf("%w: missing principal or role claim", ErrMalformedToken)

	// ErrSecretTooShort is returned by New for signing secrets below MinSecretBytes.
	ErrSecretTooShort = errors.New("token secret too short")

	// ErrLeewayTooShort is returned by New for a leeway below MinLeeway.
	ErrLeewayTooShort = errors.New("token leeway too short")
)
