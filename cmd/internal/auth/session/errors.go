package session

import "errors"

var (
	// ErrNotFound is returned when a session does not exist or is not visible to the caller.
	ErrNotFound = errors.New("session not found")

	// ErrDuplicateToken is returned by Store.Create when the token is already recorded.
	ErrDuplicateToken = errors.New("session token already recorded")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
