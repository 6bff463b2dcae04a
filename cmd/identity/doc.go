// Package identity owns marketplace accounts: registration, credential checks and roles.
//
// It authenticates principals; issuing and tracking sessions for them is the
// job of cmd/internal/auth/session.
package identity
