// Package token issues and verifies the signed identity tokens handed out at login.
//
// Tokens are HS256 JWTs carrying the principal id (sub), the role tag (role),
// issued-at, expiry, issuer and a random token id (jti). The codec holds only
// immutable key material, so a single Codec is safe for concurrent use.
//
// A token proves identity until its natural expiry. Whether the login behind it
// is still valid is decided by the session store, never by the token alone.
package token
