// Package session implements coursehub's server-side login sessions.
//
// Every successful login produces a signed token and a Session record keyed by
// that exact token. The record, not the token, decides whether a login is
// still usable: it can be closed by its owner, closed from another device,
// expire at a fixed absolute deadline, or go stale after a period without
// requests.
//
// Validator runs once per protected request. Service holds the owner-facing
// operations (create, list, close, close others, logout) and the sweep.
// Sweeper runs the sweep on a ticker. Store has memory, Postgres and MongoDB
// implementations; all of them only ever move IsActive from true to false.
package session
