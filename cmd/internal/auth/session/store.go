package session

import (
	"context"
	"time"
)

// DeactivationReason records why a session stopped being active.
type DeactivationReason string

const (
	// ReasonLogout is set when the owner logs out with the session's own token.
	ReasonLogout DeactivationReason = "logout"
	// ReasonClosed is set when the owner closes the session from the session list.
	ReasonClosed DeactivationReason = "closed"
	// ReasonClosedOther is set by "log out everywhere else".
	ReasonClosedOther DeactivationReason = "closed_other"
	// ReasonExpired is set once the absolute expiry has been reached.
	ReasonExpired DeactivationReason = "expired"
	// ReasonStale is set once the inactivity timeout has been reached.
	ReasonStale DeactivationReason = "stale"
)

// Session is one login.
//
// Token is the exact signed token issued at login and must never leave the
// server after the login response; use View for anything client-facing.
type Session struct {
	ID      string
	OwnerID string
	Token   string

	ClientAddress string
	ClientAgent   string
	DeviceSummary string

	CreatedAt      time.Time
	LastActivity   time.Time
	AbsoluteExpiry time.Time

	IsActive           bool
	DeactivatedAt      *time.Time
	DeactivationReason DeactivationReason
}

// View is the redacted, client-facing shape of a Session. It has no token.
type View struct {
	ID             string
	ClientAddress  string
	ClientAgent    string
	DeviceSummary  string
	CreatedAt      time.Time
	LastActivity   time.Time
	AbsoluteExpiry time.Time
}

// View returns the redacted form of s.
func (s Session) View() View {
	return View{
		ID:             s.ID,
		ClientAddress:  s.ClientAddress,
		ClientAgent:    s.ClientAgent,
		DeviceSummary:  s.DeviceSummary,
		CreatedAt:      s.CreatedAt,
		LastActivity:   s.LastActivity,
		AbsoluteExpiry: s.AbsoluteExpiry,
	}
}

// Store persists sessions. Implementations must be safe for concurrent use and
// must never set IsActive back to true; there is deliberately no method that could.
type Store interface {
	// Create inserts a new active session. A token clash returns ErrDuplicateToken.
	Create(ctx context.Context, s Session) error

	// FindActive loads the active session with exactly this token and owner, or ErrNotFound.
	FindActive(ctx context.Context, token, ownerID string) (Session, error)

	// Get loads a session by ID regardless of state, or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)

	// ListActive returns the owner's active sessions, most recent activity first.
	ListActive(ctx context.Context, ownerID string) ([]Session, error)

	// Touch raises LastActivity to at (never lowers it) if the session is still active.
	// It reports false when the session is missing or no longer active.
	Touch(ctx context.Context, id string, at time.Time) (bool, error)

	// Deactivate marks one session inactive. The first deactivation's time and reason are kept.
	Deactivate(ctx context.Context, id string, now time.Time, reason DeactivationReason) error

	// DeactivateByToken is Deactivate keyed by token. Unknown tokens are not an error.
	DeactivateByToken(ctx context.Context, token string, now time.Time, reason DeactivationReason) error

	// DeactivateAllExcept deactivates every active session of ownerID except the one with keepToken.
	DeactivateAllExcept(ctx context.Context, ownerID, keepToken string, now time.Time, reason DeactivationReason) (int64, error)

	// DeactivateStale deactivates active sessions with AbsoluteExpiry <= now (ReasonExpired)
	// or LastActivity <= idleCutoff (ReasonStale), returning how many changed.
	DeactivateStale(ctx context.Context, now, idleCutoff time.Time) (int64, error)

	// Purge physically deletes sessions whose AbsoluteExpiry is before the given time.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
