package authapi

import "time"

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Device      string `json:"device"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type issuedSessionResponse struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Device    string    `json:"device"`
	ExpiresAt time.Time `json:"expires_at"`
}

type authResponse struct {
	User    userResponse          `json:"user"`
	Session issuedSessionResponse `json:"session"`
}

type sessionViewResponse struct {
	ID            string    `json:"id"`
	Device        string    `json:"device"`
	ClientAddress string    `json:"client_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	ExpiresAt     time.Time `json:"expires_at"`
	Current       bool      `json:"current"`
}

type sessionsResponse struct {
	Sessions []sessionViewResponse `json:"sessions"`
}

type closedResponse struct {
	Closed int64 `json:"closed"`
}

type sweepResponse struct {
	Deactivated int64 `json:"deactivated"`
}

type meResponse struct {
	User      userResponse `json:"user"`
	SessionID string       `json:"session_id"`
}

type whoamiResponse struct {
	Authenticated bool   `json:"authenticated"`
	PrincipalID   string `json:"principal_id,omitempty"`
	Role          string `json:"role,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
