package authapi

import (
	"net"
	"net/http"
	"strings"

	"coursehub/cmd/identity"
	"coursehub/cmd/internal/auth/session"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func toIssuedSession(raw string, s session.Session) issuedSessionResponse {
	return issuedSessionResponse{
		ID:        s.ID,
		Token:     raw,
		Device:    s.DeviceSummary,
		ExpiresAt: s.AbsoluteExpiry,
	}
}

func toSessionView(v session.View, currentID string) sessionViewResponse {
	return sessionViewResponse{
		ID:            v.ID,
		Device:        v.DeviceSummary,
		ClientAddress: v.ClientAddress,
		UserAgent:     v.ClientAgent,
		CreatedAt:     v.CreatedAt,
		LastActivity:  v.LastActivity,
		ExpiresAt:     v.AbsoluteExpiry,
		Current:       v.ID == currentID,
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
