package authapi

import (
	"context"
	"net/http"
	"slices"

	"coursehub/cmd/internal/auth/session"
)

type ctxKey int

const (
	ctxResult ctxKey = iota
	ctxToken
)

// Validator is the per-request check behind RequireAuth. *session.Validator implements it.
type Validator interface {
	Validate(ctx context.Context, raw string) (session.Result, error)
}

// PrincipalFrom returns the authenticated principal stored by RequireAuth or OptionalAuth.
func PrincipalFrom(ctx context.Context) (session.Principal, bool) {
	res, ok := ctx.Value(ctxResult).(session.Result)
	if !ok || !res.Accepted() {
		return session.Principal{}, false
	}
	return res.Principal, true
}

func resultFrom(ctx context.Context) session.Result {
	res, _ := ctx.Value(ctxResult).(session.Result)
	return res
}

func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(ctxToken).(string)
	return tok
}

// RequireAuth rejects the request with 401 unless the bearer token validates.
// The error code is the rejection reason so clients can tell "signed out" from "timed out".
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		res, err := h.validator.Validate(r.Context(), raw)
		if err != nil {
			h.log.Error("auth.validate.fail", "err", err, "path", r.URL.Path)
			writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		if !res.Accepted() {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, res.Reason.Label(), res.Reason.Message())
			return
		}

		ctx := context.WithValue(r.Context(), ctxResult, res)
		ctx = context.WithValue(ctx, ctxToken, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth validates a bearer token when present and never rejects.
// Handlers see the outcome through PrincipalFrom.
func (h *Handler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		res, err := h.validator.Validate(r.Context(), raw)
		if err != nil {
			h.log.Error("auth.validate.fail", "err", err, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ctxResult, res)
		if res.Accepted() {
			ctx = context.WithValue(ctx, ctxToken, raw)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole answers 403 unless the authenticated principal holds one of roles.
// It must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, session.MissingToken.Label(), session.MissingToken.Message())
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeError(w, r, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
