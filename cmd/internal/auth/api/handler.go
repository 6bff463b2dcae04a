package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"coursehub/cmd/identity"
	"coursehub/cmd/internal/auth/session"
	"coursehub/cmd/internal/ratelimit"

	"github.com/go-chi/chi/v5"
)

// Accounts is the identity surface the handler needs. *identity.Service implements it.
type Accounts interface {
	Register(ctx context.Context, in identity.RegisterInput) (identity.User, error)
	Authenticate(ctx context.Context, email, password string) (identity.User, error)
	Get(ctx context.Context, id string) (identity.User, error)
}

// Handler wires the auth and session endpoints to the identity and session services.
type Handler struct {
	log       *slog.Logger
	cfg       Config
	accounts  Accounts
	sessions  *session.Service
	validator Validator
	limiter   ratelimit.Limiter
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter throttles register and login per client address.
func WithLimiter(l ratelimit.Limiter) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts Accounts, sessions *session.Service, validator Validator, opts ...HandlerOption) (*Handler, error) {
	if accounts == nil || sessions == nil || validator == nil {
		return nil, errors.New("auth: accounts, sessions and validator are required")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		accounts:  accounts,
		sessions:  sessions,
		validator: validator,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Mount registers every route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		h.throttle(r, "register")
		r.Post("/auth/register", h.handleRegister)
	})
	r.Group(func(r chi.Router) {
		h.throttle(r, "login")
		r.Post("/auth/login", h.handleLogin)
	})

	r.With(h.OptionalAuth).Get("/auth/whoami", h.handleWhoami)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/sessions", h.handleListSessions)
		r.Delete("/auth/sessions/{id}", h.handleCloseSession)
		r.Post("/auth/sessions/close-others", h.handleCloseOthers)
		r.Get("/me", h.handleMe)

		r.With(RequireRole(string(identity.RoleAdmin))).Post("/admin/sessions/sweep", h.handleSweep)
	})
}

func (h *Handler) throttle(r chi.Router, route string) {
	if h.limiter != nil {
		r.Use(ratelimit.Middleware(h.limiter, h.rateKey(route), h.log))
	}
}

// rateKey scopes the attempt counter to one route and client address,
// so sign-ups do not spend the login budget.
func (h *Handler) rateKey(route string) func(*http.Request) string {
	return func(r *http.Request) string {
		ip := ipString(clientIP(r, h.cfg.TrustProxy))
		if ip == "" {
			return ""
		}
		return route + ":" + ip
	}
}

func (h *Handler) clientMeta(r *http.Request, device string) session.ClientMeta {
	return session.ClientMeta{
		Address:       ipString(clientIP(r, h.cfg.TrustProxy)),
		Agent:         r.UserAgent(),
		DeviceSummary: device,
	}
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	u, err := h.accounts.Register(ctx, identity.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	})
	switch {
	case identity.IsConflict(err):
		writeError(w, r, http.StatusConflict, "email_taken", "an account with this email already exists")
		return
	case identity.IsInvalidInput(err):
		writeError(w, r, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		return
	case err != nil:
		h.log.Error("auth.register.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	raw, sess, err := h.sessions.CreateSession(ctx, u.ID, string(u.Role), h.clientMeta(r, req.Device))
	if err != nil {
		h.log.Error("auth.register.session.fail", "err", err, "user_id", u.ID)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.register.ok", "user_id", u.ID, "role", string(u.Role), "session_id", sess.ID)
	writeJSON(w, r, http.StatusCreated, authResponse{
		User:    toUserResponse(u),
		Session: toIssuedSession(raw, sess),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	u, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		h.log.Info("auth.login.failed", "ip", ipString(clientIP(r, h.cfg.TrustProxy)))
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if err != nil {
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	raw, sess, err := h.sessions.CreateSession(ctx, u.ID, string(u.Role), h.clientMeta(r, req.Device))
	if err != nil {
		h.log.Error("auth.login.session.fail", "err", err, "user_id", u.ID)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login.ok", "user_id", u.ID, "session_id", sess.ID)
	writeJSON(w, r, http.StatusOK, authResponse{
		User:    toUserResponse(u),
		Session: toIssuedSession(raw, sess),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.LogoutCurrent(r.Context(), tokenFrom(r.Context())); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	h.log.Info("auth.logout.ok", "session_id", resultFrom(r.Context()).Session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	res := resultFrom(r.Context())
	views, err := h.sessions.ListActiveSessions(r.Context(), res.Principal.ID)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := sessionsResponse{Sessions: make([]sessionViewResponse, 0, len(views))}
	for _, v := range views {
		out.Sessions = append(out.Sessions, toSessionView(v, res.Session.ID))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	res := resultFrom(r.Context())
	id := chi.URLParam(r, "id")

	err := h.sessions.CloseSession(r.Context(), res.Principal.ID, id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		h.log.Error("auth.sessions.close.fail", "err", err, "session_id", id)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCloseOthers(w http.ResponseWriter, r *http.Request) {
	res := resultFrom(r.Context())
	n, err := h.sessions.CloseOtherSessions(r.Context(), res.Principal.ID, tokenFrom(r.Context()))
	if err != nil {
		h.log.Error("auth.sessions.close_others.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, r, http.StatusOK, closedResponse{Closed: n})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	res := resultFrom(r.Context())
	u, err := h.accounts.Get(r.Context(), res.Principal.ID)
	if identity.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, "not_found", "account not found")
		return
	}
	if err != nil {
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, r, http.StatusOK, meResponse{User: toUserResponse(u), SessionID: res.Session.ID})
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	res := resultFrom(r.Context())
	if p, ok := PrincipalFrom(r.Context()); ok {
		writeJSON(w, r, http.StatusOK, whoamiResponse{Authenticated: true, PrincipalID: p.ID, Role: p.Role})
		return
	}
	out := whoamiResponse{}
	if res.Reason != session.Accepted {
		out.Reason = res.Reason.Label()
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.SweepStaleSessions(r.Context())
	if err != nil {
		h.log.Error("auth.admin.sweep.fail", "err", err)
		writeError(w, r, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	p, _ := PrincipalFrom(r.Context())
	h.log.Info("auth.admin.sweep.ok", "admin_id", p.ID, "deactivated", n)
	writeJSON(w, r, http.StatusOK, sweepResponse{Deactivated: n})
}

// invalidMessage exposes the validation text of an identity.OpError, which never carries secrets.
func invalidMessage(err error) string {
	var op identity.OpError
	if errors.As(err, &op) && op.Msg != "" {
		return op.Msg
	}
	return "invalid request"
}
