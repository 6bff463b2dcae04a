package app

import (
	"context"
	"net/http"

	authapi "coursehub/cmd/internal/auth/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (a *App) routes(auth *authapi.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(WithRequestLogging(a.log, a.metrics))
	r.Use(WithSecurityHeaders)
	if mw := corsMiddleware(a.cfg); mw != nil {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	auth.Mount(r)
	return r
}

// handleReady pings every configured backend. Memory-only deployments are always ready.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	out := readyResponse{Status: "ready", Checks: map[string]string{}}
	status := http.StatusOK

	for _, c := range a.backends.checks {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := c.ping(ctx)
		cancel()
		if err != nil {
			a.log.Warn("readyz.not_ready", "backend", c.name, "err", err)
			out.Checks[c.name] = "unavailable"
			out.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		out.Checks[c.name] = "ok"
	}

	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, status)
	render.JSON(w, r, out)
}
