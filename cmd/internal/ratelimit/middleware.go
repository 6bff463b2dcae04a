package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

type errorBody struct {
	Error errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Middleware counts each request against key(r) and answers 429 once the budget is spent.
// Requests with an empty key, and requests during a backend outage, pass through.
func Middleware(l Limiter, key func(*http.Request) string, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(r.Context(), k)
			if err != nil {
				log.Warn("ratelimit.unavailable", "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				log.Info("ratelimit.reject", "path", r.URL.Path, "key", k)
				w.Header().Set("Retry-After", strconv.FormatInt(int64(d.RetryAfter.Seconds()), 10))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, errorBody{Error: errorInfo{Code: "rate_limited", Message: "too many attempts"}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
