// Package app wires the coursehub server runtime: config, logging, stores, HTTP routes and the session sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"coursehub/cmd/identity"
	authapi "coursehub/cmd/internal/auth/api"
	"coursehub/cmd/internal/auth/session"
	"coursehub/cmd/internal/clock"
	"coursehub/cmd/internal/metrics"
	"coursehub/cmd/security/token"

	"golang.org/x/sync/errgroup"
)

// App is the coursehub server runtime. It owns the HTTP server, the background sweeper and backend connections.
type App struct {
	cfg     Config
	log     *slog.Logger
	clock   clock.Clock
	metrics *metrics.Registry

	backends *backends
	sessions *session.Service
	sweeper  *session.Sweeper
	handler  http.Handler
}

// New connects the configured backends and builds the router. A nil clock means the system clock.
func New(ctx context.Context, cfg Config, log *slog.Logger, clk clock.Clock) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	clk = clock.OrSystem(clk)

	codec, err := token.New(cfg.Token, clk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	b, err := openBackends(ctx, cfg, log, clk)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	opts := []session.Option{
		session.WithClock(clk),
		session.WithLogger(log),
		session.WithMetrics(m),
	}
	sessions := session.NewService(cfg.Session, b.sessions, codec, opts...)
	validator := session.NewValidator(cfg.Session, b.sessions, codec, opts...)
	accounts := identity.NewService(b.users, cfg.Password, clk, log)

	var hopts []authapi.HandlerOption
	if b.limiter != nil {
		hopts = append(hopts, authapi.WithLimiter(b.limiter))
	}
	auth, err := authapi.NewHandler(log, cfg.Auth, accounts, sessions, validator, hopts...)
	if err != nil {
		b.close(context.Background(), log)
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		clock:    clk,
		metrics:  m,
		backends: b,
		sessions: sessions,
		sweeper:  session.NewSweeper(sessions, log),
	}
	a.handler = a.routes(auth)
	return a, nil
}

// Handler is the fully wrapped router.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP and runs the sweeper until ctx is done or the server fails.
// Backends are closed before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "session_store", a.cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error { return a.sweeper.Run(gctx) })

	if ml := a.backends.memLimiter; ml != nil {
		g.Go(func() error {
			t := time.NewTicker(nonZeroDuration(a.cfg.RateLimit.Window, time.Minute))
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					if n := ml.Prune(); n > 0 {
						a.log.Debug("ratelimit.prune", "keys", n)
					}
				}
			}
		})
	}

	err := g.Wait()
	if err != nil {
		a.log.Error("server.fail", "err", err)
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

// Close releases backend connections. Safe to call more than once.
func (a *App) Close() {
	if a.backends == nil {
		return
	}
	a.backends.close(context.Background(), a.log)
	a.backends = nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
