package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs SweepStaleSessions (and PurgeExpired) on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper builds a Sweeper using the service's SweepInterval.
func NewSweeper(svc *Service, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{svc: svc, interval: svc.cfg.SweepInterval, log: log}
}

// Run sweeps once immediately, then on every tick until ctx is done.
// It always returns nil after cancellation; individual sweep failures are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("session.sweeper.start", "interval", s.interval.String())

	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session.sweeper.stop")
			return nil
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and purge pass.
func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()

	swept, err := s.svc.SweepStaleSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("session.sweep.fail", "err", err)
		}
		return
	}

	purged, err := s.svc.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("session.purge.fail", "err", err)
		}
		return
	}

	if swept > 0 || purged > 0 {
		s.log.Info("session.sweep.done",
			"deactivated", swept,
			"purged", purged,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
