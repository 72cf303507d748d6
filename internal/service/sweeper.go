package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/session_auth/internal/logging"
)

type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically deletes expired refresh sessions.
type Sweeper struct {
	Purger   Purger
	Interval time.Duration
}

// Run blocks until ctx is done. A non-positive interval disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	l := logging.FromContext(ctx).With("svc", "auth.sweeper")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purger.PurgeExpired(ctx)
			if err != nil {
				l.Error("purge_failed", "error", err)
				continue
			}
			if n > 0 {
				l.Info("purge_completed", "deleted", n)
			}
		}
	}
}
