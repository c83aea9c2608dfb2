// Package worker runs the hub's periodic background jobs.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/brand-partner-hub/internal/infra/observability"
)

var tracer = otel.Tracer("worker")

// ExpiredSessionDeleter removes sessions whose expiry is before now.
type ExpiredSessionDeleter interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionSweeper deletes expired sessions on a cron schedule.
type SessionSweeper struct {
	sessions ExpiredSessionDeleter
	metrics  *observability.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewSessionSweeper creates a sweeper over sessions.
func NewSessionSweeper(sessions ExpiredSessionDeleter, metrics *observability.Metrics, logger *zap.Logger) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
}

// Sweep runs one pass and returns how many sessions were removed.
func (s *SessionSweeper) Sweep(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "SessionSweeper.Sweep")
	defer span.End()

	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	s.metrics.AddSessionsSwept(n)
	return n, nil
}

func (s *SessionSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("session sweep completed",
		zap.Int64("deleted", n),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Schedule registers the sweeper on a new cron scheduler. The caller starts
// and stops the returned scheduler.
func (s *SessionSweeper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule session sweep %q: %w", spec, err)
	}
	return c, nil
}
