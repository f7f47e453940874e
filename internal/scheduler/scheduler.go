// Package scheduler drives time-based lifecycle work. Nothing here
// carries state: every tick recomputes the due sets from the stores, so
// a missed or duplicated tick never corrupts a request. When Redis is
// configured, a lease elects one active scheduler across replicas;
// without it the instance schedules unconditionally.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"firegate/internal/lifecycle"
	"firegate/internal/platform/config"
	"firegate/internal/platform/redis"
	"firegate/internal/pool"
	"firegate/pkg/requestcontext"
)

// Scheduler ticks the lifecycle engine and the pool cool-down sweep.
type Scheduler struct {
	lifecycle *lifecycle.Service
	pool      *pool.Service
	lease     *Lease
	interval  time.Duration
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New constructs the scheduler. redisClient may be nil.
func New(lc *lifecycle.Service, pl *pool.Service, redisClient *redis.Client, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	var lease *Lease
	if redisClient != nil {
		lease = NewLease(redisClient, cfg.LeaseKey, cfg.LeaseDuration)
	}
	return &Scheduler{
		lifecycle: lc,
		pool:      pl,
		lease:     lease,
		interval:  cfg.TickInterval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ticks until the context is cancelled, then hands the lease back
// so a peer takes over without waiting for expiry.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.releaseLease()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// releaseLease runs after the run context is cancelled, so it gets a
// short deadline of its own.
func (s *Scheduler) releaseLease() {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.lease.Release(ctx)
}

// Tick runs one scheduling round with a consistent notion of now.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.lease != nil {
		held, err := s.lease.Acquire(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "scheduler lease check failed", "error", err)
			return
		}
		if !held {
			return
		}
	}

	tctx := requestcontext.WithTime(ctx, s.now())

	s.lifecycle.ActivateDue(tctx)
	s.lifecycle.ExpireDue(tctx)
	s.lifecycle.PullPendingLogs(tctx)
	if err := s.pool.SweepCooldown(tctx); err != nil {
		s.logger.ErrorContext(tctx, "cooldown sweep failed", "error", err)
	}
}
