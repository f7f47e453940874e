package pool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"firegate/internal/domain"
	dErrors "firegate/pkg/domain-errors"
	"firegate/pkg/platform/sentinel"
	"firegate/pkg/requestcontext"
)

// CapacityListener is told which target systems regained capacity after
// a release or cool-down sweep. The lifecycle service registers itself
// here to retry requests parked on pool exhaustion.
type CapacityListener interface {
	OnCapacityReleased(ctx context.Context, targetSystem string)
}

// Service applies pool policy on top of the store: cool-down duration
// and capacity-release notification.
type Service struct {
	store    Store
	cooldown time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	listener CapacityListener
}

// NewService constructs the pool service.
func NewService(store Store, cooldown time.Duration, logger *slog.Logger, metrics *Metrics) *Service {
	return &Service{store: store, cooldown: cooldown, logger: logger, metrics: metrics}
}

// SetCapacityListener registers the retry hook. Set once at wiring time,
// before any traffic.
func (s *Service) SetCapacityListener(l CapacityListener) { s.listener = l }

// Seed registers credentials, skipping ones already present so restarts
// can re-run the same seed list.
func (s *Service) Seed(ctx context.Context, entries []*Entry) error {
	for _, e := range entries {
		if err := s.store.Add(ctx, e); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return nil
}

// Reserve claims a credential for the holder request.
func (s *Service) Reserve(ctx context.Context, targetSystem string, tier domain.Tier, window domain.Window, holder string) (*Entry, error) {
	e, err := s.store.Reserve(ctx, targetSystem, tier, window, holder)
	if errors.Is(err, sentinel.ErrNoCapacity) {
		return nil, dErrors.Newf(dErrors.CodeNoCapacity, "no free firefighter id for %s at tier %s", targetSystem, tier)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveReserve(targetSystem)
	s.logger.InfoContext(ctx, "pool entry reserved",
		"firefighter_id", e.FirefighterID,
		"target_system", targetSystem,
		"held_by", holder,
	)
	return e, nil
}

// Activate flips a reservation live. Idempotent for scheduler retries.
func (s *Service) Activate(ctx context.Context, firefighterID, holder string) error {
	return s.store.Activate(ctx, firefighterID, holder)
}

// Deactivate ends the lease and starts the mandatory cool-down.
func (s *Service) Deactivate(ctx context.Context, firefighterID, holder string) error {
	until := requestcontext.Now(ctx).Add(s.cooldown)
	if err := s.store.Deactivate(ctx, firefighterID, holder, until); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "pool entry cooling down",
		"firefighter_id", firefighterID,
		"cooldown_until", until,
	)
	return nil
}

// Release returns a never-activated reservation straight to Free and
// signals the freed capacity.
func (s *Service) Release(ctx context.Context, firefighterID, holder string) error {
	if err := s.store.Release(ctx, firefighterID, holder); err != nil {
		return err
	}
	e, err := s.store.Get(ctx, firefighterID)
	if err != nil {
		return err
	}
	s.notifyCapacity(ctx, e.TargetSystem)
	return nil
}

// SweepCooldown frees cooled-down entries and signals their systems.
// The scheduler calls this every tick.
func (s *Service) SweepCooldown(ctx context.Context) error {
	freed, err := s.store.SweepCooldown(ctx, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, e := range freed {
		s.logger.InfoContext(ctx, "pool entry cooled down", "firefighter_id", e.FirefighterID)
		if !seen[e.TargetSystem] {
			seen[e.TargetSystem] = true
			s.notifyCapacity(ctx, e.TargetSystem)
		}
	}
	return nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, firefighterID string) (*Entry, error) {
	e, err := s.store.Get(ctx, firefighterID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "firefighter id %q not found", firefighterID)
	}
	return e, err
}

// List returns all entries for the query API.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveOccupancy(entries)
	return entries, nil
}

func (s *Service) notifyCapacity(ctx context.Context, targetSystem string) {
	if s.listener != nil {
		s.listener.OnCapacityReleased(ctx, targetSystem)
	}
}
