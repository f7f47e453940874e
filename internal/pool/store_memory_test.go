package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/domain"
	"firegate/pkg/platform/sentinel"
)

func seedStore(t *testing.T, entries ...*Entry) *MemoryStore {
	t.Helper()
	s := NewMemory()
	for _, e := range entries {
		require.NoError(t, s.Add(context.Background(), e))
	}
	return s
}

func testWindow() domain.Window {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return domain.Window{Start: start, End: start.Add(4 * time.Hour)}
}

func TestMemoryStoreAdd(t *testing.T) {
	s := seedStore(t, &Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh})

	err := s.Add(context.Background(), &Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh})
	require.ErrorIs(t, err, sentinel.ErrConflict)

	got, err := s.Get(context.Background(), "FF_PRD_01")
	require.NoError(t, err)
	require.Equal(t, StateFree, got.State)
}

func TestMemoryStoreReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("picks lowest eligible firefighter id", func(t *testing.T) {
		s := seedStore(t,
			&Entry{FirefighterID: "FF_PRD_02", TargetSystem: "PRD", Tier: domain.TierHigh},
			&Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh},
			&Entry{FirefighterID: "FF_QAS_01", TargetSystem: "QAS", Tier: domain.TierHigh},
		)

		e, err := s.Reserve(ctx, "PRD", domain.TierMedium, testWindow(), "REQFF000001")
		require.NoError(t, err)
		require.Equal(t, "FF_PRD_01", e.FirefighterID)
		require.Equal(t, StateReserved, e.State)
		require.Equal(t, "REQFF000001", e.HeldBy)
	})

	t.Run("skips entries below the requested tier", func(t *testing.T) {
		s := seedStore(t,
			&Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierLow},
			&Entry{FirefighterID: "FF_PRD_02", TargetSystem: "PRD", Tier: domain.TierCritical},
		)

		e, err := s.Reserve(ctx, "PRD", domain.TierHigh, testWindow(), "REQFF000002")
		require.NoError(t, err)
		require.Equal(t, "FF_PRD_02", e.FirefighterID)
	})

	t.Run("no capacity when everything is held", func(t *testing.T) {
		s := seedStore(t, &Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh})

		_, err := s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), "REQFF000003")
		require.NoError(t, err)

		_, err = s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), "REQFF000004")
		require.ErrorIs(t, err, sentinel.ErrNoCapacity)
	})
}

func TestMemoryStoreActivate(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t, &Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh})

	_, err := s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), "REQFF000001")
	require.NoError(t, err)

	require.NoError(t, s.Activate(ctx, "FF_PRD_01", "REQFF000001"))

	// Duplicate trigger from a scheduler retry is a no-op.
	require.NoError(t, s.Activate(ctx, "FF_PRD_01", "REQFF000001"))

	// A different holder cannot activate someone else's lease.
	err = s.Activate(ctx, "FF_PRD_01", "REQFF000099")
	require.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestMemoryStoreDeactivate(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t, &Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh})

	_, err := s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), "REQFF000001")
	require.NoError(t, err)
	require.NoError(t, s.Activate(ctx, "FF_PRD_01", "REQFF000001"))

	until := time.Date(2026, 3, 10, 13, 15, 0, 0, time.UTC)
	require.NoError(t, s.Deactivate(ctx, "FF_PRD_01", "REQFF000001", until))

	e, err := s.Get(ctx, "FF_PRD_01")
	require.NoError(t, err)
	require.Equal(t, StateCoolingDown, e.State)
	require.Empty(t, e.HeldBy)
	require.Equal(t, until, e.CooldownUntil)

	// Repeat deactivation stays quiet.
	require.NoError(t, s.Deactivate(ctx, "FF_PRD_01", "REQFF000001", until))
}

func TestMemoryStoreRelease(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t, &Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh})

	_, err := s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), "REQFF000001")
	require.NoError(t, err)

	require.NoError(t, s.Release(ctx, "FF_PRD_01", "REQFF000001"))

	e, err := s.Get(ctx, "FF_PRD_01")
	require.NoError(t, err)
	require.Equal(t, StateFree, e.State)

	// Release on a Free entry is idempotent, no cool-down involved.
	require.NoError(t, s.Release(ctx, "FF_PRD_01", "REQFF000001"))

	// An active lease must go through Deactivate, never Release.
	_, err = s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), "REQFF000002")
	require.NoError(t, err)
	require.NoError(t, s.Activate(ctx, "FF_PRD_01", "REQFF000002"))
	require.ErrorIs(t, s.Release(ctx, "FF_PRD_01", "REQFF000002"), sentinel.ErrInvalidState)
}

func TestMemoryStoreSweepCooldown(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t,
		&Entry{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh},
		&Entry{FirefighterID: "FF_PRD_02", TargetSystem: "PRD", Tier: domain.TierHigh},
	)

	now := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

	for i, id := range []string{"FF_PRD_01", "FF_PRD_02"} {
		holder := domain.FormatRequestID(uint64(i + 1))
		_, err := s.Reserve(ctx, "PRD", domain.TierLow, testWindow(), holder)
		require.NoError(t, err)
		require.NoError(t, s.Activate(ctx, id, holder))
	}
	require.NoError(t, s.Deactivate(ctx, "FF_PRD_01", "REQFF000001", now.Add(-time.Minute)))
	require.NoError(t, s.Deactivate(ctx, "FF_PRD_02", "REQFF000002", now.Add(10*time.Minute)))

	freed, err := s.SweepCooldown(ctx, now)
	require.NoError(t, err)
	require.Len(t, freed, 1)
	require.Equal(t, "FF_PRD_01", freed[0].FirefighterID)
	require.Equal(t, StateFree, freed[0].State)

	e, err := s.Get(ctx, "FF_PRD_02")
	require.NoError(t, err)
	require.Equal(t, StateCoolingDown, e.State)
}
