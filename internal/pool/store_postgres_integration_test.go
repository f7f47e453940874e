//go:build integration

package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/domain"
	"firegate/pkg/platform/sentinel"
	"firegate/pkg/testutil/containers"
)

func newPostgresPool(t *testing.T) *PostgresStore {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	st := NewPostgres(pg.DB)
	require.NoError(t, st.EnsureSchema(context.Background()))

	for _, e := range []*Entry{
		{FirefighterID: "FF_PRD_02", TargetSystem: "PRD", Tier: domain.TierCritical},
		{FirefighterID: "FF_PRD_01", TargetSystem: "PRD", Tier: domain.TierHigh},
		{FirefighterID: "FF_DEV_01", TargetSystem: "DEV", Tier: domain.TierLow},
	} {
		require.NoError(t, st.Add(context.Background(), e))
	}
	return st
}

func TestPostgresReservePicksLowestSufficientTier(t *testing.T) {
	st := newPostgresPool(t)
	ctx := context.Background()
	w := domain.Window{Start: time.Now().UTC(), End: time.Now().Add(time.Hour).UTC()}

	// TierHigh must prefer the High entry over the Critical one even
	// though the Critical entry sorts first by ID.
	e, err := st.Reserve(ctx, "PRD", domain.TierHigh, w, "REQFF000001")
	require.NoError(t, err)
	require.Equal(t, "FF_PRD_01", e.FirefighterID)
	require.Equal(t, StateReserved, e.State)
	require.Equal(t, "REQFF000001", e.HeldBy)

	e, err = st.Reserve(ctx, "PRD", domain.TierHigh, w, "REQFF000002")
	require.NoError(t, err)
	require.Equal(t, "FF_PRD_02", e.FirefighterID)

	_, err = st.Reserve(ctx, "PRD", domain.TierHigh, w, "REQFF000003")
	require.ErrorIs(t, err, sentinel.ErrNoCapacity)
}

func TestPostgresGuardedTransitions(t *testing.T) {
	st := newPostgresPool(t)
	ctx := context.Background()
	w := domain.Window{Start: time.Now().UTC(), End: time.Now().Add(time.Hour).UTC()}

	_, err := st.Reserve(ctx, "DEV", domain.TierLow, w, "REQFF000001")
	require.NoError(t, err)

	// Wrong holder never advances the entry.
	err = st.Activate(ctx, "FF_DEV_01", "REQFF000009")
	require.ErrorIs(t, err, sentinel.ErrInvalidState)

	require.NoError(t, st.Activate(ctx, "FF_DEV_01", "REQFF000001"))
	// Repeating a settled transition is quiet.
	require.NoError(t, st.Activate(ctx, "FF_DEV_01", "REQFF000001"))

	until := time.Now().Add(15 * time.Minute).UTC()
	require.NoError(t, st.Deactivate(ctx, "FF_DEV_01", "REQFF000001", until))

	e, err := st.Get(ctx, "FF_DEV_01")
	require.NoError(t, err)
	require.Equal(t, StateCoolingDown, e.State)

	// A cooldown entry is invisible to reservations.
	_, err = st.Reserve(ctx, "DEV", domain.TierLow, w, "REQFF000002")
	require.ErrorIs(t, err, sentinel.ErrNoCapacity)
}

func TestPostgresSweepCooldown(t *testing.T) {
	st := newPostgresPool(t)
	ctx := context.Background()
	w := domain.Window{Start: time.Now().UTC(), End: time.Now().Add(time.Hour).UTC()}

	_, err := st.Reserve(ctx, "DEV", domain.TierLow, w, "REQFF000001")
	require.NoError(t, err)
	require.NoError(t, st.Activate(ctx, "FF_DEV_01", "REQFF000001"))
	require.NoError(t, st.Deactivate(ctx, "FF_DEV_01", "REQFF000001", time.Now().Add(-time.Second).UTC()))

	freed, err := st.SweepCooldown(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, freed, 1)
	require.Equal(t, "FF_DEV_01", freed[0].FirefighterID)

	e, err := st.Get(ctx, "FF_DEV_01")
	require.NoError(t, err)
	require.Equal(t, StateFree, e.State)
	require.Empty(t, e.HeldBy)

	// Nothing left to free on the next pass.
	freed, err = st.SweepCooldown(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, freed)
}
