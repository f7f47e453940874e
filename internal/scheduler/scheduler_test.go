package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/connector"
	"firegate/internal/domain"
	"firegate/internal/events"
	"firegate/internal/lifecycle"
	"firegate/internal/platform/config"
	"firegate/internal/pool"
	"firegate/internal/request/models"
	"firegate/internal/request/store"
	"firegate/internal/sessionlog"
	"firegate/internal/targets"
	"firegate/pkg/requestcontext"
)

// TestTickAdvancesDueWork walks a request across two simulated ticks:
// the first at window start activates it, the second after window end
// queues the review and starts the cool-down.
func TestTickAdvancesDueWork(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	directory := connector.NewStaticDirectory(connector.User{ID: "jdoe", ManagerID: "mgarcia"})
	registry := targets.NewRegistry([]targets.System{{ID: "DEV", Tier: domain.TierLow}})
	target := connector.NewFakeTargetSystem()
	poolStore := pool.NewMemory()
	poolSvc := pool.NewService(poolStore, 15*time.Minute, logger, nil)

	lc := lifecycle.NewService(lifecycle.Deps{
		Requests:  store.NewMemory(),
		Pool:      poolSvc,
		Sessions:  sessionlog.NewService(sessionlog.NewMemory(), target, sessionlog.HeuristicScorer{}, logger),
		Recorder:  events.NewService(events.NewMemoryOutbox(), logger),
		Directory: directory,
		Target:    target,
		Notifier:  &connector.RecordingNotifier{},
		Registry:  registry,
		Connector: config.ConnectorConfig{CallTimeout: time.Second, MaxAttempts: 1},
		Logger:    logger,
	})

	sched := New(lc, poolSvc, nil, config.SchedulerConfig{TickInterval: time.Second}, logger)
	clock := base
	sched.now = func() time.Time { return clock }

	ctx := context.Background()
	require.NoError(t, poolSvc.Seed(ctx, []*pool.Entry{
		{FirefighterID: "FF_DEV_01", TargetSystem: "DEV", Tier: domain.TierLow},
	}))

	req, err := lc.Submit(requestcontext.WithTime(ctx, base), models.Draft{
		Requester:    "jdoe",
		Subject:      "jdoe",
		TargetSystem: "DEV",
		Window:       domain.Window{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)},
		Justification: models.Justification{
			TicketRef:             "CHG-1",
			TransactionsRequested: "SU01",
			ActivityDescription:   "reset locked account",
		},
	})
	require.NoError(t, err)

	// Tick before the window: nothing moves.
	sched.Tick(ctx)
	got, err := lc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, got.Status)

	// Tick at window start.
	clock = base.Add(time.Hour)
	sched.Tick(ctx)
	got, err = lc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, got.Status)

	// Tick after window end.
	clock = base.Add(2 * time.Hour)
	sched.Tick(ctx)
	got, err = lc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingReview, got.Status)

	// Tick after the cool-down: the credential frees up.
	clock = base.Add(2*time.Hour + 16*time.Minute)
	sched.Tick(ctx)
	entry, err := poolSvc.Get(ctx, "FF_DEV_01")
	require.NoError(t, err)
	require.Equal(t, pool.StateFree, entry.State)
}
