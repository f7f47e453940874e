//go:build integration

package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/platform/redis"
	"firegate/pkg/testutil/containers"
)

func TestLeaseSingleHolder(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	client := &redis.Client{Client: rc.Client}

	const key = "firegate:scheduler:lease"
	a := NewLease(client, key, 30*time.Second)
	b := NewLease(client, key, 30*time.Second)

	held, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	// Re-acquire by the holder refreshes, a peer is refused.
	held, err = a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	held, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, held)

	a.Release(ctx)

	held, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	// Releasing a lease someone else holds is a no-op.
	a.Release(ctx)
	held, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)
}

func TestRunReleasesLeaseOnShutdown(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	client := &redis.Client{Client: rc.Client}

	const key = "firegate:scheduler:lease"
	lease := NewLease(client, key, 30*time.Second)
	peer := NewLease(client, key, 30*time.Second)

	held, err := lease.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, held)

	s := &Scheduler{
		lease:    lease,
		interval: time.Hour,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// The peer takes over right away instead of waiting out the TTL.
	held, err = peer.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, held)
}

func TestLeaseExpiresToPeer(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	client := &redis.Client{Client: rc.Client}

	const key = "firegate:scheduler:lease"
	a := NewLease(client, key, time.Second)
	b := NewLease(client, key, time.Second)

	held, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	require.Eventually(t, func() bool {
		held, err := b.Acquire(ctx)
		return err == nil && held
	}, 5*time.Second, 100*time.Millisecond)
}
