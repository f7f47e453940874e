package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"firegate/internal/platform/redis"
)

// Lease is a best-effort single-scheduler election on Redis. Losing the
// lease mid-tick is harmless: every lifecycle operation re-checks state
// under its own lock and status CAS, so two schedulers are merely
// wasteful, never wrong.
type Lease struct {
	client   *redis.Client
	key      string
	duration time.Duration
	holder   string
}

// NewLease constructs a lease on the given key.
func NewLease(client *redis.Client, key string, duration time.Duration) *Lease {
	return &Lease{
		client:   client,
		key:      key,
		duration: duration,
		holder:   leaseHolderID(),
	}
}

// Acquire takes or refreshes the lease. Returns false when another
// instance holds it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.holder, l.duration).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	current, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		return false, err
	}
	if current != l.holder {
		return false, nil
	}
	// Refresh our own lease before it lapses.
	if err := l.client.Expire(ctx, l.key, l.duration).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Release drops the lease on shutdown so a peer takes over promptly.
func (l *Lease) Release(ctx context.Context) {
	current, err := l.client.Get(ctx, l.key).Result()
	if err != nil || current != l.holder {
		return
	}
	l.client.Del(ctx, l.key)
}

func leaseHolderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "firegate"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}
