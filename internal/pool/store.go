package pool

import (
	"context"
	"time"

	"firegate/internal/domain"
)

// Store persists credential pool entries. Implementations guarantee that
// each state change is atomic per entry and guarded by the state the
// transition requires, so duplicate triggers are harmless.
type Store interface {
	// Add registers a credential. Returns sentinel.ErrConflict if the
	// firefighter ID already exists.
	Add(ctx context.Context, e *Entry) error

	// Get returns a copy of the entry or sentinel.ErrNotFound.
	Get(ctx context.Context, firefighterID string) (*Entry, error)

	// List returns all entries ordered by firefighter ID.
	List(ctx context.Context) ([]*Entry, error)

	// Reserve picks the Free entry for the system whose tier covers the
	// requested tier, lowest firefighter ID first, and marks it Reserved
	// for the holder. Returns sentinel.ErrNoCapacity when nothing is
	// eligible.
	Reserve(ctx context.Context, targetSystem string, tier domain.Tier, window domain.Window, holder string) (*Entry, error)

	// Activate transitions Reserved -> Active. Calling it on an entry
	// already Active for the same holder is a no-op so scheduler retries
	// stay safe. Any other state returns sentinel.ErrInvalidState.
	Activate(ctx context.Context, firefighterID, holder string) error

	// Deactivate transitions Active -> CoolingDown and stamps the
	// cool-down deadline. Idempotent for the same holder.
	Deactivate(ctx context.Context, firefighterID, holder string, cooldownUntil time.Time) error

	// Release transitions Reserved -> Free with no cool-down; the
	// cancellation/rejection path before activation.
	Release(ctx context.Context, firefighterID, holder string) error

	// SweepCooldown frees every CoolingDown entry whose deadline passed
	// and returns the freed entries so capacity-release retries can run.
	SweepCooldown(ctx context.Context, now time.Time) ([]*Entry, error)
}
