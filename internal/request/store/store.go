// Package store persists access requests. Two implementations exist:
// an in-memory store for development and unit tests, and a PostgreSQL
// store for real deployments. Both return pkg/platform/sentinel errors;
// the lifecycle service translates them into domain errors.
package store

import (
	"context"
	"time"

	"firegate/internal/domain"
	"firegate/internal/request/models"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status    domain.Status
	Requester string
	// Approver matches requests whose next pending decision is addressed
	// to this actor (subject's manager or the controller/review role).
	Approver string
}

// Store is the durable record of every access request.
type Store interface {
	// NextID allocates the next request ID from the durable sequence.
	NextID(ctx context.Context) (string, error)

	// Create persists a freshly submitted request. Returns
	// sentinel.ErrConflict if the ID already exists.
	Create(ctx context.Context, req *models.AccessRequest) error

	// Get returns a copy of the request or sentinel.ErrNotFound.
	Get(ctx context.Context, id string) (*models.AccessRequest, error)

	// Update overwrites the stored record, guarded by the status the
	// caller read: returns sentinel.ErrConflict when the stored status no
	// longer matches expected. This is the single-writer guard that makes
	// duplicate scheduler triggers harmless.
	Update(ctx context.Context, req *models.AccessRequest, expected domain.Status) error

	// AppendDecision atomically appends to the decision log. Returns
	// sentinel.ErrInvalidState if the request is already terminal.
	AppendDecision(ctx context.Context, id string, d models.Decision) (*models.AccessRequest, error)

	// List returns requests matching the filter, oldest first.
	List(ctx context.Context, f Filter) ([]*models.AccessRequest, error)

	// ListActivationDue returns Approved requests holding a reservation
	// whose window has started.
	ListActivationDue(ctx context.Context, now time.Time) ([]*models.AccessRequest, error)

	// ListExpiryDue returns Active requests whose window has ended.
	ListExpiryDue(ctx context.Context, now time.Time) ([]*models.AccessRequest, error)

	// ListAwaitingCapacity returns PendingApproval requests parked on
	// pool exhaustion for a target system, oldest first, for retry on
	// capacity release.
	ListAwaitingCapacity(ctx context.Context, targetSystem string) ([]*models.AccessRequest, error)
}
