package events

import (
	"context"

	"github.com/google/uuid"
)

// Envelope is one outbox row: the serialized event plus publishing
// bookkeeping. The payload is marshaled at append time so the drain
// worker never needs domain knowledge.
type Envelope struct {
	ID        uuid.UUID
	RequestID string
	EventType string
	Payload   []byte
}

// Outbox stores events pending publication. Append happens on the
// request's write path; Unpublished/MarkPublished belong to the drain
// worker. At-least-once: a crash between produce and mark republishes.
type Outbox interface {
	Append(ctx context.Context, env Envelope) error
	Unpublished(ctx context.Context, limit int) ([]Envelope, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
