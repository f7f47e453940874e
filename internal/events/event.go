// Package events records lifecycle transitions as an append-only feed.
// Every status change writes an event to the transactional outbox; a
// background worker drains the outbox to Kafka so downstream audit and
// retention jobs see each transition at least once.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"firegate/internal/domain"
)

// TransitionEvent is one recorded status change of an access request.
type TransitionEvent struct {
	ID        uuid.UUID     `json:"id"`
	RequestID string        `json:"request_id"`
	From      domain.Status `json:"from"`
	To        domain.Status `json:"to"`
	Actor     string        `json:"actor,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Recorder accepts transition events from the lifecycle service.
type Recorder interface {
	Record(ctx context.Context, ev TransitionEvent) error
}
