package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryOutbox keeps pending envelopes in order of arrival.
type MemoryOutbox struct {
	mu        sync.Mutex
	pending   []Envelope
	published []Envelope
}

// NewMemoryOutbox creates an empty in-memory outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

func (o *MemoryOutbox) Append(ctx context.Context, env Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, env)
	return nil
}

func (o *MemoryOutbox) Unpublished(ctx context.Context, limit int) ([]Envelope, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Envelope, n)
	copy(out, o.pending[:n])
	return out, nil
}

func (o *MemoryOutbox) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	done := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		done[id] = true
	}
	var remaining []Envelope
	for _, env := range o.pending {
		if done[env.ID] {
			o.published = append(o.published, env)
		} else {
			remaining = append(remaining, env)
		}
	}
	o.pending = remaining
	return nil
}

// Published returns everything drained so far; test helper.
func (o *MemoryOutbox) Published() []Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Envelope, len(o.published))
	copy(out, o.published)
	return out
}
