package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service is the Recorder the lifecycle engine writes through. Events
// are serialized into the outbox immediately; the publisher drains them
// asynchronously, so recording never blocks on the broker.
type Service struct {
	outbox Outbox
	logger *slog.Logger
	wake   chan struct{}
}

// NewService constructs the event recorder.
func NewService(outbox Outbox, logger *slog.Logger) *Service {
	return &Service{outbox: outbox, logger: logger, wake: make(chan struct{}, 1)}
}

// Record serializes the transition into the outbox and nudges the
// publisher.
func (s *Service) Record(ctx context.Context, ev TransitionEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}
	env := Envelope{
		ID:        ev.ID,
		RequestID: ev.RequestID,
		EventType: fmt.Sprintf("request.%s", ev.To),
		Payload:   payload,
	}
	if err := s.outbox.Append(ctx, env); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "transition recorded",
		"request_id", ev.RequestID,
		"from", ev.From,
		"to", ev.To,
	)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wake is the publisher's signal channel; it fires at most once per
// pending batch.
func (s *Service) Wake() <-chan struct{} { return s.wake }
