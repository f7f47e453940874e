package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink is where drained envelopes go; satisfied by the Kafka producer.
type Sink interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

const drainBatchSize = 100

// Publisher drains the outbox to the sink. It runs on a ticker plus the
// recorder's wake signal so a burst of transitions is published promptly
// without polling hot.
type Publisher struct {
	outbox   Outbox
	sink     Sink
	topic    string
	interval time.Duration
	wake     <-chan struct{}
	logger   *slog.Logger
}

// NewPublisher constructs the drain worker.
func NewPublisher(outbox Outbox, sink Sink, topic string, interval time.Duration, wake <-chan struct{}, logger *slog.Logger) *Publisher {
	return &Publisher{outbox: outbox, sink: sink, topic: topic, interval: interval, wake: wake, logger: logger}
}

// Run drains until the context is cancelled. Publish failures leave the
// batch unpublished for the next round; duplicates on the topic are
// expected and keyed by event ID for consumer dedup.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-p.wake:
		}
		if err := p.DrainOnce(ctx); err != nil {
			p.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
		}
	}
}

// DrainOnce publishes one batch of pending envelopes.
func (p *Publisher) DrainOnce(ctx context.Context) error {
	for {
		batch, err := p.outbox.Unpublished(ctx, drainBatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		published := make([]uuid.UUID, 0, len(batch))
		for _, env := range batch {
			if err := p.sink.Produce(ctx, p.topic, []byte(env.ID.String()), env.Payload); err != nil {
				if markErr := p.outbox.MarkPublished(ctx, published); markErr != nil {
					return markErr
				}
				return err
			}
			published = append(published, env.ID)
		}
		if err := p.outbox.MarkPublished(ctx, published); err != nil {
			return err
		}
		if len(batch) < drainBatchSize {
			return nil
		}
	}
}
