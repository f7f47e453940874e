package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-agnostic view handlers receive.
type Message struct {
	Key   []byte
	Value []byte
}

// Handler processes one message. Returning an error stops the consumer;
// handlers that want to skip malformed messages return nil.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer runs a consumer-group poll loop over a single topic. Used by
// integration tests and by any in-process feed consumer; production
// analytics consumers live outside this service.
type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewConsumer joins the given group on the topic.
func NewConsumer(brokers []string, group, topic string, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until ctx is cancelled, dispatching each record to handler.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return fmt.Errorf("poll fetches: %w", errs[0].Err)
		}

		var handleErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = handler.Handle(ctx, &Message{Key: rec.Key, Value: rec.Value})
		})
		if handleErr != nil {
			return handleErr
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
