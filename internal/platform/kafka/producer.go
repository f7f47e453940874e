// Package kafka wraps franz-go for the transition event feed. The
// lifecycle engine only ever appends to the feed; downstream analytics
// and log-retention jobs consume it.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records to Kafka.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewProducer connects to the given brokers. Returns nil if no brokers
// are configured (event feed stays outbox-only).
func NewProducer(brokers []string, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Producer{client: client, logger: logger}, nil
}

// EnsureTopic creates the topic if it does not exist yet. Safe to call
// on every startup.
func (p *Producer) EnsureTopic(ctx context.Context, topic string, partitions int32) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Produce publishes one record synchronously. The outbox worker calls
// this; it owns retry semantics, so a failed produce simply leaves the
// outbox entry unpublished.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *Producer) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}
