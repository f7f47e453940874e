//go:build integration

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"firegate/internal/domain"
	"firegate/internal/platform/kafka"
	"firegate/pkg/testutil/containers"
)

func TestPostgresOutboxRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	outbox := NewPostgresOutbox(pg.DB)
	require.NoError(t, outbox.EnsureSchema(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := NewService(outbox, logger)

	var from domain.Status
	for _, to := range []domain.Status{domain.StatusRequested, domain.StatusPendingApproval} {
		require.NoError(t, rec.Record(ctx, TransitionEvent{
			RequestID: "REQFF000001",
			From:      from,
			To:        to,
			Actor:     "jdoe",
			Timestamp: time.Now().UTC(),
		}))
		from = to
	}

	batch, err := outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, "request.requested", batch[0].EventType)

	require.NoError(t, outbox.MarkPublished(ctx, []uuid.UUID{batch[0].ID}))

	batch, err = outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, "request.pending_approval", batch[0].EventType)
}

func TestPublisherDrainsToRedpanda(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	producer, err := kafka.NewProducer([]string{rp.Broker}, logger)
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	const topic = "firegate.request.transitions"
	require.NoError(t, producer.EnsureTopic(ctx, topic, 1))

	outbox := NewPostgresOutbox(pg.DB)
	require.NoError(t, outbox.EnsureSchema(ctx))
	rec := NewService(outbox, logger)

	ev := TransitionEvent{
		RequestID: "REQFF000042",
		From:      domain.StatusApproved,
		To:        domain.StatusActive,
		Actor:     "system",
		Detail:    "session activated",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, rec.Record(ctx, ev))

	pub := NewPublisher(outbox, producer, topic, time.Minute, rec.Wake(), logger)
	require.NoError(t, pub.DrainOnce(ctx))

	remaining, err := outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)

	consumer, err := kafka.NewConsumer([]string{rp.Broker}, "feed-test", topic, logger)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	capture := &captureHandler{}
	fctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.ErrorIs(t, consumer.Run(fctx, capture), errGotMessage)

	var got TransitionEvent
	require.NoError(t, json.Unmarshal(capture.msg.Value, &got))
	require.Equal(t, "REQFF000042", got.RequestID)
	require.Equal(t, domain.StatusActive, got.To)
	require.Equal(t, got.ID.String(), string(capture.msg.Key))
}

var errGotMessage = errors.New("got message")

// captureHandler stops the consumer loop after the first record.
type captureHandler struct {
	msg *kafka.Message
}

func (h *captureHandler) Handle(_ context.Context, msg *kafka.Message) error {
	h.msg = msg
	return errGotMessage
}
