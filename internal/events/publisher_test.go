package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firegate/internal/domain"
)

type captureSink struct {
	mu       sync.Mutex
	failNext int
	records  [][]byte
}

func (s *captureSink) Produce(ctx context.Context, topic string, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("broker unavailable")
	}
	s.records = append(s.records, value)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transition(requestID string, from, to domain.Status) TransitionEvent {
	return TransitionEvent{
		RequestID: requestID,
		From:      from,
		To:        to,
		Actor:     "jdoe",
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestRecordThenDrain(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	svc := NewService(outbox, testLogger())
	sink := &captureSink{}
	pub := NewPublisher(outbox, sink, "firegate.request.transitions", time.Minute, svc.Wake(), testLogger())

	require.NoError(t, svc.Record(ctx, transition("REQFF000001", domain.StatusRequested, domain.StatusPendingApproval)))
	require.NoError(t, svc.Record(ctx, transition("REQFF000001", domain.StatusPendingApproval, domain.StatusApproved)))

	require.NoError(t, pub.DrainOnce(ctx))
	require.Equal(t, 2, sink.count())
	require.Len(t, outbox.Published(), 2)

	// Nothing left; a second drain is a no-op.
	require.NoError(t, pub.DrainOnce(ctx))
	require.Equal(t, 2, sink.count())
}

func TestDrainKeepsFailedBatch(t *testing.T) {
	ctx := context.Background()
	outbox := NewMemoryOutbox()
	svc := NewService(outbox, testLogger())
	sink := &captureSink{failNext: 1}
	pub := NewPublisher(outbox, sink, "firegate.request.transitions", time.Minute, svc.Wake(), testLogger())

	require.NoError(t, svc.Record(ctx, transition("REQFF000002", domain.StatusActive, domain.StatusPendingReview)))

	require.Error(t, pub.DrainOnce(ctx))
	require.Empty(t, outbox.Published())

	// Broker back: the entry drains on the next round.
	require.NoError(t, pub.DrainOnce(ctx))
	require.Equal(t, 1, sink.count())
	require.Len(t, outbox.Published(), 1)
}

func TestRunDrainsOnWakeSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbox := NewMemoryOutbox()
	svc := NewService(outbox, testLogger())
	sink := &captureSink{}
	pub := NewPublisher(outbox, sink, "firegate.request.transitions", time.Hour, svc.Wake(), testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pub.Run(ctx)
	}()

	require.NoError(t, svc.Record(ctx, transition("REQFF000003", domain.StatusApproved, domain.StatusActive)))

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
