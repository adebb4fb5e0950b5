package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func enqueue(t *testing.T, repo *memory.OutboxRepository, aggregate, id, eventType string) domain.OutboxMessage {
	t.Helper()
	msg, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: aggregate,
		AggregateID:   id,
		EventType:     eventType,
		Payload:       []byte(`{"client_id":"c1"}`),
	})
	require.NoError(t, err)
	return msg
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	first := enqueue(t, repo, domain.AggregateCart, "c1", "cart.item_added")
	second := enqueue(t, repo, domain.AggregateOrder, "o1", "order.confirmed")
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher,
		WithRetryBaseDelay(0),
		WithMetrics(metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())),
	)

	require.Equal(t, 2, worker.ProcessOnce(context.Background()))
	require.Equal(t, 2, publisher.calls())
	require.Equal(t, []string{first.ID, second.ID}, publisher.ids())
	require.Empty(t, repo.AllPending())

	status, ok := repo.Status(first.ID)
	require.True(t, ok)
	require.Equal(t, "sent", status)

	// второй проход ничего не публикует
	require.Equal(t, 0, worker.ProcessOnce(context.Background()))
	require.Equal(t, 2, publisher.calls())
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	msg := enqueue(t, repo, domain.AggregateOrder, "o2", "order.rejected")
	publisher := &stubPublisher{err: errors.New("broker down")}
	dlq := &stubPublisher{}

	worker := NewWorker(repo, publisher,
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	)

	require.Equal(t, 0, worker.ProcessOnce(context.Background()))
	require.Equal(t, 3, publisher.calls())
	require.Equal(t, 1, dlq.calls())

	status, ok := repo.Status(msg.ID)
	require.True(t, ok)
	require.Equal(t, "failed", status)

	var envelope DLQEnvelope
	require.NoError(t, json.Unmarshal(dlq.last().Payload, &envelope))
	require.Equal(t, msg.ID, envelope.OutboxID)
	require.Equal(t, "order.rejected", envelope.EventType)
	require.Contains(t, envelope.PublishError, "broker down")
	require.JSONEq(t, `{"client_id":"c1"}`, string(envelope.Payload))
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueue(t, repo, domain.AggregateCart, "c3", "cart.checked_out")
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	require.Equal(t, 1, worker.ProcessOnce(context.Background()))
	require.Equal(t, 3, publisher.calls())
	require.Empty(t, repo.AllPending())
}

func TestWorker_ProcessOnce_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	enqueue(t, repo, domain.AggregateCart, "c4", "cart.item_added")
	publisher := &stubPublisher{}
	worker := NewWorker(repo, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, 0, worker.ProcessOnce(ctx))
	require.Equal(t, 0, publisher.calls())
	require.Len(t, repo.AllPending(), 1)
}

func TestWorker_RetryBackoff(t *testing.T) {
	w := NewWorker(nil, nil, WithRetryBaseDelay(10*time.Millisecond))
	require.Equal(t, 10*time.Millisecond, w.retryBackoff(1))
	require.Equal(t, 20*time.Millisecond, w.retryBackoff(2))
	require.Equal(t, 40*time.Millisecond, w.retryBackoff(3))

	w = NewWorker(nil, nil, WithRetryBaseDelay(0))
	require.Zero(t, w.retryBackoff(5))
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(memory.NewOutboxRepository(), &stubPublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	published      []domain.OutboxMessage
	callCount      int
}

func (s *stubPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	err := s.err
	if len(s.sequenceErrors) > 0 {
		err = s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
	}
	if err == nil {
		s.published = append(s.published, msg)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.published))
	for _, m := range s.published {
		out = append(out, m.ID)
	}
	return out
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[len(s.published)-1]
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)
