package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
	"github.com/vladislavdragonenkov/sales/internal/service/orders"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
)

func seededStore(t *testing.T) (*memory.Store, *orders.Engine) {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Customers().Create(ctx, domain.Customer{ID: "c-1", FullName: "Ada", Email: "ada@example.com"}))
	require.NoError(t, store.Products().Create(ctx, domain.Product{ID: "p-1", Name: "Pen", Price: decimal.NewFromInt(3), Stock: 10}))
	return store, orders.NewEngine(store, store.Products())
}

func TestWorker_PublishesEngineEventsInOrder(t *testing.T) {
	t.Parallel()

	store, engine := seededStore(t)
	ctx := context.Background()

	order, err := engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 2}})
	require.NoError(t, err)
	require.NoError(t, engine.DeleteOrder(ctx, order.ID))

	publisher := &stubPublisher{}
	worker := NewWorker(store.Outbox(), publisher, WithRetryBaseDelay(0), WithMetrics(metrics.NewOutboxMetrics(prometheus.NewRegistry())))

	require.Equal(t, 2, worker.ProcessOnce(ctx))
	require.Equal(t, []string{string(domain.OrderEventCreated), string(domain.OrderEventDeleted)}, publisher.eventTypes())
	require.Empty(t, store.Outbox().AllPending())

	var event domain.OrderEvent
	require.NoError(t, json.Unmarshal(publisher.published[0].Payload, &event))
	require.Equal(t, order.ID, event.OrderID)
	require.Equal(t, "6.00", event.TotalAmount)

	require.Zero(t, worker.ProcessOnce(ctx), "sent events must not be published twice")
}

func TestWorker_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	store, engine := seededStore(t)
	ctx := context.Background()
	_, err := engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.NoError(t, err)

	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlq := &stubPublisher{}
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	worker := NewWorker(store.Outbox(), publisher,
		WithDLQPublisher(dlq),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
		WithClock(func() time.Time { return now }),
	)

	require.Zero(t, worker.ProcessOnce(ctx))
	require.Equal(t, 3, publisher.calls())
	require.Equal(t, 1, dlq.calls())
	require.Empty(t, store.Outbox().AllPending(), "failed event leaves the pending queue")

	var dead DeadLetter
	require.NoError(t, json.Unmarshal(dlq.published[0].Payload, &dead))
	require.Equal(t, string(domain.OrderEventCreated), dead.EventType)
	require.Contains(t, dead.PublishError, "broker unavailable")
	require.True(t, dead.DLQPublishedAt.Equal(now))
	require.NotEmpty(t, dead.Payload)
}

func TestWorker_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	store, engine := seededStore(t)
	ctx := context.Background()
	_, err := engine.CreateOrder(ctx, "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.NoError(t, err)

	publisher := &stubPublisher{sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil}}
	worker := NewWorker(store.Outbox(), publisher, WithRetryBaseDelay(time.Millisecond), WithMaxAttempts(3))

	require.Equal(t, 1, worker.ProcessOnce(ctx))
	require.Equal(t, 3, publisher.calls())
}

func TestWorker_CancelledDuringBackoffKeepsEventPending(t *testing.T) {
	t.Parallel()

	store, engine := seededStore(t)
	_, err := engine.CreateOrder(context.Background(), "c-1", []orders.ItemRequest{{ProductID: "p-1", Quantity: 1}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	publisher := &stubPublisher{err: errors.New("down"), onPublish: cancel}
	worker := NewWorker(store.Outbox(), publisher, WithRetryBaseDelay(time.Hour), WithMaxAttempts(5))

	require.Zero(t, worker.ProcessOnce(ctx))
	require.Equal(t, 1, publisher.calls())
	require.Len(t, store.Outbox().AllPending(), 1)
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	store, _ := seededStore(t)
	worker := NewWorker(store.Outbox(), &stubPublisher{}, WithPollInterval(5*time.Millisecond))

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
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	require.Zero(t, backoff(0, 3))
	require.Equal(t, 10*time.Millisecond, backoff(10*time.Millisecond, 1))
	require.Equal(t, 40*time.Millisecond, backoff(10*time.Millisecond, 3))
	require.Equal(t, 30*time.Second, backoff(time.Second, 20))
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	sequenceErrors []error
	onPublish      func()
	published      []domain.OutboxMessage
	callCount      int
}

func (s *stubPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	if s.onPublish != nil {
		s.onPublish()
	}

	err := s.err
	if len(s.sequenceErrors) > 0 {
		err = s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
	}
	if err == nil {
		s.published = append(s.published, event)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]string, 0, len(s.published))
	for _, event := range s.published {
		types = append(types, event.EventType)
	}
	return types
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)
