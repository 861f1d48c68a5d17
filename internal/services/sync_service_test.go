package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/queue"
	"github.com/example/forgeline/internal/services"
	"github.com/example/forgeline/internal/store"
)

func TestPendingOrderSourceSkipsFreshOrders(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	_, err := st.UpsertOrder(ctx, store.OrderUpdate{
		OrderID:       "ord-fresh",
		CustomerEmail: store.Ptr("pat@example.com"),
		Amount:        store.Ptr(10.0),
	})
	require.NoError(t, err)

	source := services.NewPendingOrderSource(st, time.Hour)
	items, err := source.FetchNewOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "freshly updated orders are not re-enqueued")
}

func TestPendingOrderSourceReturnsStaleOrders(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	_, err := st.UpsertOrder(ctx, store.OrderUpdate{
		OrderID:       "ord-stale",
		CustomerEmail: store.Ptr("pat@example.com"),
		Amount:        store.Ptr(25.0),
	})
	require.NoError(t, err)
	_, err = st.UpsertOrder(ctx, store.OrderUpdate{
		OrderID: "ord-paid",
		Status:  store.Ptr(models.StatusPaid),
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	source := services.NewPendingOrderSource(st, time.Millisecond)

	items, err := source.FetchNewOrders(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1, "only stale Pending orders come back")
	assert.Equal(t, "ord-stale", items[0].OrderID)
	assert.Equal(t, queue.PriorityNormal, items[0].Priority)
	assert.Equal(t, 25.0, items[0].Amount)
	assert.Equal(t, "pending-resync", items[0].Metadata["source"])
}

type staticSource struct {
	mu    sync.Mutex
	items []queue.OrderItem
}

func (s *staticSource) FetchNewOrders(ctx context.Context) ([]queue.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	s.items = nil
	return items, nil
}

func TestSyncServiceEnqueuesFetchedOrders(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	q := queue.New(queue.Config{Workers: 1, BackoffUnit: time.Millisecond}, func(ctx context.Context, item *queue.OrderItem) error {
		mu.Lock()
		processed = append(processed, item.OrderID)
		mu.Unlock()
		return nil
	})
	q.Start(context.Background())

	source := &staticSource{items: []queue.OrderItem{
		{OrderID: "ord-1", Amount: 1},
		{OrderID: "ord-2", Amount: 2},
	}}
	syncer := services.NewSyncService(source, q, 5*time.Millisecond)
	syncer.Start(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, 2*time.Second, 2*time.Millisecond)

	syncer.Stop()
	stats := q.Stop()
	assert.EqualValues(t, 2, stats.Processed)
}
