package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/forgeline/internal/queue"
)

// recorder collects processed order ids in dequeue order.
type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) process(ctx context.Context, item *queue.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, item.OrderID)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPriorityOrdering(t *testing.T) {
	rec := &recorder{}
	q := queue.New(queue.Config{Workers: 1, BackoffUnit: time.Millisecond}, rec.process)

	// Enqueue before starting the worker so ordering is decided purely by
	// the heap.
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityLow, OrderID: "low"}))
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityHigh, OrderID: "high-1"}))
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityNormal, OrderID: "normal"}))
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityHigh, OrderID: "high-2"}))

	q.Start(context.Background())
	waitFor(t, func() bool { return len(rec.snapshot()) == 4 })
	stats := q.Stop()

	got := rec.snapshot()
	// Both HIGH items before NORMAL, NORMAL before LOW. No ordering promise
	// between the two HIGH items.
	assert.ElementsMatch(t, []string{"high-1", "high-2"}, got[:2])
	assert.Equal(t, "normal", got[2])
	assert.Equal(t, "low", got[3])

	assert.EqualValues(t, 4, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Queued)
}

func TestRetryExhaustion(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	process := func(ctx context.Context, item *queue.OrderItem) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("boom")
	}

	q := queue.New(queue.Config{Workers: 1, MaxRetries: 3, BackoffUnit: 2 * time.Millisecond}, process)
	q.Start(context.Background())
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityNormal, OrderID: "doomed"}))

	waitFor(t, func() bool { return q.Stats().Failed == 1 })
	stats := q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, attempts, "initial attempt plus three retries")
	assert.EqualValues(t, 3, stats.Retried)
	assert.EqualValues(t, 0, stats.Processed)
	assert.EqualValues(t, 1, stats.Failed)
}

func TestRetryBackoffGrows(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	process := func(ctx context.Context, item *queue.OrderItem) error {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return errors.New("boom")
	}

	unit := 10 * time.Millisecond
	q := queue.New(queue.Config{Workers: 1, MaxRetries: 3, BackoffUnit: unit}, process)
	q.Start(context.Background())
	require.True(t, q.Enqueue(queue.OrderItem{OrderID: "doomed"}))

	waitFor(t, func() bool { return q.Stats().Failed == 1 })
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 4)
	// Waits are unit<<1, unit<<2, unit<<3 between attempts.
	for i, want := range []time.Duration{2 * unit, 4 * unit, 8 * unit} {
		gap := stamps[i+1].Sub(stamps[i])
		assert.GreaterOrEqual(t, gap, want, "gap %d", i)
	}
}

func TestRetriedItemComesBackAtHighPriority(t *testing.T) {
	var mu sync.Mutex
	var order []string
	failedOnce := false
	process := func(ctx context.Context, item *queue.OrderItem) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, item.OrderID)
		if item.OrderID == "flaky" && !failedOnce {
			failedOnce = true
			return errors.New("transient")
		}
		return nil
	}

	q := queue.New(queue.Config{Workers: 1, BackoffUnit: time.Millisecond}, process)
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityNormal, OrderID: "flaky"}))
	require.True(t, q.Enqueue(queue.OrderItem{Priority: queue.PriorityLow, OrderID: "patient"}))
	q.Start(context.Background())

	waitFor(t, func() bool { return q.Stats().Processed == 2 })
	stats := q.Stop()

	assert.EqualValues(t, 1, stats.Retried)
	mu.Lock()
	defer mu.Unlock()
	// The retried item was re-enqueued at HIGH, so it runs again before the
	// LOW item that was already waiting.
	assert.Equal(t, []string{"flaky", "flaky", "patient"}, order)
}

func TestStopReportsRemainingQueued(t *testing.T) {
	q := queue.New(queue.Config{Workers: 2}, func(ctx context.Context, item *queue.OrderItem) error {
		return nil
	})
	// Never started: everything enqueued stays queued.
	require.True(t, q.Enqueue(queue.OrderItem{OrderID: "a"}))
	require.True(t, q.Enqueue(queue.OrderItem{OrderID: "b"}))
	require.True(t, q.Enqueue(queue.OrderItem{OrderID: "c"}))

	stats := q.Stop()
	assert.Equal(t, 3, stats.Queued)

	// After Stop, new work is refused.
	assert.False(t, q.Enqueue(queue.OrderItem{OrderID: "d"}))
}

func TestStopWaitsForAllWorkers(t *testing.T) {
	release := make(chan struct{})
	q := queue.New(queue.Config{Workers: 3, BackoffUnit: time.Millisecond}, func(ctx context.Context, item *queue.OrderItem) error {
		<-release
		return nil
	})
	q.Start(context.Background())
	require.True(t, q.Enqueue(queue.OrderItem{OrderID: "slow"}))

	done := make(chan queue.Stats, 1)
	go func() { done <- q.Stop() }()

	select {
	case <-done:
		t.Fatal("Stop returned while a worker was still busy")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case stats := <-done:
		assert.EqualValues(t, 1, stats.Processed)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after workers drained")
	}
}
