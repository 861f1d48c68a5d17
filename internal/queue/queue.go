// Package queue implements the order work queue: a priority heap drained by a
// fixed pool of workers, with bounded retry and sentinel-based shutdown.
package queue

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"time"
)

// Priority of a queued item. Lower values are dequeued first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// OrderItem is one unit of work. RetryCount is owned by the queue; callers
// must not set it.
type OrderItem struct {
	Priority   Priority
	OrderID    string
	Contact    string
	Amount     float64
	Metadata   map[string]string
	RetryCount int
	CreatedAt  time.Time

	sentinel bool
}

// Processor handles one dequeued item. A returned error triggers the queue's
// retry policy.
type Processor func(ctx context.Context, item *OrderItem) error

// Config tunes the worker pool. Zero values fall back to defaults.
type Config struct {
	Workers     int
	MaxRetries  int
	BackoffUnit time.Duration // wait is BackoffUnit << RetryCount
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	return c
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Retried   int64 `json:"retried"`
	Failed    int64 `json:"failed"`
	Queued    int   `json:"queued"`
}

// Queue is the priority queue plus its worker pool.
type Queue struct {
	cfg     Config
	process Processor

	mu       sync.Mutex
	cond     *sync.Cond
	items    itemHeap
	seq      uint64
	inflight map[string]struct{}
	stopping bool

	processed int64
	retried   int64
	failed    int64

	wg sync.WaitGroup
}

// New builds a queue around the given processor. Call Start to launch the
// workers.
func New(cfg Config, process Processor) *Queue {
	q := &Queue{
		cfg:      cfg.withDefaults(),
		process:  process,
		inflight: make(map[string]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the worker pool. The context is handed to every processor
// invocation.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	log.Printf("[Queue] started %d workers", q.cfg.Workers)
}

// Enqueue adds an item. Items enqueued after Stop has begun are rejected.
func (q *Queue) Enqueue(item OrderItem) bool {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopping && !item.sentinel {
		return false
	}
	q.push(&item)
	q.cond.Signal()
	return true
}

// Stop pushes one low-priority sentinel per worker, waits for every worker to
// observe its sentinel, and returns the final counters.
func (q *Queue) Stop() Stats {
	q.mu.Lock()
	q.stopping = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.push(&OrderItem{Priority: PriorityLow, sentinel: true})
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()

	stats := q.Stats()
	log.Printf("[Queue] stopped: processed=%d retried=%d failed=%d queued=%d",
		stats.Processed, stats.Retried, stats.Failed, stats.Queued)
	return stats
}

// Stats returns a point-in-time snapshot of the counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := 0
	for _, it := range q.items {
		if !it.item.sentinel {
			queued++
		}
	}
	return Stats{
		Processed: q.processed,
		Retried:   q.retried,
		Failed:    q.failed,
		Queued:    queued,
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		item := q.dequeue()
		if item.sentinel {
			return
		}

		// Per-order lease: if another worker already holds this order id,
		// push the item back and let that attempt finish first.
		q.mu.Lock()
		if _, busy := q.inflight[item.OrderID]; busy {
			q.push(item)
			q.mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			continue
		}
		q.inflight[item.OrderID] = struct{}{}
		q.mu.Unlock()

		err := q.process(ctx, item)

		q.mu.Lock()
		delete(q.inflight, item.OrderID)
		q.mu.Unlock()

		if err == nil {
			q.mu.Lock()
			q.processed++
			q.mu.Unlock()
			continue
		}

		q.retry(item, err, id)
	}
}

func (q *Queue) retry(item *OrderItem, err error, worker int) {
	if item.RetryCount >= q.cfg.MaxRetries {
		q.mu.Lock()
		q.failed++
		q.mu.Unlock()
		log.Printf("[Queue] worker %d: order %s permanently failed after %d attempts: %v",
			worker, item.OrderID, item.RetryCount+1, err)
		return
	}

	item.RetryCount++
	wait := q.cfg.BackoffUnit << item.RetryCount
	log.Printf("[Queue] worker %d: order %s failed (attempt %d), retrying in %s: %v",
		worker, item.OrderID, item.RetryCount, wait, err)
	time.Sleep(wait)

	// Failed items come back at the front of the line.
	item.Priority = PriorityHigh
	if !q.Enqueue(*item) {
		log.Printf("[Queue] worker %d: order %s not re-enqueued, shutdown in progress", worker, item.OrderID)
		return
	}

	q.mu.Lock()
	q.retried++
	q.mu.Unlock()
}

// dequeue blocks until an item (or a shutdown sentinel) is available.
func (q *Queue) dequeue() *OrderItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		q.cond.Wait()
	}
	return heap.Pop(&q.items).(*entry).item
}

func (q *Queue) push(item *OrderItem) {
	q.seq++
	heap.Push(&q.items, &entry{item: item, seq: q.seq})
}

// entry pairs an item with an insertion sequence so the heap has a stable
// total order. Callers may only rely on priority ordering.
type entry struct {
	item *OrderItem
	seq  uint64
}

type itemHeap []*entry

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority < h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
