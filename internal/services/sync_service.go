package services

import (
	"context"
	"log"
	"time"

	"github.com/example/forgeline/internal/queue"
	"github.com/example/forgeline/internal/store"
)

// OrderSource yields newly-created or stale orders for enqueueing.
type OrderSource interface {
	FetchNewOrders(ctx context.Context) ([]queue.OrderItem, error)
}

// SyncService is the daemon loop that periodically pulls orders from a source
// and feeds the queue. Escalation of permanently failed items lives here, not
// in the queue.
type SyncService struct {
	source   OrderSource
	queue    *queue.Queue
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewSyncService(source OrderSource, q *queue.Queue, interval time.Duration) *SyncService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SyncService{
		source:   source,
		queue:    q,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop in its own goroutine.
func (s *SyncService) Start(ctx context.Context) {
	go s.run(ctx)
	log.Printf("[Sync] started, interval %s", s.interval)
}

// Stop halts the loop and waits for it to exit.
func (s *SyncService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *SyncService) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		items, err := s.source.FetchNewOrders(ctx)
		if err != nil {
			log.Printf("[Sync] fetch failed: %v", err)
			continue
		}
		for i := range items {
			if !s.queue.Enqueue(items[i]) {
				log.Printf("[Sync] queue refused order %s, shutdown in progress", items[i].OrderID)
				return
			}
		}
		if len(items) > 0 {
			log.Printf("[Sync] enqueued %d orders", len(items))
		}
	}
}

// PendingOrderSource re-enqueues orders that have sat in Pending with no
// update for longer than staleAfter, so orders that outlived one poll window
// get another confirmation cycle.
type PendingOrderSource struct {
	store      store.OrderStore
	staleAfter time.Duration
}

func NewPendingOrderSource(st store.OrderStore, staleAfter time.Duration) *PendingOrderSource {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &PendingOrderSource{store: st, staleAfter: staleAfter}
}

func (s *PendingOrderSource) FetchNewOrders(ctx context.Context) ([]queue.OrderItem, error) {
	orders, err := s.store.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-s.staleAfter)
	var items []queue.OrderItem
	for _, o := range orders {
		if o.UpdatedAt.After(cutoff) {
			continue
		}
		items = append(items, queue.OrderItem{
			Priority: queue.PriorityNormal,
			OrderID:  o.OrderID,
			Contact:  o.CustomerEmail,
			Amount:   o.Amount,
			Metadata: map[string]string{"source": "pending-resync"},
		})
	}
	return items, nil
}
