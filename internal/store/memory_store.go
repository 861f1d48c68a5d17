package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/forgeline/internal/models"
)

// MemoryStore is an in-process OrderStore for tests and simulation-mode
// development. It keeps the same derived views as the Postgres store: orders
// by customer and the current Pending set.
type MemoryStore struct {
	mu         sync.Mutex
	orders     map[string]*models.Order
	byCustomer map[string][]string
	pending    map[string]struct{}
	events     []models.OrderEvent
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:     make(map[string]*models.Order),
		byCustomer: make(map[string][]string),
		pending:    make(map[string]struct{}),
	}
}

func (s *MemoryStore) UpsertOrder(ctx context.Context, upd OrderUpdate) (*models.Order, error) {
	if upd.OrderID == "" {
		return nil, errors.New("upsert: order id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	order, ok := s.orders[upd.OrderID]
	if !ok {
		order = &models.Order{
			BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now},
			OrderID:   upd.OrderID,
			Status:    models.StatusPending,
		}
		s.orders[upd.OrderID] = order
	}

	prevEmail := order.CustomerEmail
	applyUpdate(order, upd)
	order.UpdatedAt = now

	if order.CustomerEmail != "" && order.CustomerEmail != prevEmail {
		s.byCustomer[order.CustomerEmail] = append(s.byCustomer[order.CustomerEmail], order.OrderID)
	}

	// Keep the Pending set in step with status transitions.
	if order.Status == models.StatusPending {
		s.pending[order.OrderID] = struct{}{}
	} else {
		delete(s.pending, order.OrderID)
	}

	clone := *order
	return &clone, nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *MemoryStore) OrdersByCustomer(ctx context.Context, email string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byCustomer[email]
	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[id]; ok && o.CustomerEmail == email {
			orders = append(orders, *o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) PendingOrders(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]models.Order, 0, len(s.pending))
	for id := range s.pending {
		if o, ok := s.orders[id]; ok {
			orders = append(orders, *o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryStore) EventsSince(ctx context.Context, since time.Time, limit int) ([]models.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []models.OrderEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].CreatedAt.Before(since) {
			continue
		}
		events = append(events, s.events[i])
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (s *MemoryStore) CountEventsSince(ctx context.Context, kind string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, e := range s.events {
		if e.Kind == kind && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
