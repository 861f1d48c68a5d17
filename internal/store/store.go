// Package store defines the persistence contract the payment pipeline runs
// against, plus a Postgres/GORM implementation and an in-memory one used for
// tests and simulation-mode development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/forgeline/internal/models"
)

// ErrNotFound is returned by point lookups when no order matches.
var ErrNotFound = errors.New("order not found")

// OrderUpdate carries the fields of one upsert. Nil fields keep the stored
// value (COALESCE semantics); an update must never null out a field it did
// not supply.
type OrderUpdate struct {
	OrderID         string
	Status          *string
	CustomerID      *string
	CustomerEmail   *string
	Amount          *float64
	PaymentRequest  *string
	TransactionID   *string
	TransactionHash *string
	Confirmations   *int
	Network         *string
	SimulationMode  *bool
	RawData         map[string]any
}

// OrderStore is the persistence contract for orders and the audit log.
// Implementations serialize concurrent upserts to the same order id.
type OrderStore interface {
	// UpsertOrder creates or updates the order identified by upd.OrderID,
	// preserving any field upd leaves nil. RawData entries are merged key
	// by key, never replaced wholesale.
	UpsertOrder(ctx context.Context, upd OrderUpdate) (*models.Order, error)

	// GetOrder returns the order by its business id, or ErrNotFound.
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)

	// OrdersByCustomer returns all orders for a customer email, newest first.
	OrdersByCustomer(ctx context.Context, email string) ([]models.Order, error)

	// PendingOrders returns all orders currently in Pending status, oldest
	// first, for operational visibility and sync re-enqueue.
	PendingOrders(ctx context.Context) ([]models.Order, error)

	// AppendEvent adds one record to the append-only audit log.
	AppendEvent(ctx context.Context, event *models.OrderEvent) error

	// EventsSince lists audit records created at or after the cutoff,
	// newest first, capped at limit (0 means no cap).
	EventsSince(ctx context.Context, since time.Time, limit int) ([]models.OrderEvent, error)

	// CountEventsSince counts audit records of one kind in the window.
	CountEventsSince(ctx context.Context, kind string, since time.Time) (int64, error)
}

// Ptr returns a pointer to v, for building OrderUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}
