package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/forgeline/internal/models"
)

// GormStore implements OrderStore on top of Postgres via GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized gorm.DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// UpsertOrder creates or updates one order inside a row-locked transaction so
// concurrent upserts to the same order id cannot lose updates.
func (s *GormStore) UpsertOrder(ctx context.Context, upd OrderUpdate) (*models.Order, error) {
	if upd.OrderID == "" {
		return nil, errors.New("upsert: order id is required")
	}

	var result models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", upd.OrderID).
			First(&order).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			order = models.Order{OrderID: upd.OrderID, Status: models.StatusPending}
			applyUpdate(&order, upd)
			if err := tx.Create(&order).Error; err != nil {
				return fmt.Errorf("create order %s: %w", upd.OrderID, err)
			}
		case err != nil:
			return err
		default:
			applyUpdate(&order, upd)
			if err := tx.Save(&order).Error; err != nil {
				return fmt.Errorf("update order %s: %w", upd.OrderID, err)
			}
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *GormStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) OrdersByCustomer(ctx context.Context, email string) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) PendingOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *GormStore) EventsSince(ctx context.Context, since time.Time, limit int) ([]models.OrderEvent, error) {
	q := s.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []models.OrderEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (s *GormStore) CountEventsSince(ctx context.Context, kind string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.OrderEvent{}).
		Where("kind = ? AND created_at >= ?", kind, since).
		Count(&count).Error
	return count, err
}

// applyUpdate copies the supplied fields onto the record, leaving nil fields
// untouched. RawData keys are merged individually.
func applyUpdate(order *models.Order, upd OrderUpdate) {
	if upd.Status != nil {
		order.Status = *upd.Status
	}
	if upd.CustomerID != nil {
		order.CustomerID = *upd.CustomerID
	}
	if upd.CustomerEmail != nil {
		order.CustomerEmail = *upd.CustomerEmail
	}
	if upd.Amount != nil {
		order.Amount = *upd.Amount
	}
	if upd.PaymentRequest != nil {
		order.PaymentRequest = *upd.PaymentRequest
	}
	if upd.TransactionID != nil {
		order.TransactionID = *upd.TransactionID
	}
	if upd.TransactionHash != nil {
		order.TransactionHash = *upd.TransactionHash
	}
	if upd.Confirmations != nil {
		order.Confirmations = *upd.Confirmations
	}
	if upd.Network != nil {
		order.Network = *upd.Network
	}
	if upd.SimulationMode != nil {
		order.SimulationMode = *upd.SimulationMode
	}
	if len(upd.RawData) > 0 {
		if order.RawData == nil {
			order.RawData = map[string]any{}
		}
		for k, v := range upd.RawData {
			order.RawData[k] = v
		}
	}
}
