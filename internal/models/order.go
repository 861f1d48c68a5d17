package models

import (
	"gorm.io/datatypes"
)

// Order status lifecycle. Pending and Processing may still move; PAID,
// Failed and Expired are terminal.
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusPaid       = "PAID"
	StatusSuccess    = "Success" // settlement provider's alias for PAID
	StatusFailed     = "Failed"
	StatusExpired    = "Expired"
)

// IsPaidStatus reports whether the status counts as paid.
func IsPaidStatus(status string) bool {
	return status == StatusPaid || status == StatusSuccess
}

// IsTerminalStatus reports whether no further automatic transition applies.
func IsTerminalStatus(status string) bool {
	return IsPaidStatus(status) || status == StatusFailed || status == StatusExpired
}

// Order is the persisted record of one customer transaction.
type Order struct {
	BaseModel
	OrderID         string            `gorm:"uniqueIndex" json:"order_id"`
	Status          string            `gorm:"index" json:"status"`
	CustomerID      string            `json:"customer_id"`
	CustomerEmail   string            `gorm:"index" json:"customer_email"`
	Amount          float64           `json:"amount"`
	PaymentRequest  string            `json:"payment_request"`
	TransactionID   string            `gorm:"index" json:"transaction_id"`
	TransactionHash string            `json:"transaction_hash"`
	Confirmations   int               `json:"confirmations"`
	Network         string            `json:"network"`
	SimulationMode  bool              `json:"simulation_mode"`
	RawData         datatypes.JSONMap `gorm:"type:jsonb" json:"raw_data"`
}

// FulfillmentTicket is the delivery-unlock view of an order. It can only be
// built from a paid order, so shipping code cannot be handed an unpaid one.
type FulfillmentTicket struct {
	OrderID         string  `json:"order_id"`
	CustomerEmail   string  `json:"customer_email"`
	Amount          float64 `json:"amount"`
	TransactionHash string  `json:"transaction_hash"`
}

// Fulfillment returns the delivery view for a paid order, or nil when the
// order has not reached a paid status.
func (o *Order) Fulfillment() *FulfillmentTicket {
	if !IsPaidStatus(o.Status) {
		return nil
	}
	return &FulfillmentTicket{
		OrderID:         o.OrderID,
		CustomerEmail:   o.CustomerEmail,
		Amount:          o.Amount,
		TransactionHash: o.TransactionHash,
	}
}
