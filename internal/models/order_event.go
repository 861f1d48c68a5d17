package models

import (
	"gorm.io/datatypes"
)

// Event kinds recorded in the audit log.
const (
	EventActionError       = "action_error"
	EventFailedTransaction = "failed_transaction"
	EventAuthError         = "auth_error"
)

// OrderEvent is one append-only audit record. Action failures write exactly
// one of these before the error is returned to the caller; a downstream
// security-monitoring process consumes them.
type OrderEvent struct {
	BaseModel
	Kind           string            `gorm:"index" json:"kind"`
	ActionName     string            `gorm:"index" json:"action_name"`
	Agent          string            `json:"agent"`
	OrderID        string            `gorm:"index" json:"order_id"`
	ErrorType      string            `json:"error_type"`
	ProviderStatus *int              `json:"provider_status"`
	ProviderPath   string            `json:"provider_path"`
	Detail         string            `json:"detail"`
	Extra          datatypes.JSONMap `gorm:"type:jsonb" json:"extra"`
}
