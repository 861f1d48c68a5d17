package services

import (
	"context"
	"fmt"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/store"
)

// ImportSettledOrderAction persists an order as paid from a settlement record
// confirmed through another channel. It never contacts the payment engine.
type ImportSettledOrderAction struct {
	store    store.OrderStore
	notifier Notifier
}

func NewImportSettledOrderAction(st store.OrderStore, notifier Notifier) *ImportSettledOrderAction {
	return &ImportSettledOrderAction{store: st, notifier: notifier}
}

func (a *ImportSettledOrderAction) Name() string { return "import_settled_order" }

func (a *ImportSettledOrderAction) Validate(ctx context.Context, state *ActionState) bool {
	if state == nil || state.OrderID == "" || state.Settlement == nil {
		return false
	}
	return state.Settlement.TransactionID != ""
}

func (a *ImportSettledOrderAction) Handle(ctx context.Context, state *ActionState, opts ActionOptions) (*ActionResult, error) {
	if state.Settlement == nil {
		return nil, fmt.Errorf("import settled order %s: no settlement record supplied", state.OrderID)
	}

	settlement := state.Settlement
	raw := map[string]any{
		"imported":      true,
		"imported_by":   state.Agent,
		"tx_id":         settlement.TransactionID,
		"confirmations": settlement.Confirmations,
	}
	for k, v := range settlement.Raw {
		raw[k] = v
	}

	updated, err := a.store.UpsertOrder(ctx, store.OrderUpdate{
		OrderID:         state.OrderID,
		Status:          store.Ptr(models.StatusPaid),
		TransactionID:   store.Ptr(settlement.TransactionID),
		TransactionHash: store.Ptr(settlement.TransactionHash),
		Confirmations:   store.Ptr(settlement.Confirmations),
		RawData:         raw,
	})
	if err != nil {
		return nil, fmt.Errorf("import settled order %s: %w", state.OrderID, err)
	}

	notifyPaid(a.notifier, updated)

	return &ActionResult{
		Success:         true,
		Status:          models.StatusPaid,
		Message:         "settled order imported",
		TransactionHash: settlement.TransactionHash,
		Raw:             raw,
	}, nil
}
