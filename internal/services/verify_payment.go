package services

import (
	"context"
	"fmt"
	"log"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/store"
)

// VerifyPaymentAction re-reads a transaction's confirmation state and applies
// the resulting status transition to the order.
type VerifyPaymentAction struct {
	store    store.OrderStore
	payments PaymentEngine
	notifier Notifier
	hooks    SecurityHooks
}

func NewVerifyPaymentAction(st store.OrderStore, payments PaymentEngine, notifier Notifier, hooks SecurityHooks) *VerifyPaymentAction {
	return &VerifyPaymentAction{store: st, payments: payments, notifier: notifier, hooks: hooks}
}

func (a *VerifyPaymentAction) Name() string { return "verify_payment" }

// Validate answers whether a re-check makes sense right now: the order
// exists, carries a provider transaction handle, and is still in flight.
func (a *VerifyPaymentAction) Validate(ctx context.Context, state *ActionState) bool {
	return checkable(ctx, a.store, state)
}

func (a *VerifyPaymentAction) Handle(ctx context.Context, state *ActionState, opts ActionOptions) (*ActionResult, error) {
	order, err := a.store.GetOrder(ctx, state.OrderID)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	check, err := a.payments.CheckStatus(ctx, order.TransactionID)
	if err != nil {
		return nil, err
	}

	return applyStatusTransition(ctx, a.Name(), a.store, a.notifier, a.hooks, state, order, check)
}

// RefreshPaymentAction is the on-demand variant of verify: a human-triggered
// re-check of a stuck order that forces the provider to re-resolve state.
type RefreshPaymentAction struct {
	store    store.OrderStore
	payments PaymentEngine
	notifier Notifier
	hooks    SecurityHooks
}

func NewRefreshPaymentAction(st store.OrderStore, payments PaymentEngine, notifier Notifier, hooks SecurityHooks) *RefreshPaymentAction {
	return &RefreshPaymentAction{store: st, payments: payments, notifier: notifier, hooks: hooks}
}

func (a *RefreshPaymentAction) Name() string { return "refresh_payment" }

func (a *RefreshPaymentAction) Validate(ctx context.Context, state *ActionState) bool {
	return checkable(ctx, a.store, state)
}

func (a *RefreshPaymentAction) Handle(ctx context.Context, state *ActionState, opts ActionOptions) (*ActionResult, error) {
	order, err := a.store.GetOrder(ctx, state.OrderID)
	if err != nil {
		return nil, fmt.Errorf("refresh payment: %w", err)
	}

	check, err := a.payments.ForceRefresh(ctx, order.TransactionID, order.OrderID)
	if err != nil {
		return nil, err
	}

	return applyStatusTransition(ctx, a.Name(), a.store, a.notifier, a.hooks, state, order, check)
}

func checkable(ctx context.Context, st store.OrderStore, state *ActionState) bool {
	if state == nil || state.OrderID == "" {
		return false
	}
	order, err := st.GetOrder(ctx, state.OrderID)
	if err != nil {
		return false
	}
	if order.TransactionID == "" {
		return false
	}
	return order.Status == models.StatusPending || order.Status == models.StatusProcessing
}

// applyStatusTransition persists the transition a provider status read calls
// for and reports it as an ActionResult. Shared by verify and refresh.
func applyStatusTransition(ctx context.Context, actionName string, st store.OrderStore, notifier Notifier, hooks SecurityHooks, state *ActionState, order *models.Order, check *StatusResult) (*ActionResult, error) {
	raw := map[string]any{
		"tx_id":         check.TransactionID,
		"confirmations": check.Confirmations,
		"simulation":    check.SimulationMode,
	}
	if check.Refreshed {
		raw["refreshed"] = true
	}

	switch check.Status {
	case PayStatusConfirmed:
		updated, err := st.UpsertOrder(ctx, store.OrderUpdate{
			OrderID:         order.OrderID,
			Status:          store.Ptr(models.StatusPaid),
			TransactionHash: store.Ptr(check.TransactionHash),
			Confirmations:   store.Ptr(check.Confirmations),
			RawData: map[string]any{
				"tx_hash":       check.TransactionHash,
				"confirmations": check.Confirmations,
				"simulation":    check.SimulationMode,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("persist paid order %s: %w", order.OrderID, err)
		}

		hooks.reputation(state.Agent, true)
		notifyPaid(notifier, updated)

		raw["tx_hash"] = check.TransactionHash
		return &ActionResult{
			Success:         true,
			Status:          models.StatusPaid,
			Message:         fmt.Sprintf("payment confirmed with %d confirmations", check.Confirmations),
			TransactionHash: check.TransactionHash,
			Raw:             raw,
			SimulationMode:  check.SimulationMode,
		}, nil

	case PayStatusFailed, PayStatusExpired:
		status := models.StatusFailed
		if check.Status == PayStatusExpired {
			status = models.StatusExpired
		}
		if _, err := st.UpsertOrder(ctx, store.OrderUpdate{
			OrderID: order.OrderID,
			Status:  store.Ptr(status),
			RawData: map[string]any{"provider_status": check.Status},
		}); err != nil {
			return nil, fmt.Errorf("persist %s order %s: %w", status, order.OrderID, err)
		}

		event := &models.OrderEvent{
			Kind:       models.EventFailedTransaction,
			ActionName: actionName,
			Agent:      state.Agent,
			OrderID:    order.OrderID,
			Detail:     fmt.Sprintf("transaction %s reported %s", check.TransactionID, check.Status),
		}
		if err := st.AppendEvent(ctx, event); err != nil {
			log.Printf("[Actions] failed to record %s event for order %s: %v", check.Status, order.OrderID, err)
		}

		return &ActionResult{
			Success:        false,
			Status:         status,
			Message:        fmt.Sprintf("transaction %s", check.Status),
			Raw:            raw,
			SimulationMode: check.SimulationMode,
		}, nil

	default:
		// Still outstanding. The caller decides whether to keep polling.
		return &ActionResult{
			Success:        false,
			Status:         models.StatusPending,
			Message:        fmt.Sprintf("awaiting confirmation (%d so far)", check.Confirmations),
			Raw:            raw,
			SimulationMode: check.SimulationMode,
		}, nil
	}
}
