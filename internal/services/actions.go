package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/store"
)

// ActionState carries the per-invocation inputs of an action. Every call gets
// its own value; there is no shared "current agent" anywhere.
type ActionState struct {
	Agent      string
	OrderID    string
	Settlement *SettlementRecord
}

// SettlementRecord describes a payment confirmed through a channel other than
// the payment engine, e.g. a manual reconciliation.
type SettlementRecord struct {
	TransactionID   string
	TransactionHash string
	Confirmations   int
	Raw             map[string]any
}

// ActionOptions are free-form per-call options.
type ActionOptions map[string]any

// ActionResult is the outcome of one action invocation. Values are never
// mutated after construction.
type ActionResult struct {
	Success         bool           `json:"success"`
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	TransactionHash string         `json:"transaction_hash,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
	SimulationMode  bool           `json:"simulation_mode"`
}

// Action is a named, auditable unit of work. Validate is a cheap precondition
// check and must never fail hard: implementations swallow internal errors and
// answer false. Handle does the work; its errors are recorded by the
// dispatcher before they reach the caller.
type Action interface {
	Name() string
	Validate(ctx context.Context, state *ActionState) bool
	Handle(ctx context.Context, state *ActionState, opts ActionOptions) (*ActionResult, error)
}

// SecurityHooks are the pluggable escalation points consumed by external
// monitoring. Nil funcs are skipped.
type SecurityHooks struct {
	// AuthErrorPattern fires when a provider call failed with 401/403,
	// feeding credential-rotation escalation.
	AuthErrorPattern func(agent, actionName string, err *PaymentProviderError)

	// ReputationSignal feeds the external reputation score. positive=false
	// on every action failure, positive=true on confirmed payments.
	ReputationSignal func(agent string, positive bool)
}

func (h SecurityHooks) authError(agent, action string, err *PaymentProviderError) {
	if h.AuthErrorPattern != nil {
		h.AuthErrorPattern(agent, action, err)
	}
}

func (h SecurityHooks) reputation(agent string, positive bool) {
	if h.ReputationSignal != nil {
		h.ReputationSignal(agent, positive)
	}
}

// ActionDispatcher runs actions and guarantees the failure bookkeeping: one
// audit record per failed Handle, the auth-error hook on 401/403, and a
// negative reputation signal. The error is then returned unchanged; the
// dispatcher records failures, it never hides them.
type ActionDispatcher struct {
	store store.OrderStore
	hooks SecurityHooks
}

// NewActionDispatcher builds a dispatcher over the given audit store.
func NewActionDispatcher(st store.OrderStore, hooks SecurityHooks) *ActionDispatcher {
	return &ActionDispatcher{store: st, hooks: hooks}
}

// Run executes the action's handler with failure bookkeeping.
func (d *ActionDispatcher) Run(ctx context.Context, action Action, state *ActionState, opts ActionOptions) (*ActionResult, error) {
	result, err := action.Handle(ctx, state, opts)
	if err == nil {
		return result, nil
	}

	event := &models.OrderEvent{
		Kind:       models.EventActionError,
		ActionName: action.Name(),
		Agent:      state.Agent,
		OrderID:    state.OrderID,
		ErrorType:  fmt.Sprintf("%T", err),
		Detail:     err.Error(),
	}

	var provErr *PaymentProviderError
	if errors.As(err, &provErr) {
		status := provErr.StatusCode
		event.ProviderStatus = &status
		event.ProviderPath = provErr.Endpoint
	}

	if appendErr := d.store.AppendEvent(ctx, event); appendErr != nil {
		// The original failure still propagates; losing the audit row is
		// all we can report here.
		log.Printf("[Actions] failed to record error event for %s: %v", action.Name(), appendErr)
	}

	if provErr != nil && provErr.IsAuthError() {
		d.hooks.authError(state.Agent, action.Name(), provErr)
	}
	d.hooks.reputation(state.Agent, false)

	return result, err
}

// Notifier is the best-effort notification contract. Implementations may
// fail; callers log and move on, a notification must never fail an order
// transition.
type Notifier interface {
	NotifyOrderPaid(order *models.Order) error
	NotifyOrderFailed(order *models.Order, detail string) error
}

func notifyPaid(n Notifier, order *models.Order) {
	if n == nil {
		return
	}
	if err := n.NotifyOrderPaid(order); err != nil {
		log.Printf("[Actions] paid notification for order %s failed: %v", order.OrderID, err)
	}
}

func notifyFailed(n Notifier, order *models.Order, detail string) {
	if n == nil {
		return
	}
	if err := n.NotifyOrderFailed(order, detail); err != nil {
		log.Printf("[Actions] failure notification for order %s failed: %v", order.OrderID, err)
	}
}
