package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/queue"
	"github.com/example/forgeline/internal/store"
)

// OrchestratorConfig tunes the per-order processing loop. Zero values fall
// back to production defaults.
type OrchestratorConfig struct {
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	Agent          string
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = time.Hour
	}
	if c.Agent == "" {
		c.Agent = "orchestrator"
	}
	return c
}

// OrderProcessor drives one dequeued order from payment request to a terminal
// status: request a payment channel, persist the Pending record, then poll the
// verify-payment action until the order settles or the soft timeout elapses.
type OrderProcessor struct {
	payments   PaymentEngine
	store      store.OrderStore
	dispatcher *ActionDispatcher
	verify     Action
	notifier   Notifier
	cfg        OrchestratorConfig
}

// NewOrderProcessor wires the processor. verify is normally the
// VerifyPaymentAction; tests may substitute their own.
func NewOrderProcessor(payments PaymentEngine, st store.OrderStore, dispatcher *ActionDispatcher, verify Action, notifier Notifier, cfg OrchestratorConfig) *OrderProcessor {
	return &OrderProcessor{
		payments:   payments,
		store:      st,
		dispatcher: dispatcher,
		verify:     verify,
		notifier:   notifier,
		cfg:        cfg.withDefaults(),
	}
}

// Process implements queue.Processor.
func (p *OrderProcessor) Process(ctx context.Context, item *queue.OrderItem) error {
	req, err := p.payments.RequestPayment(ctx, item.OrderID, item.Amount, item.Contact)
	if err != nil {
		var provErr *PaymentProviderError
		if errors.As(err, &provErr) {
			log.Printf("[Orchestrator] payment request for order %s failed: %v", item.OrderID, provErr)
			p.recordRequestFailure(ctx, item, provErr)
		}
		// A failed request is not resumable mid-flight; the queue's retry
		// policy re-runs the whole processor with a fresh request.
		return fmt.Errorf("request payment for order %s: %w", item.OrderID, err)
	}

	if _, err := p.store.UpsertOrder(ctx, store.OrderUpdate{
		OrderID:        item.OrderID,
		Status:         store.Ptr(models.StatusPending),
		CustomerEmail:  store.Ptr(item.Contact),
		Amount:         store.Ptr(item.Amount),
		PaymentRequest: store.Ptr(req.RequestURI),
		TransactionID:  store.Ptr(req.TransactionID),
		Network:        store.Ptr(req.Network),
		SimulationMode: store.Ptr(req.SimulationMode),
	}); err != nil {
		return fmt.Errorf("persist pending order %s: %w", item.OrderID, err)
	}

	final, err := p.pollUntilTerminal(ctx, item)
	if err != nil {
		return err
	}

	switch final {
	case models.StatusFailed, models.StatusExpired:
		// The verify action already notified on PAID; final failure and
		// expiry are reported here.
		if order, err := p.store.GetOrder(ctx, item.OrderID); err == nil {
			notifyFailed(p.notifier, order, fmt.Sprintf("order finished %s", final))
		}
	case models.StatusPending:
		// Soft timeout: not an error, a later sync cycle re-enqueues it.
		log.Printf("[Orchestrator] order %s still pending after %s, leaving for next cycle", item.OrderID, p.cfg.ConfirmTimeout)
	}
	return nil
}

func (p *OrderProcessor) pollUntilTerminal(ctx context.Context, item *queue.OrderItem) (string, error) {
	deadline := time.Now().Add(p.cfg.ConfirmTimeout)
	state := &ActionState{Agent: p.cfg.Agent, OrderID: item.OrderID}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			log.Printf("[Orchestrator] shutdown while polling order %s, leaving pending", item.OrderID)
			return models.StatusPending, nil
		case <-time.After(p.cfg.PollInterval):
		}

		order, err := p.store.GetOrder(ctx, item.OrderID)
		if err != nil {
			return "", fmt.Errorf("re-read order %s: %w", item.OrderID, err)
		}
		if models.IsTerminalStatus(order.Status) {
			// Another path (manual refresh, settled import) already
			// finished this order.
			return order.Status, nil
		}

		if !p.verify.Validate(ctx, state) {
			return order.Status, nil
		}

		result, err := p.dispatcher.Run(ctx, p.verify, state, nil)
		if err != nil {
			var provErr *PaymentProviderError
			if errors.As(err, &provErr) {
				// Already audited by the dispatcher; keep polling.
				log.Printf("[Orchestrator] provider error while polling order %s: %v", item.OrderID, provErr)
				continue
			}
			return "", err
		}

		if models.IsTerminalStatus(result.Status) {
			return result.Status, nil
		}
	}

	return models.StatusPending, nil
}

func (p *OrderProcessor) recordRequestFailure(ctx context.Context, item *queue.OrderItem, provErr *PaymentProviderError) {
	order, err := p.store.UpsertOrder(ctx, store.OrderUpdate{
		OrderID:       item.OrderID,
		Status:        store.Ptr(models.StatusFailed),
		CustomerEmail: store.Ptr(item.Contact),
		Amount:        store.Ptr(item.Amount),
		RawData: map[string]any{
			"request_error":  provErr.Message,
			"request_status": provErr.StatusCode,
		},
	})
	if err != nil {
		log.Printf("[Orchestrator] could not persist failed order %s: %v", item.OrderID, err)
		return
	}
	notifyFailed(p.notifier, order, fmt.Sprintf("payment request failed: %s", provErr.Message))
}
