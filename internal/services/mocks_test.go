package services_test

import (
	"context"
	"sync"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/services"
)

// statusStep is one scripted answer from the fake engine. The last step
// repeats once the script runs out.
type statusStep struct {
	res *services.StatusResult
	err error
}

// scriptedEngine is a PaymentEngine with canned responses.
type scriptedEngine struct {
	mu         sync.Mutex
	request    *services.PaymentRequest
	requestErr error
	script     []statusStep
	checks     int
	requests   int
}

func (e *scriptedEngine) RequestPayment(ctx context.Context, orderID string, amount float64, contact string) (*services.PaymentRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	if e.requestErr != nil {
		return nil, e.requestErr
	}
	if e.request != nil {
		return e.request, nil
	}
	return &services.PaymentRequest{
		RequestURI:     "settle://testnet/" + orderID,
		TransactionID:  "tx-" + orderID,
		Network:        "testnet",
		SimulationMode: true,
	}, nil
}

func (e *scriptedEngine) CheckStatus(ctx context.Context, txID string) (*services.StatusResult, error) {
	return e.next()
}

func (e *scriptedEngine) ForceRefresh(ctx context.Context, txID, orderID string) (*services.StatusResult, error) {
	res, err := e.next()
	if res != nil {
		clone := *res
		clone.Refreshed = true
		return &clone, err
	}
	return res, err
}

func (e *scriptedEngine) SimulationMode() bool { return true }

func (e *scriptedEngine) next() (*services.StatusResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks++
	if len(e.script) == 0 {
		return &services.StatusResult{Status: services.PayStatusPending, SimulationMode: true}, nil
	}
	step := e.script[0]
	if len(e.script) > 1 {
		e.script = e.script[1:]
	}
	return step.res, step.err
}

func (e *scriptedEngine) checkCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checks
}

// countingNotifier records notification fan-out.
type countingNotifier struct {
	mu     sync.Mutex
	paid   []string
	failed []string
}

func (n *countingNotifier) NotifyOrderPaid(order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = append(n.paid, order.OrderID)
	return nil
}

func (n *countingNotifier) NotifyOrderFailed(order *models.Order, detail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, order.OrderID)
	return nil
}

func (n *countingNotifier) paidCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paid)
}

func (n *countingNotifier) failedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failed)
}

// hookRecorder captures security hook invocations.
type hookRecorder struct {
	mu        sync.Mutex
	authErrs  int
	positives int
	negatives int
}

func (h *hookRecorder) hooks() services.SecurityHooks {
	return services.SecurityHooks{
		AuthErrorPattern: func(agent, action string, err *services.PaymentProviderError) {
			h.mu.Lock()
			h.authErrs++
			h.mu.Unlock()
		},
		ReputationSignal: func(agent string, positive bool) {
			h.mu.Lock()
			if positive {
				h.positives++
			} else {
				h.negatives++
			}
			h.mu.Unlock()
		},
	}
}
