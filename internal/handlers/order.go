package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/forgeline/internal/middleware"
	"github.com/example/forgeline/internal/queue"
	"github.com/example/forgeline/internal/services"
	"github.com/example/forgeline/internal/store"
)

// OrderHandler exposes the order pipeline to operators: enqueueing, lookups,
// manual rechecks and settled imports.
type OrderHandler struct {
	store      store.OrderStore
	queue      *queue.Queue
	dispatcher *services.ActionDispatcher
	refreshAct services.Action
	importAct  services.Action
}

func NewOrderHandler(st store.OrderStore, q *queue.Queue, dispatcher *services.ActionDispatcher, refreshAct, importAct services.Action) *OrderHandler {
	return &OrderHandler{
		store:      st,
		queue:      q,
		dispatcher: dispatcher,
		refreshAct: refreshAct,
		importAct:  importAct,
	}
}

type createOrderRequest struct {
	OrderID       string            `json:"order_id"`
	CustomerEmail string            `json:"customer_email"`
	Amount        float64           `json:"amount"`
	Priority      string            `json:"priority"`
	Metadata      map[string]string `json:"metadata"`
}

// CreateOrder accepts an order and enqueues it for payment processing.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order_id is required")
	}
	if req.Amount <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}

	item := queue.OrderItem{
		Priority: parsePriority(req.Priority),
		OrderID:  req.OrderID,
		Contact:  req.CustomerEmail,
		Amount:   req.Amount,
		Metadata: req.Metadata,
	}
	if !h.queue.Enqueue(item) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "queue is shutting down")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"order_id": req.OrderID,
		"queued":   true,
	})
}

// GetOrder returns one order; paid orders include their fulfillment view.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.store.GetOrder(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "order lookup failed")
	}

	resp := fiber.Map{"order": order}
	if ticket := order.Fulfillment(); ticket != nil {
		resp["fulfillment"] = ticket
	}
	return c.JSON(resp)
}

// ListOrders returns all orders for a customer email, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	customer := strings.TrimSpace(c.Query("customer"))
	if customer == "" {
		return fiber.NewError(fiber.StatusBadRequest, "customer query parameter is required")
	}

	orders, err := h.store.OrdersByCustomer(c.Context(), customer)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "order lookup failed")
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// ListPending returns the current Pending set, oldest first.
func (h *OrderHandler) ListPending(c *fiber.Ctx) error {
	orders, err := h.store.PendingOrders(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "pending lookup failed")
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// RefreshOrder forces a provider re-check of a stuck order.
func (h *OrderHandler) RefreshOrder(c *fiber.Ctx) error {
	operator, _ := middleware.GetCurrentOperator(c)
	state := &services.ActionState{
		Agent:   operator,
		OrderID: c.Params("id"),
	}

	if !h.refreshAct.Validate(c.Context(), state) {
		return fiber.NewError(fiber.StatusConflict, "order is not in a recheckable state")
	}

	result, err := h.dispatcher.Run(c.Context(), h.refreshAct, state, nil)
	if err != nil {
		var provErr *services.PaymentProviderError
		if errors.As(err, &provErr) {
			return fiber.NewError(fiber.StatusBadGateway, provErr.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "refresh failed")
	}

	return c.JSON(result)
}

type importOrderRequest struct {
	TransactionID   string         `json:"tx_id"`
	TransactionHash string         `json:"tx_hash"`
	Confirmations   int            `json:"confirmations"`
	Raw             map[string]any `json:"raw"`
}

// ImportOrder records an order as paid from a settlement confirmed elsewhere.
func (h *OrderHandler) ImportOrder(c *fiber.Ctx) error {
	var req importOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	operator, _ := middleware.GetCurrentOperator(c)
	state := &services.ActionState{
		Agent:   operator,
		OrderID: c.Params("id"),
		Settlement: &services.SettlementRecord{
			TransactionID:   req.TransactionID,
			TransactionHash: req.TransactionHash,
			Confirmations:   req.Confirmations,
			Raw:             req.Raw,
		},
	}

	if !h.importAct.Validate(c.Context(), state) {
		return fiber.NewError(fiber.StatusBadRequest, "order id and settled transaction are required")
	}

	result, err := h.dispatcher.Run(c.Context(), h.importAct, state, nil)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "import failed")
	}

	return c.JSON(result)
}

func parsePriority(s string) queue.Priority {
	switch strings.ToLower(s) {
	case "high":
		return queue.PriorityHigh
	case "low":
		return queue.PriorityLow
	default:
		return queue.PriorityNormal
	}
}
