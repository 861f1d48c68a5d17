package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/forgeline/internal/models"
	"github.com/example/forgeline/internal/store"
)

// EventHandler serves the audit log to the security-monitoring side.
type EventHandler struct {
	store store.OrderStore
}

func NewEventHandler(st store.OrderStore) *EventHandler {
	return &EventHandler{store: st}
}

// ListEvents returns audit records from the last N minutes (default 60).
func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	since := time.Now().Add(-windowMinutes(c))
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	events, err := h.store.EventsSince(c.Context(), since, limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "event lookup failed")
	}
	return c.JSON(fiber.Map{"events": events})
}

// CountEvents returns the windowed count for one event kind.
func (h *EventHandler) CountEvents(c *fiber.Ctx) error {
	kind := c.Query("kind", models.EventActionError)
	since := time.Now().Add(-windowMinutes(c))

	count, err := h.store.CountEventsSince(c.Context(), kind, since)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "event count failed")
	}
	return c.JSON(fiber.Map{"kind": kind, "count": count})
}

func windowMinutes(c *fiber.Ctx) time.Duration {
	minutes, err := strconv.Atoi(c.Query("minutes", "60"))
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}
