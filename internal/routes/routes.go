package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/forgeline/internal/config"
	"github.com/example/forgeline/internal/handlers"
	"github.com/example/forgeline/internal/middleware"
	"github.com/example/forgeline/internal/queue"
	"github.com/example/forgeline/internal/services"
	"github.com/example/forgeline/internal/store"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, cfg *config.Config, st store.OrderStore, q *queue.Queue, dispatcher *services.ActionDispatcher, refreshAct, importAct services.Action) {
	authHandler := handlers.NewAuthHandler(cfg)
	orderHandler := handlers.NewOrderHandler(st, q, dispatcher, refreshAct, importAct)
	eventHandler := handlers.NewEventHandler(st)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "queue": q.Stats()})
	})

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)

	// Protected operator routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/pending", orderHandler.ListPending)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Post("/orders/:id/refresh", orderHandler.RefreshOrder)
	protected.Post("/orders/:id/import", orderHandler.ImportOrder)

	protected.Get("/events", eventHandler.ListEvents)
	protected.Get("/events/count", eventHandler.CountEvents)
}
