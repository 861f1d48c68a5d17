package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/forgeline/internal/config"
	"github.com/example/forgeline/internal/database"
	"github.com/example/forgeline/internal/queue"
	"github.com/example/forgeline/internal/routes"
	"github.com/example/forgeline/internal/services"
	"github.com/example/forgeline/internal/store"
)

func main() {
	cfg := config.Load()

	var orderStore store.OrderStore
	if cfg.DatabaseURL != "" {
		orderStore = store.NewGormStore(database.Connect(cfg.DatabaseURL))
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		orderStore = store.NewMemoryStore()
	}

	payments := services.NewPaymentService(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentNetwork)
	if payments.SimulationMode() {
		log.Println("[Payments] running in simulation mode")
	}

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)

	hooks := services.SecurityHooks{
		AuthErrorPattern: func(agent, action string, err *services.PaymentProviderError) {
			log.Printf("[Security] auth error from %s in %s: %v", agent, action, err)
		},
	}

	dispatcher := services.NewActionDispatcher(orderStore, hooks)
	verify := services.NewVerifyPaymentAction(orderStore, payments, telegram, hooks)
	refresh := services.NewRefreshPaymentAction(orderStore, payments, telegram, hooks)
	importAct := services.NewImportSettledOrderAction(orderStore, telegram)

	processor := services.NewOrderProcessor(payments, orderStore, dispatcher, verify, telegram, services.OrchestratorConfig{
		PollInterval:   cfg.PollInterval,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.New(queue.Config{Workers: cfg.QueueWorkers}, processor.Process)
	q.Start(ctx)

	source := services.NewPendingOrderSource(orderStore, cfg.ConfirmTimeout)
	syncer := services.NewSyncService(source, q, cfg.SyncInterval)
	syncer.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName: "Forgeline Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, cfg, orderStore, q, dispatcher, refresh, importAct)

	go func() {
		log.Printf("Starting server on :%s", cfg.AppPort)
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Fatalf("fiber.Listen error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	syncer.Stop()
	cancel()
	stats := q.Stop()
	log.Printf("Final queue stats: processed=%d retried=%d failed=%d queued=%d",
		stats.Processed, stats.Retried, stats.Failed, stats.Queued)

	if err := app.Shutdown(); err != nil {
		log.Printf("fiber.Shutdown error: %v", err)
	}
}
