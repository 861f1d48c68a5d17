package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	AppPort      string
	DatabaseURL  string
	JWTSecret    string
	TokenExpires time.Duration

	AdminUsername string
	AdminPassword string

	// Payment provider. Leaving URL or key empty selects simulation mode;
	// switching modes is configuration only, never a code change.
	PaymentAPIURL  string
	PaymentAPIKey  string
	PaymentNetwork string

	QueueWorkers   int
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
	SyncInterval   time.Duration

	TelegramBotToken  string
	TelegramAdminChat string
}

// Load reads environment variables and returns a populated Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:      getEnv("APP_PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", "2f71e9a40cc1b5339d86f2a5cf1d5cf8c0a45c6da82e9b0d41a647e2a3a9a1c4"),
		TokenExpires: getEnvDuration("JWT_TTL_HOURS", 24) * time.Hour,

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		PaymentAPIURL:  getEnv("PAYMENT_API_URL", ""),
		PaymentAPIKey:  getEnv("PAYMENT_API_KEY", ""),
		PaymentNetwork: getEnv("PAYMENT_NETWORK", "simnet"),

		QueueWorkers:   getEnvInt("QUEUE_WORKERS", 3),
		PollInterval:   getEnvDuration("PAYMENT_POLL_INTERVAL_SECONDS", 10) * time.Second,
		ConfirmTimeout: getEnvDuration("PAYMENT_CONFIRM_TIMEOUT_SECONDS", 3600) * time.Second,
		SyncInterval:   getEnvDuration("ORDER_SYNC_INTERVAL_SECONDS", 60) * time.Second,

		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChat: getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),
	}

	if cfg.AppPort == "" {
		log.Fatal("APP_PORT must be set")
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(fallback)
}
