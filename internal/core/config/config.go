package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string

	WebhookURL    string
	WebhookSecret string

	StripeWebhookSecret string

	Currency    string
	TxRetries   int
	LockTimeout time.Duration

	NotifyWorkers     int
	NotifyQueueSize   int
	NotifyMaxAttempts int
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() *Config {
	// Production injects real env vars; a missing .env is fine.
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	return &Config{
		Port:        getEnv("PORT", "3000"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		Currency:    getEnv("CURRENCY", "AZN"),
		TxRetries:   getEnvInt("LEDGER_TX_RETRIES", 3),
		LockTimeout: getEnvDuration("LOCK_TIMEOUT", 5*time.Second),

		NotifyWorkers:     getEnvInt("NOTIFY_WORKERS", 2),
		NotifyQueueSize:   getEnvInt("NOTIFY_QUEUE_SIZE", 1024),
		NotifyMaxAttempts: getEnvInt("NOTIFY_MAX_ATTEMPTS", 5),
	}
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer in env, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration in env, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}
