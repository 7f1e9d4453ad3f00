package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/ibrahimkeyboad/digibank/internal/adapter/handler"
	"github.com/ibrahimkeyboad/digibank/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/digibank/internal/adapter/storage"
	"github.com/ibrahimkeyboad/digibank/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/digibank/internal/core/config"
	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
	"github.com/ibrahimkeyboad/digibank/internal/core/notifications"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
	"github.com/ibrahimkeyboad/digibank/internal/core/worker"
)

// keyStore is what the HTTP layer needs besides the ledger itself.
type keyStore interface {
	handler.KeyStore
	middleware.KeyResolver
	middleware.ResponseStore
}

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 3. Store: Postgres when configured, in-memory otherwise
	var (
		unit    uow.UnitOfWork
		keys    keyStore
		cleanup = func() {}
	)
	if cfg.DatabaseURL != "" {
		if err := storage.Migrate(cfg.DatabaseURL); err != nil {
			slog.Error("Database migration failed", "error", err)
			os.Exit(1)
		}
		dbPool, err := storage.ConnectDB(ctx, cfg.DatabaseURL, cfg.LockTimeout)
		if err != nil {
			slog.Error("Database connection failed", "error", err)
			os.Exit(1)
		}
		unit = storage.NewUnitOfWork(dbPool)
		keys = storage.NewKeyRepository(dbPool)
		cleanup = dbPool.Close
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store; data is lost on exit")
		store := memory.NewStore()
		unit = store
		keys = store
	}

	// 4. Notification channels, delivered by background workers
	var dispatchers []notifications.Dispatcher
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Pushes are best-effort; the ledger still starts.
			slog.Warn("Redis not reachable, pushes will be retried", "error", err)
		}
		dispatchers = append(dispatchers, notifications.NewRedisPublisher(redisClient))
	}
	if cfg.WebhookURL != "" {
		if cfg.WebhookSecret == "" {
			slog.Warn("WEBHOOK_SECRET is missing, push webhooks are signed with an empty key")
		}
		dispatchers = append(dispatchers, notifications.NewWebhookSender(cfg.WebhookURL, cfg.WebhookSecret, logger))
	}

	queue := worker.NewQueue(worker.Config{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}, logger, dispatchers...)
	queue.Start()

	// 5. Ledger services
	opts := ledger.Options{Publisher: queue, Logger: logger, Retries: cfg.TxRetries}
	engine := ledger.NewEngine(unit, opts)
	intake := ledger.NewIntake(unit, opts)
	accounts := ledger.NewAccounts(unit, nil, domain.Currency(cfg.Currency), opts)
	inbox := ledger.NewNotifications(unit, opts)

	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET is missing, payment webhooks will be rejected")
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())

	handler.Register(app, handler.Routes{
		Accounts:      &handler.AccountHandler{Accounts: accounts, Keys: keys},
		Transactions:  &handler.TransactionHandler{Engine: engine, Accounts: accounts},
		Notifications: &handler.NotificationHandler{Notifications: inbox},
		Payments:      &handler.PaymentHandler{Intake: intake, WebhookSecret: cfg.StripeWebhookSecret},
		Keys:          keys,
		Responses:     keys,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutting down server...")

	// Stop taking requests first, then drain pushes, then close stores.
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := queue.Close(drainCtx); err != nil {
		slog.Warn("Notification queue not fully drained", "error", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	cleanup()

	slog.Info("Server exited successfully")
}
