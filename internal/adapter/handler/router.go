package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/digibank/internal/adapter/middleware"
)

type Routes struct {
	Accounts      *AccountHandler
	Transactions  *TransactionHandler
	Notifications *NotificationHandler
	Payments      *PaymentHandler

	Keys      middleware.KeyResolver
	Responses middleware.ResponseStore
}

// Register mounts the API under /v1. Public routes come first: anything
// registered after the Protected middleware requires an API key.
func Register(app *fiber.App, r Routes) {
	api := app.Group("/v1")

	// Public
	api.Post("/accounts", r.Accounts.CreateAccount)
	api.Post("/accounts/:id/keys", r.Accounts.GenerateKey)
	api.Post("/payments/webhook", r.Payments.Webhook)

	// Protected
	private := api.Use(middleware.Protected(r.Keys))
	private.Get("/me", r.Accounts.Me)
	private.Post("/transfers", middleware.Idempotency(r.Responses), r.Transactions.Transfer)
	private.Get("/me/transactions", r.Transactions.GetHistory)
	private.Get("/notifications", r.Notifications.Unread)
	private.Post("/notifications/read-all", r.Notifications.MarkAllRead)
	private.Post("/notifications/:id/read", r.Notifications.MarkRead)
}
