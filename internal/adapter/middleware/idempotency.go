package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// ResponseStore caches the first response produced for an idempotency key.
type ResponseStore interface {
	LookupResponse(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	SaveResponse(ctx context.Context, key string, status int, body []byte) error
}

// Idempotency replays the stored response when a client retries a request
// with the same Idempotency-Key. Keys must be UUIDs and are scoped to the
// authenticated account. Requests without a key pass through.
func Idempotency(store ResponseStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(HeaderIdempotencyKey)
		if raw == "" {
			return c.Next()
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Idempotency-Key must be a UUID"})
		}

		key := parsed.String()
		if id, ok := AccountID(c); ok {
			key = fmt.Sprintf("%d:%s", id, key)
		}

		status, body, found, err := store.LookupResponse(c.UserContext(), key)
		if err != nil {
			slog.Error("Idempotency lookup failed", "error", err, "key", key)
		}
		if found {
			slog.Info("Idempotency hit, returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		resStatus := c.Response().StatusCode()
		// Server faults are not cached so the client can retry them.
		if resStatus >= http.StatusInternalServerError {
			return nil
		}
		resBody := append([]byte(nil), c.Response().Body()...)

		if err := store.SaveResponse(c.UserContext(), key, resStatus, resBody); err != nil {
			slog.Error("Failed to save Idempotency Key", "error", err, "key", key)
		} else {
			slog.Debug("Idempotency Key Saved", "key", key)
		}
		return nil
	}
}
