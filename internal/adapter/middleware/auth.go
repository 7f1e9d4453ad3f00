package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/digibank/internal/core/security"
)

// LocalAccountID is the fiber.Ctx local holding the authenticated account id.
const LocalAccountID = "account_id"

// KeyResolver maps a hashed API key to the account that owns it.
type KeyResolver interface {
	ResolveAPIKey(ctx context.Context, keyHash string) (int64, error)
}

// Protected authenticates "Authorization: Bearer <key>" and stores the
// caller's account id for the handlers.
func Protected(keys KeyResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Missing API Key"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Invalid Header Format"})
		}

		accountID, err := keys.ResolveAPIKey(c.UserContext(), security.HashKey(parts[1]))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Invalid API Key"})
		}

		c.Locals(LocalAccountID, accountID)
		return c.Next()
	}
}

// AccountID returns the id stored by Protected.
func AccountID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(LocalAccountID).(int64)
	return id, ok
}
