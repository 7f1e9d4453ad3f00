package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
	"github.com/ibrahimkeyboad/digibank/internal/core/security"
)

// KeyStore persists hashed API keys.
type KeyStore interface {
	SaveAPIKey(ctx context.Context, accountID int64, keyHash string, keyPrefix string) error
}

type AccountHandler struct {
	Accounts *ledger.Accounts
	Keys     KeyStore
}

// CreateAccountRequest defines what the user sends us
type CreateAccountRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Currency  string `json:"currency" validate:"omitempty,oneof=AZN USD"`
}

// AccountResponse shows the number in display form; it is never parsed back.
type AccountResponse struct {
	ID            int64  `json:"id"`
	AccountNumber string `json:"account_number"`
	Name          string `json:"name"`
	Balance       string `json:"balance"`
	Currency      string `json:"currency"`
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID,
		AccountNumber: domain.Display(a.AccountNumber),
		Name:          a.DisplayName(),
		Balance:       domain.FormatAmount(a.Balance),
		Currency:      string(a.Currency),
	}
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := bind(c, &req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return fail(c, err)
	}

	account, err := h.Accounts.Open(c.UserContext(), ledger.OpenAccountRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Currency:  domain.Currency(req.Currency),
	})
	if err != nil {
		return fail(c, err)
	}

	return c.Status(http.StatusCreated).JSON(domain.Ok(toAccountResponse(account), "Account created"))
}

func (h *AccountHandler) GenerateKey(c *fiber.Ctx) error {
	accountID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || accountID <= 0 {
		return badRequest(c, "Invalid Account ID format")
	}

	if _, err := h.Accounts.Get(c.UserContext(), accountID); err != nil {
		return fail(c, err)
	}

	realKey, keyHash, err := security.GenerateAPIKey()
	if err != nil {
		slog.Error("Crypto error generating key", "error", err)
		return fail(c, err)
	}

	if err := h.Keys.SaveAPIKey(c.UserContext(), accountID, keyHash, security.KeyPrefix); err != nil {
		slog.Error("Failed to save API key", "error", err, "account_id", accountID)
		return fail(c, err)
	}

	slog.Info("API Key Generated", "account_id", accountID)

	// Shown once; only the hash is stored.
	return c.Status(http.StatusCreated).JSON(domain.Ok(fiber.Map{
		"api_key": realKey,
		"warning": "Save this now! We won't show it again.",
	}, "API key created"))
}

func (h *AccountHandler) Me(c *fiber.Ctx) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	account, err := h.Accounts.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(domain.Ok(toAccountResponse(account), ""))
}
