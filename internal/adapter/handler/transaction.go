package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
)

type TransactionHandler struct {
	Engine   *ledger.Engine
	Accounts *ledger.Accounts
}

// TransferRequest carries a decimal amount, e.g. "250.00" or 250.
type TransferRequest struct {
	ReceiverAccountNumber string          `json:"receiver_account_number" validate:"max=32"`
	Amount                decimal.Decimal `json:"amount"`
	Description           string          `json:"description" validate:"max=255"`
}

type TransferResponse struct {
	EntryID            int64  `json:"entry_id"`
	SenderID           int64  `json:"sender_id"`
	SenderName         string `json:"sender_name"`
	SenderNewBalance   string `json:"sender_new_balance"`
	ReceiverID         int64  `json:"receiver_id"`
	ReceiverName       string `json:"receiver_name"`
	ReceiverNewBalance string `json:"receiver_new_balance"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
}

// Transfer API
func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	senderID, err := caller(c)
	if err != nil {
		return err
	}

	var req TransferRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	amount, err := domain.ToMinorUnits(req.Amount)
	if err != nil {
		msg := "amount must be greater than zero"
		if errors.Is(err, domain.ErrSubMinorAmount) {
			msg = "amount can have at most two decimal places"
		}
		return fail(c, domain.Wrap(domain.KindInvalidAmount, msg, err))
	}

	out, err := h.Engine.TransferMoney(c.UserContext(), senderID, req.ReceiverAccountNumber, amount, req.Description)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(domain.Ok(TransferResponse{
		EntryID:            out.EntryID,
		SenderID:           out.SenderID,
		SenderName:         out.SenderName,
		SenderNewBalance:   domain.FormatAmount(out.SenderNewBalance),
		ReceiverID:         out.ReceiverID,
		ReceiverName:       out.ReceiverName,
		ReceiverNewBalance: domain.FormatAmount(out.ReceiverNewBalance),
		Amount:             domain.FormatAmount(out.Amount),
		Currency:           string(out.Currency),
	}, out.Message))
}

type EntryResponse struct {
	ID          int64     `json:"id"`
	Direction   string    `json:"direction"`
	SenderID    int64     `json:"sender_account_id"`
	ReceiverID  int64     `json:"receiver_account_id"`
	Amount      string    `json:"amount"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetHistory lists the caller's ledger entries, newest first.
// Optional query params: from, to (RFC 3339) and limit.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	accountID, err := caller(c)
	if err != nil {
		return err
	}

	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return badRequest(c, "from must be an RFC 3339 timestamp")
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return badRequest(c, "to must be an RFC 3339 timestamp")
		}
	}

	entries, err := h.Accounts.History(c.UserContext(), accountID, from, to, c.QueryInt("limit", 0))
	if err != nil {
		return fail(c, err)
	}

	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		direction := "in"
		switch {
		case e.IsTopUp():
			direction = "topup"
		case e.SenderAccountID == accountID:
			direction = "out"
		}
		out = append(out, EntryResponse{
			ID:          e.ID,
			Direction:   direction,
			SenderID:    e.SenderAccountID,
			ReceiverID:  e.ReceiverAccountID,
			Amount:      domain.FormatAmount(e.Amount),
			Description: e.Description,
			Status:      string(e.Status),
			CreatedAt:   e.CreatedAt,
		})
	}
	return c.JSON(domain.Ok(out, ""))
}
