package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

const maxDescriptionRunes = 255

// Engine executes peer-to-peer transfers.
type Engine struct {
	uow  uow.UnitOfWork
	opts Options
}

func NewEngine(u uow.UnitOfWork, opts Options) *Engine {
	return &Engine{uow: u, opts: opts.withDefaults()}
}

// TransferMoney moves amount (minor units) from senderID to the account
// holding receiverAccountNumber. Input is validated before any scope is
// opened; every later failure rolls the scope back and leaves balances,
// ledger and notifications untouched.
func (e *Engine) TransferMoney(ctx context.Context, senderID int64, receiverAccountNumber string, amount int64, description string) (*domain.TransferOutcome, error) {
	if amount <= 0 {
		return nil, domain.NewError(domain.KindInvalidAmount, "amount must be greater than zero")
	}
	if strings.TrimSpace(receiverAccountNumber) == "" {
		return nil, domain.NewError(domain.KindInvalidAccountNumber, "enter an account number")
	}
	receiverNumber, err := domain.Canonicalize(receiverAccountNumber)
	if err != nil {
		return nil, err
	}
	description = normalizeDescription(description)

	var out domain.TransferOutcome
	err = uow.Run(ctx, e.uow, func(ctx context.Context, s uow.Scope) error {
		sender, err := s.Accounts().GetByIDForUpdate(ctx, senderID)
		if errors.Is(err, uow.ErrNotFound) {
			return domain.NewError(domain.KindSenderNotFound, "sender not found")
		}
		if err != nil {
			return storeErr("failed to load sender", err)
		}

		if sender.AccountNumber == receiverNumber {
			return domain.NewError(domain.KindSelfTransferNotAllowed, "you cannot transfer money to yourself")
		}
		transfer := domain.NewMoney(amount, sender.Currency)
		debited, err := domain.NewMoney(sender.Balance, sender.Currency).Subtract(transfer)
		if err != nil {
			return domain.Wrap(domain.KindInsufficientFunds, "insufficient balance", err)
		}

		receiver, err := s.Accounts().FindByNumberForUpdate(ctx, receiverNumber)
		if errors.Is(err, uow.ErrNotFound) {
			return domain.NewError(domain.KindReceiverNotFound, "receiver account number not found")
		}
		if err != nil {
			return storeErr("failed to load receiver", err)
		}
		credited, err := domain.NewMoney(receiver.Balance, receiver.Currency).Add(transfer)
		if errors.Is(err, domain.ErrCurrencyMismatch) {
			return domain.Wrap(domain.KindInvalidRequest, "cross-currency transfers are not supported", err)
		}
		if err != nil {
			return err
		}

		sender.Balance = debited.Amount
		receiver.Balance = credited.Amount

		if err := s.Accounts().Update(ctx, sender); err != nil {
			return storeErr("failed to debit sender", err)
		}
		if err := s.Accounts().Update(ctx, receiver); err != nil {
			return storeErr("failed to credit receiver", err)
		}

		entry := &domain.LedgerEntry{
			SenderAccountID:   sender.ID,
			ReceiverAccountID: receiver.ID,
			Amount:            amount,
			Description:       description,
			Status:            domain.EntrySuccess,
		}
		if err := s.Ledger().Add(ctx, entry); err != nil {
			return storeErr("failed to append ledger entry", err)
		}

		money := domain.NewMoney(amount, sender.Currency).String()
		note := &domain.Notification{
			UserID:  receiver.ID,
			Message: fmt.Sprintf("%s sent you %s", sender.DisplayName(), money),
		}
		if err := s.Notifications().Add(ctx, note); err != nil {
			return storeErr("failed to store notification", err)
		}

		out = domain.TransferOutcome{
			EntryID:            entry.ID,
			SenderID:           sender.ID,
			SenderName:         sender.DisplayName(),
			SenderNewBalance:   sender.Balance,
			ReceiverID:         receiver.ID,
			ReceiverName:       receiver.DisplayName(),
			ReceiverNewBalance: receiver.Balance,
			Amount:             amount,
			Currency:           sender.Currency,
			Message:            fmt.Sprintf("Transfer completed. %s sent to %s", money, receiver.DisplayName()),
		}
		return nil
	}, e.opts.runOptions()...)
	if err != nil {
		e.opts.Logger.Info("Transfer rejected",
			"sender_id", senderID,
			"amount", amount,
			"kind", domain.KindOf(err),
			"error", err,
		)
		return nil, storeErr("transfer failed", err)
	}

	e.opts.Logger.Info("Transfer committed",
		"entry_id", out.EntryID,
		"sender_id", out.SenderID,
		"receiver_id", out.ReceiverID,
		"amount", amount,
	)

	// Outside the scope: a lost push never invalidates the transfer.
	if _, nested := uow.FromContext(ctx); !nested {
		publish(ctx, e.opts, transferEvents(out, e.opts)...)
	}
	return &out, nil
}

func transferEvents(out domain.TransferOutcome, o Options) []domain.PushEvent {
	now := o.Now()
	amount := domain.FormatAmount(out.Amount)
	return []domain.PushEvent{
		{
			ID:               uuid.NewString(),
			Type:             domain.PushReceived,
			UserID:           out.ReceiverID,
			CounterpartyName: out.SenderName,
			Amount:           amount,
			NewBalance:       domain.FormatAmount(out.ReceiverNewBalance),
			Timestamp:        now,
		},
		{
			ID:               uuid.NewString(),
			Type:             domain.PushSent,
			UserID:           out.SenderID,
			CounterpartyName: out.ReceiverName,
			Amount:           amount,
			NewBalance:       domain.FormatAmount(out.SenderNewBalance),
			Timestamp:        now,
		},
	}
}

func normalizeDescription(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxDescriptionRunes {
		s = string([]rune(s)[:maxDescriptionRunes])
	}
	return s
}
