package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

const (
	eventCheckoutSessionCompleted = "checkout.session.completed"
	topUpDescription              = "Balance top-up"

	metadataAccountID = "user_id"
	metadataAmount    = "amount"
)

// Intake applies payment-processor webhooks to the ledger. Deliveries are
// at-least-once, so every applied event id is recorded in the same scope as
// the credit and a repeat is rejected before any balance changes.
type Intake struct {
	uow       uow.UnitOfWork
	opts      Options
	tolerance time.Duration
}

func NewIntake(u uow.UnitOfWork, opts Options) *Intake {
	return &Intake{uow: u, opts: opts.withDefaults(), tolerance: webhook.DefaultTolerance}
}

// ProcessPaymentEvent verifies and applies one webhook delivery. Events other
// than a paid checkout session are acknowledged without effect.
func (in *Intake) ProcessPaymentEvent(ctx context.Context, rawPayload []byte, signature, sharedSecret string) error {
	if sharedSecret == "" {
		return domain.NewError(domain.KindSignatureInvalid, "webhook secret is not configured")
	}
	if err := webhook.ValidatePayloadWithTolerance(rawPayload, signature, sharedSecret, in.tolerance); err != nil {
		return domain.Wrap(domain.KindSignatureInvalid, "webhook signature verification failed", err)
	}

	var event stripe.Event
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return domain.Wrap(domain.KindMalformedEventMetadata, "webhook body is not a valid event", err)
	}
	if event.Type != eventCheckoutSessionCompleted {
		in.opts.Logger.Debug("Payment event ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}
	if event.Data == nil {
		return domain.NewError(domain.KindMalformedEventMetadata, "event carries no data")
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.Wrap(domain.KindMalformedEventMetadata, "event data is not a checkout session", err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		in.opts.Logger.Info("Checkout completed without payment, ignored", "event_id", event.ID, "status", session.PaymentStatus)
		return nil
	}

	accountID, amount, err := parseTopUpMetadata(session.Metadata)
	if err != nil {
		return err
	}
	eventID := event.ID
	if eventID == "" {
		eventID = session.ID
	}
	if eventID == "" {
		return domain.NewError(domain.KindMalformedEventMetadata, "event has no identifier")
	}

	currency := domain.Currency(strings.ToUpper(string(session.Currency)))
	return in.credit(ctx, eventID, accountID, domain.NewMoney(amount, currency))
}

func (in *Intake) credit(ctx context.Context, eventID string, accountID int64, payment domain.Money) error {
	amount := payment.Amount
	var newBalance int64
	err := uow.Run(ctx, in.uow, func(ctx context.Context, s uow.Scope) error {
		fresh, err := s.PaymentEvents().Record(ctx, &domain.PaymentEvent{
			EventID:   eventID,
			AccountID: accountID,
			Amount:    amount,
		})
		if err != nil {
			return storeErr("failed to record payment event", err)
		}
		if !fresh {
			return domain.NewError(domain.KindDuplicateEvent, "payment event already processed")
		}

		account, err := s.Accounts().GetByIDForUpdate(ctx, accountID)
		if errors.Is(err, uow.ErrNotFound) {
			return domain.NewError(domain.KindAccountNotFound, "account not found")
		}
		if err != nil {
			return storeErr("failed to load account", err)
		}

		credited, err := domain.NewMoney(account.Balance, account.Currency).Add(payment)
		if err != nil {
			return domain.Wrap(domain.KindMalformedEventMetadata, "payment currency does not match the account", err)
		}
		account.Balance = credited.Amount
		if err := s.Accounts().Update(ctx, account); err != nil {
			return storeErr("failed to credit account", err)
		}

		if err := s.Ledger().Add(ctx, &domain.LedgerEntry{
			SenderAccountID:   accountID,
			ReceiverAccountID: accountID,
			Amount:            amount,
			Description:       topUpDescription,
			Status:            domain.EntrySuccess,
		}); err != nil {
			return storeErr("failed to append ledger entry", err)
		}

		newBalance = account.Balance
		return nil
	}, in.opts.runOptions()...)

	switch kind := domain.KindOf(err); {
	case err == nil:
	case kind == domain.KindDuplicateEvent:
		in.opts.Logger.Info("Duplicate payment event skipped", "event_id", eventID, "account_id", accountID)
		return err
	case kind == domain.KindAccountNotFound:
		in.opts.Logger.Warn("Payment event for unknown account", "event_id", eventID, "account_id", accountID)
		return err
	case kind == domain.KindMalformedEventMetadata:
		in.opts.Logger.Warn("Payment event rejected", "event_id", eventID, "account_id", accountID, "currency", payment.Currency, "error", err)
		return err
	default:
		in.opts.Logger.Error("Payment event processing failed", "event_id", eventID, "account_id", accountID, "error", err)
		return domain.Wrap(domain.KindIntakeProcessingFailed, "payment could not be applied", err)
	}

	in.opts.Logger.Info("Balance topped up", "event_id", eventID, "account_id", accountID, "amount", amount)

	if _, nested := uow.FromContext(ctx); !nested {
		publish(ctx, in.opts, domain.PushEvent{
			ID:               uuid.NewString(),
			Type:             domain.PushTopUp,
			UserID:           accountID,
			CounterpartyName: topUpDescription,
			Amount:           domain.FormatAmount(amount),
			NewBalance:       domain.FormatAmount(newBalance),
			Timestamp:        in.opts.Now(),
		})
	}
	return nil
}

func parseTopUpMetadata(md map[string]string) (int64, int64, error) {
	rawID, ok := md[metadataAccountID]
	if !ok {
		return 0, 0, domain.NewError(domain.KindMalformedEventMetadata, "metadata has no user_id")
	}
	rawAmount, ok := md[metadataAmount]
	if !ok {
		return 0, 0, domain.NewError(domain.KindMalformedEventMetadata, "metadata has no amount")
	}

	accountID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || accountID <= 0 {
		return 0, 0, domain.NewError(domain.KindMalformedEventMetadata, "metadata user_id is not a valid account id")
	}
	amount, err := domain.ParseAmount(strings.TrimSpace(rawAmount))
	if err != nil {
		return 0, 0, domain.Wrap(domain.KindMalformedEventMetadata, "metadata amount is not a valid amount", err)
	}
	return accountID, amount, nil
}
