package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

// maxNumberAttempts bounds the generate-and-check loop for new numbers.
const maxNumberAttempts = 10

type OpenAccountRequest struct {
	FirstName string
	LastName  string
	Currency  domain.Currency
}

// Accounts opens accounts and serves read-side queries over them.
type Accounts struct {
	uow      uow.UnitOfWork
	opts     Options
	numbers  *domain.AccountNumberGenerator
	currency domain.Currency
}

func NewAccounts(u uow.UnitOfWork, gen *domain.AccountNumberGenerator, currency domain.Currency, opts Options) *Accounts {
	if gen == nil {
		gen = domain.NewAccountNumberGenerator()
	}
	if currency == "" {
		currency = domain.AZN
	}
	return &Accounts{uow: u, opts: opts.withDefaults(), numbers: gen, currency: currency}
}

// Open creates an account with a zero balance and a fresh unique number.
// A candidate is regenerated while the store reports it taken, either by the
// existence check or by a unique violation on insert.
func (a *Accounts) Open(ctx context.Context, req OpenAccountRequest) (*domain.Account, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "first and last name are required")
	}
	if req.Currency == "" {
		req.Currency = a.currency
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := a.numbers.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate account number: %w", err)
		}

		var created domain.Account
		err = uow.Run(ctx, a.uow, func(ctx context.Context, s uow.Scope) error {
			taken, err := s.Accounts().ExistsNumber(ctx, number)
			if err != nil {
				return storeErr("failed to check account number", err)
			}
			if taken {
				return uow.ErrConflict
			}
			created = domain.Account{
				AccountNumber: number,
				FirstName:     req.FirstName,
				LastName:      req.LastName,
				Currency:      req.Currency,
			}
			return s.Accounts().Add(ctx, &created)
		}, a.opts.runOptions()...)

		if errors.Is(err, uow.ErrConflict) {
			a.opts.Logger.Debug("Account number collision, regenerating", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, storeErr("failed to create account", err)
		}

		a.opts.Logger.Info("Account opened", "account_id", created.ID, "account_number", domain.Display(created.AccountNumber))
		return &created, nil
	}
	return nil, domain.Persistence("could not allocate a unique account number", uow.ErrConflict, true)
}

func (a *Accounts) Get(ctx context.Context, id int64) (*domain.Account, error) {
	var acc *domain.Account
	err := uow.Run(ctx, a.uow, func(ctx context.Context, s uow.Scope) error {
		var err error
		acc, err = s.Accounts().GetByID(ctx, id)
		if errors.Is(err, uow.ErrNotFound) {
			return domain.NewError(domain.KindAccountNotFound, "account not found")
		}
		return err
	})
	if err != nil {
		return nil, storeErr("failed to load account", err)
	}
	return acc, nil
}

const defaultHistoryLimit = 50

// History lists ledger entries touching accountID, newest first, optionally
// bounded by [from, to].
func (a *Accounts) History(ctx context.Context, accountID int64, from, to time.Time, limit int) ([]domain.LedgerEntry, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, domain.NewError(domain.KindInvalidRequest, "end date is before start date")
	}
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}

	var entries []domain.LedgerEntry
	err := uow.Run(ctx, a.uow, func(ctx context.Context, s uow.Scope) error {
		var err error
		entries, err = s.Ledger().Query(ctx, uow.LedgerQuery{AccountID: accountID, From: from, To: to, Limit: limit})
		return err
	})
	if err != nil {
		return nil, storeErr("failed to load history", err)
	}
	return entries, nil
}
