package storage

import (
	"context"
	"fmt"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

// AccountRepository reads and writes account rows.
type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, account_number, first_name, last_name, balance, currency, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var acc domain.Account
	var currency string
	err := row.Scan(
		&acc.ID, &acc.AccountNumber, &acc.FirstName, &acc.LastName,
		&acc.Balance, &currency, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acc.Currency = domain.Currency(currency)
	return &acc, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("get account", err)
	}
	return acc, nil
}

func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, mapErr("lock account", err)
	}
	return acc, nil
}

func (r *AccountRepository) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1 FOR UPDATE`, number))
	if err != nil {
		return nil, mapErr("lock account by number", err)
	}
	return acc, nil
}

func (r *AccountRepository) ExistsNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, mapErr("check account number", err)
	}
	return exists, nil
}

func (r *AccountRepository) Add(ctx context.Context, acc *domain.Account) error {
	query := `
		INSERT INTO accounts (account_number, first_name, last_name, balance, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		acc.AccountNumber, acc.FirstName, acc.LastName, acc.Balance, string(acc.Currency),
	).Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return mapErr("failed to create account", err)
	}
	return nil
}

// Update writes mutable fields. The account number is never rewritten.
func (r *AccountRepository) Update(ctx context.Context, acc *domain.Account) error {
	query := `
		UPDATE accounts
		SET first_name = $2, last_name = $3, balance = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, acc.ID, acc.FirstName, acc.LastName, acc.Balance).Scan(&acc.UpdatedAt)
	if err != nil {
		return mapErr(fmt.Sprintf("update account %d", acc.ID), err)
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete account", err)
	}
	if tag.RowsAffected() == 0 {
		return uow.ErrNotFound
	}
	return nil
}
