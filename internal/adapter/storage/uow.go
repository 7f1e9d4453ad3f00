package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

// SQLSTATE codes that mean "run the whole transaction again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// UnitOfWork opens pgx transactions. Isolation is READ COMMITTED; every
// balance read that precedes a write takes a row lock (SELECT ... FOR UPDATE),
// which is what prevents lost updates.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

func (u *UnitOfWork) Begin(ctx context.Context) (uow.Scope, error) {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, mapErr("begin transaction", err)
	}
	return &scope{tx: tx}, nil
}

type scope struct {
	tx pgx.Tx
}

func (s *scope) Accounts() uow.AccountRepository { return NewAccountRepository(s.tx) }
func (s *scope) Ledger() uow.LedgerRepository { return NewLedgerRepository(s.tx) }
func (s *scope) Notifications() uow.NotificationRepository { return NewNotificationRepository(s.tx) }
func (s *scope) PaymentEvents() uow.PaymentEventRepository { return &PaymentEventRepository{db: s.tx} }

func (s *scope) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return mapErr("commit transaction", err)
	}
	return nil
}

func (s *scope) Rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return mapErr("rollback transaction", err)
}

// mapErr turns driver errors into the store contract: missing rows become
// uow.ErrNotFound, unique violations uow.ErrConflict, and lock conflicts a
// retryable PersistenceFailure.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return uow.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return domain.Persistence(op+": concurrent update, try again", err, true)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, uow.ErrConflict)
		}
	}
	return domain.Persistence(op, err, false)
}
