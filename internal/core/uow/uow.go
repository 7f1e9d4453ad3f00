// Package uow defines the unit-of-work boundary every ledger operation runs
// in, and the repositories reachable from inside a scope.
package uow

import (
	"context"
	"errors"
	"time"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// Repository is the generic access every mutable entity gets.
type Repository[T any] interface {
	GetByID(ctx context.Context, id int64) (*T, error)
	Add(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id int64) error
}

type AccountRepository interface {
	Repository[domain.Account]
	// GetByIDForUpdate loads the account and locks it until the scope ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Account, error)
	// FindByNumberForUpdate looks up a canonical account number and locks the row.
	FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error)
	ExistsNumber(ctx context.Context, number string) (bool, error)
}

// LedgerQuery filters ledger entries touching AccountID. Zero values mean
// "no bound".
type LedgerQuery struct {
	AccountID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// LedgerRepository is append-only: entries are never updated or deleted.
type LedgerRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	Add(ctx context.Context, entry *domain.LedgerEntry) error
	Query(ctx context.Context, q LedgerQuery) ([]domain.LedgerEntry, error)
}

type NotificationQuery struct {
	UserID     int64
	UnreadOnly bool
	Limit      int
}

type NotificationRepository interface {
	Repository[domain.Notification]
	Query(ctx context.Context, q NotificationQuery) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

type PaymentEventRepository interface {
	// Record stores the event and reports false when the event id was
	// already recorded.
	Record(ctx context.Context, event *domain.PaymentEvent) (bool, error)
}

// Scope is one atomic unit of work. Everything written through its
// repositories becomes visible on Commit or disappears on Rollback.
// Rollback after Commit is a no-op, so callers can always defer it.
type Scope interface {
	Accounts() AccountRepository
	Ledger() LedgerRepository
	Notifications() NotificationRepository
	PaymentEvents() PaymentEventRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWork opens scopes.
type UnitOfWork interface {
	Begin(ctx context.Context) (Scope, error)
}

type scopeKey struct{}

// WithScope returns a context carrying s, so nested Run calls join it.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the scope carried by ctx, if any.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
