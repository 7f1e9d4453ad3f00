package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

type scope struct {
	store *Store
	work  *state
	done  bool
}

func (sc *scope) Accounts() uow.AccountRepository { return accountRepo{sc} }
func (sc *scope) Ledger() uow.LedgerRepository { return ledgerRepo{sc} }
func (sc *scope) Notifications() uow.NotificationRepository { return notificationRepo{sc} }
func (sc *scope) PaymentEvents() uow.PaymentEventRepository { return paymentEventRepo{sc} }

func (sc *scope) Commit(_ context.Context) error {
	if sc.done {
		return domain.Persistence("transaction already closed", nil, false)
	}
	sc.done = true
	defer func() { <-sc.store.slot }()

	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	if n := len(sc.store.commitErrs); n > 0 {
		err := sc.store.commitErrs[0]
		sc.store.commitErrs = sc.store.commitErrs[1:]
		return domain.Persistence("could not commit transaction", err, false)
	}
	sc.store.committed = sc.work
	return nil
}

func (sc *scope) Rollback(_ context.Context) error {
	if sc.done {
		return nil
	}
	sc.done = true
	sc.work = nil
	<-sc.store.slot
	return nil
}

func (sc *scope) check() error {
	if sc.done {
		return domain.Persistence("transaction already closed", nil, false)
	}
	return nil
}

type accountRepo struct{ sc *scope }

func (r accountRepo) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	if err := r.sc.check(); err != nil {
		return nil, err
	}
	a, ok := r.sc.work.accounts[id]
	if !ok {
		return nil, uow.ErrNotFound
	}
	return &a, nil
}

// The write slot already serializes scopes, so "for update" reads are plain reads.
func (r accountRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r accountRepo) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Account, error) {
	if err := r.sc.check(); err != nil {
		return nil, err
	}
	id, ok := r.sc.work.byNumber[number]
	if !ok {
		return nil, uow.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r accountRepo) ExistsNumber(_ context.Context, number string) (bool, error) {
	if err := r.sc.check(); err != nil {
		return false, err
	}
	_, ok := r.sc.work.byNumber[number]
	return ok, nil
}

func (r accountRepo) Add(_ context.Context, a *domain.Account) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	if _, taken := r.sc.work.byNumber[a.AccountNumber]; taken {
		return fmt.Errorf("account number %s: %w", a.AccountNumber, uow.ErrConflict)
	}
	if a.Balance < 0 {
		return fmt.Errorf("negative balance for new account")
	}
	w := r.sc.work
	w.nextAccountID++
	a.ID = w.nextAccountID
	a.CreatedAt = r.sc.store.now()
	a.UpdatedAt = a.CreatedAt
	w.accounts[a.ID] = *a
	w.byNumber[a.AccountNumber] = a.ID
	return nil
}

func (r accountRepo) Update(_ context.Context, a *domain.Account) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	old, ok := r.sc.work.accounts[a.ID]
	if !ok {
		return uow.ErrNotFound
	}
	if a.Balance < 0 {
		return fmt.Errorf("update account %d: balance would be negative", a.ID)
	}
	// Account numbers are immutable once assigned.
	a.AccountNumber = old.AccountNumber
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = r.sc.store.now()
	r.sc.work.accounts[a.ID] = *a
	return nil
}

func (r accountRepo) Delete(_ context.Context, id int64) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	a, ok := r.sc.work.accounts[id]
	if !ok {
		return uow.ErrNotFound
	}
	delete(r.sc.work.accounts, id)
	delete(r.sc.work.byNumber, a.AccountNumber)
	return nil
}

type ledgerRepo struct{ sc *scope }

func (r ledgerRepo) GetByID(_ context.Context, id int64) (*domain.LedgerEntry, error) {
	if err := r.sc.check(); err != nil {
		return nil, err
	}
	for _, e := range r.sc.work.ledger {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, uow.ErrNotFound
}

func (r ledgerRepo) Add(_ context.Context, e *domain.LedgerEntry) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	if e.Amount <= 0 {
		return fmt.Errorf("ledger entry amount must be positive")
	}
	w := r.sc.work
	w.nextEntryID++
	e.ID = w.nextEntryID
	e.CreatedAt = r.sc.store.now()
	w.ledger = append(w.ledger, *e)
	return nil
}

func (r ledgerRepo) Query(_ context.Context, q uow.LedgerQuery) ([]domain.LedgerEntry, error) {
	if err := r.sc.check(); err != nil {
		return nil, err
	}
	var out []domain.LedgerEntry
	for _, e := range r.sc.work.ledger {
		if q.AccountID != 0 && e.SenderAccountID != q.AccountID && e.ReceiverAccountID != q.AccountID {
			continue
		}
		if !q.From.IsZero() && e.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.CreatedAt.After(q.To) {
			continue
		}
		out = append(out, e)
	}
	// Newest first, like the SQL store.
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

type notificationRepo struct{ sc *scope }

func (r notificationRepo) GetByID(_ context.Context, id int64) (*domain.Notification, error) {
	if err := r.sc.check(); err != nil {
		return nil, err
	}
	n, ok := r.sc.work.notifications[id]
	if !ok {
		return nil, uow.ErrNotFound
	}
	return &n, nil
}

func (r notificationRepo) Add(_ context.Context, n *domain.Notification) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	w := r.sc.work
	w.nextNotificationID++
	n.ID = w.nextNotificationID
	n.CreatedAt = r.sc.store.now()
	w.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) Update(_ context.Context, n *domain.Notification) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	if _, ok := r.sc.work.notifications[n.ID]; !ok {
		return uow.ErrNotFound
	}
	r.sc.work.notifications[n.ID] = *n
	return nil
}

func (r notificationRepo) Delete(_ context.Context, id int64) error {
	if err := r.sc.check(); err != nil {
		return err
	}
	if _, ok := r.sc.work.notifications[id]; !ok {
		return uow.ErrNotFound
	}
	delete(r.sc.work.notifications, id)
	return nil
}

func (r notificationRepo) Query(_ context.Context, q uow.NotificationQuery) ([]domain.Notification, error) {
	if err := r.sc.check(); err != nil {
		return nil, err
	}
	var out []domain.Notification
	for _, n := range r.sc.work.notifications {
		if q.UserID != 0 && n.UserID != q.UserID {
			continue
		}
		if q.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r notificationRepo) MarkAllRead(_ context.Context, userID int64) (int64, error) {
	if err := r.sc.check(); err != nil {
		return 0, err
	}
	var n int64
	for id, note := range r.sc.work.notifications {
		if note.UserID == userID && !note.IsRead {
			note.IsRead = true
			r.sc.work.notifications[id] = note
			n++
		}
	}
	return n, nil
}

type paymentEventRepo struct{ sc *scope }

func (r paymentEventRepo) Record(_ context.Context, e *domain.PaymentEvent) (bool, error) {
	if err := r.sc.check(); err != nil {
		return false, err
	}
	if _, seen := r.sc.work.events[e.EventID]; seen {
		return false, nil
	}
	e.ProcessedAt = r.sc.store.now()
	r.sc.work.events[e.EventID] = *e
	return true, nil
}
