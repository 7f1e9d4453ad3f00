// Package memory is an in-process implementation of the ledger store. A
// scope holds the store's only write slot for its whole lifetime, so
// concurrent operations are fully serialized.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

type state struct {
	accounts      map[int64]domain.Account
	byNumber      map[string]int64
	ledger        []domain.LedgerEntry
	notifications map[int64]domain.Notification
	events        map[string]domain.PaymentEvent

	nextAccountID      int64
	nextEntryID        int64
	nextNotificationID int64
}

func newState() *state {
	return &state{
		accounts:      make(map[int64]domain.Account),
		byNumber:      make(map[string]int64),
		notifications: make(map[int64]domain.Notification),
		events:        make(map[string]domain.PaymentEvent),
	}
}

func (st *state) clone() *state {
	cp := &state{
		accounts:           make(map[int64]domain.Account, len(st.accounts)),
		byNumber:           make(map[string]int64, len(st.byNumber)),
		ledger:             append([]domain.LedgerEntry(nil), st.ledger...),
		notifications:      make(map[int64]domain.Notification, len(st.notifications)),
		events:             make(map[string]domain.PaymentEvent, len(st.events)),
		nextAccountID:      st.nextAccountID,
		nextEntryID:        st.nextEntryID,
		nextNotificationID: st.nextNotificationID,
	}
	for k, v := range st.accounts {
		cp.accounts[k] = v
	}
	for k, v := range st.byNumber {
		cp.byNumber[k] = v
	}
	for k, v := range st.notifications {
		cp.notifications[k] = v
	}
	for k, v := range st.events {
		cp.events[k] = v
	}
	return cp
}

type idempotentResponse struct {
	status int
	body   []byte
}

// Store keeps committed state plus the side tables used by the HTTP layer.
type Store struct {
	slot chan struct{}

	mu          sync.RWMutex
	committed   *state
	apiKeys     map[string]int64
	idempotency map[string]idempotentResponse
	commitErrs  []error

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		slot:        make(chan struct{}, 1),
		committed:   newState(),
		apiKeys:     make(map[string]int64),
		idempotency: make(map[string]idempotentResponse),
		now:         time.Now,
	}
}

// FailNextCommit makes the next Commit return err instead of applying the
// scope. Used to exercise rollback paths.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErrs = append(s.commitErrs, err)
}

// Begin waits for the write slot, honouring ctx cancellation.
func (s *Store) Begin(ctx context.Context) (uow.Scope, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, domain.Persistence("could not begin transaction", ctx.Err(), false)
	}

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	return &scope{store: s, work: work}, nil
}

// Snapshot helpers for tests and read-only callers outside a scope.

func (s *Store) Account(id int64) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.committed.accounts[id]
	return a, ok
}

func (s *Store) LedgerEntries() []domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LedgerEntry(nil), s.committed.ledger...)
}

func (s *Store) NotificationsFor(userID int64) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range s.committed.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SeedAccount inserts an account directly into committed state.
func (s *Store) SeedAccount(a domain.Account) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.committed
	if a.ID == 0 {
		st.nextAccountID++
		a.ID = st.nextAccountID
	} else if a.ID > st.nextAccountID {
		st.nextAccountID = a.ID
	}
	if a.Currency == "" {
		a.Currency = domain.AZN
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
		a.UpdatedAt = a.CreatedAt
	}
	st.accounts[a.ID] = a
	st.byNumber[a.AccountNumber] = a.ID
	return a
}

// SaveAPIKey stores the hashed key for an account.
func (s *Store) SaveAPIKey(_ context.Context, accountID int64, keyHash string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.committed.accounts[accountID]; !ok {
		return fmt.Errorf("failed to save api key: %w", uow.ErrNotFound)
	}
	s.apiKeys[keyHash] = accountID
	return nil
}

func (s *Store) ResolveAPIKey(_ context.Context, keyHash string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.apiKeys[keyHash]
	if !ok {
		return 0, uow.ErrNotFound
	}
	return id, nil
}

func (s *Store) LookupResponse(_ context.Context, key string) (int, []byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.idempotency[key]
	return r.status, r.body, ok, nil
}

func (s *Store) SaveResponse(_ context.Context, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idempotency[key]; !ok {
		s.idempotency[key] = idempotentResponse{status: status, body: append([]byte(nil), body...)}
	}
	return nil
}
