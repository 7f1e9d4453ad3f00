package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ibrahimkeyboad/digibank/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
)

const (
	aliNumber   = "4200111122223333"
	leylaNumber = "4200444455556666"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PushEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.PushEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Events() []domain.PushEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PushEvent(nil), p.events...)
}

var errPublisherDown = errors.New("publisher down")

type fixture struct {
	store *memory.Store
	pub   *recordingPublisher
	opts  ledger.Options
	ali   domain.Account
	leyla domain.Account
}

// newFixture seeds two AZN accounts with the given balances in cents.
func newFixture(t *testing.T, aliBalance, leylaBalance int64) *fixture {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	return &fixture{
		store: store,
		pub:   pub,
		opts: ledger.Options{
			Publisher: pub,
			Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
			Retries:   2,
		},
		ali: store.SeedAccount(domain.Account{
			AccountNumber: aliNumber, FirstName: "Ali", LastName: "Veliyev", Balance: aliBalance,
		}),
		leyla: store.SeedAccount(domain.Account{
			AccountNumber: leylaNumber, FirstName: "Leyla", LastName: "Mammadova", Balance: leylaBalance,
		}),
	}
}

func (f *fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	a, ok := f.store.Account(id)
	if !ok {
		t.Fatalf("account %d not found", id)
	}
	return a.Balance
}
