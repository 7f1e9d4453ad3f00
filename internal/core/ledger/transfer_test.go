package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/ledger"
)

func TestTransferMoney_Success(t *testing.T) {
	f := newFixture(t, 100000, 50000)
	engine := ledger.NewEngine(f.store, f.opts)

	out, err := engine.TransferMoney(context.Background(), f.ali.ID, "4200-4444-5555-6666", 25000, "rent")
	require.NoError(t, err)

	assert.Equal(t, int64(75000), out.SenderNewBalance)
	assert.Equal(t, int64(75000), out.ReceiverNewBalance)
	assert.Equal(t, "Ali Veliyev", out.SenderName)
	assert.Equal(t, "Leyla Mammadova", out.ReceiverName)
	assert.Equal(t, int64(75000), f.balance(t, f.ali.ID))
	assert.Equal(t, int64(75000), f.balance(t, f.leyla.ID))

	entries := f.store.LedgerEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, out.EntryID, entries[0].ID)
	assert.Equal(t, f.ali.ID, entries[0].SenderAccountID)
	assert.Equal(t, f.leyla.ID, entries[0].ReceiverAccountID)
	assert.Equal(t, int64(25000), entries[0].Amount)
	assert.Equal(t, "rent", entries[0].Description)
	assert.Equal(t, domain.EntrySuccess, entries[0].Status)

	notes := f.store.NotificationsFor(f.leyla.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Ali Veliyev sent you 250.00 AZN", notes[0].Message)
	assert.False(t, notes[0].IsRead)
	assert.Empty(t, f.store.NotificationsFor(f.ali.ID))

	events := f.pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.PushReceived, events[0].Type)
	assert.Equal(t, f.leyla.ID, events[0].UserID)
	assert.Equal(t, "750.00", events[0].NewBalance)
	assert.Equal(t, domain.PushSent, events[1].Type)
	assert.Equal(t, f.ali.ID, events[1].UserID)
	assert.Equal(t, "250.00", events[1].Amount)
}

func TestTransferMoney_BlankAndTruncatedDescription(t *testing.T) {
	f := newFixture(t, 1000, 0)
	engine := ledger.NewEngine(f.store, f.opts)

	_, err := engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 1, "   ")
	require.NoError(t, err)
	_, err = engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 1, strings.Repeat("ə", 300))
	require.NoError(t, err)

	entries := f.store.LedgerEntries()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Description)
	assert.Equal(t, 255, len([]rune(entries[1].Description)))
}

func TestTransferMoney_CrossCurrencyRejected(t *testing.T) {
	f := newFixture(t, 1000, 0)
	f.store.SeedAccount(domain.Account{
		AccountNumber: "4200777788889999", FirstName: "John", LastName: "Doe", Currency: domain.USD,
	})
	engine := ledger.NewEngine(f.store, f.opts)

	_, err := engine.TransferMoney(context.Background(), f.ali.ID, "4200777788889999", 100, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)
	assert.Equal(t, int64(1000), f.balance(t, f.ali.ID))
	assert.Empty(t, f.store.LedgerEntries())
}

func TestTransferMoney_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		sender   func(f *fixture) int64
		receiver string
		amount   int64
		kind     domain.ErrorKind
	}{
		{"zero amount", func(f *fixture) int64 { return f.ali.ID }, leylaNumber, 0, domain.KindInvalidAmount},
		{"negative amount", func(f *fixture) int64 { return f.ali.ID }, leylaNumber, -100, domain.KindInvalidAmount},
		{"blank receiver", func(f *fixture) int64 { return f.ali.ID }, "  ", 100, domain.KindInvalidAccountNumber},
		{"short receiver", func(f *fixture) int64 { return f.ali.ID }, "4200-1234", 100, domain.KindInvalidAccountNumber},
		{"letters in receiver", func(f *fixture) int64 { return f.ali.ID }, "4200abcd55556666", 100, domain.KindInvalidAccountNumber},
		{"self transfer", func(f *fixture) int64 { return f.ali.ID }, "4200 1111 2222 3333", 100, domain.KindSelfTransferNotAllowed},
		{"unknown sender", func(f *fixture) int64 { return 999 }, leylaNumber, 100, domain.KindSenderNotFound},
		{"unknown receiver", func(f *fixture) int64 { return f.ali.ID }, "4200999999999999", 100, domain.KindReceiverNotFound},
		{"insufficient funds", func(f *fixture) int64 { return f.ali.ID }, leylaNumber, 100001, domain.KindInsufficientFunds},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 100000, 50000)
			engine := ledger.NewEngine(f.store, f.opts)

			out, err := engine.TransferMoney(context.Background(), tc.sender(f), tc.receiver, tc.amount, "")
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tc.kind, domain.KindOf(err))

			assert.Equal(t, int64(100000), f.balance(t, f.ali.ID))
			assert.Equal(t, int64(50000), f.balance(t, f.leyla.ID))
			assert.Empty(t, f.store.LedgerEntries())
			assert.Empty(t, f.store.NotificationsFor(f.leyla.ID))
			assert.Empty(t, f.pub.Events())
		})
	}
}

func TestTransferMoney_WholeBalance(t *testing.T) {
	f := newFixture(t, 500, 0)
	engine := ledger.NewEngine(f.store, f.opts)

	out, err := engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 500, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.SenderNewBalance)
	assert.Equal(t, int64(500), f.balance(t, f.leyla.ID))
}

func TestTransferMoney_CommitFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, 100000, 50000)
	engine := ledger.NewEngine(f.store, f.opts)
	f.store.FailNextCommit(errors.New("connection reset"))

	_, err := engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 25000, "")
	require.Error(t, err)
	assert.Equal(t, domain.KindPersistenceFailure, domain.KindOf(err))

	assert.Equal(t, int64(100000), f.balance(t, f.ali.ID))
	assert.Equal(t, int64(50000), f.balance(t, f.leyla.ID))
	assert.Empty(t, f.store.LedgerEntries())
	assert.Empty(t, f.store.NotificationsFor(f.leyla.ID))
	assert.Empty(t, f.pub.Events())
}

func TestTransferMoney_PublisherFailureKeepsResult(t *testing.T) {
	f := newFixture(t, 100000, 50000)
	f.pub.err = errPublisherDown
	engine := ledger.NewEngine(f.store, f.opts)

	out, err := engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 25000, "")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, int64(75000), f.balance(t, f.ali.ID))
	assert.Len(t, f.store.LedgerEntries(), 1)
}

func TestTransferMoney_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t, 1000, 0)
	engine := ledger.NewEngine(f.store, f.opts)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 100, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if domain.IsKind(err, domain.KindInsufficientFunds) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, rejected)
	assert.Equal(t, int64(0), f.balance(t, f.ali.ID))
	assert.Equal(t, int64(1000), f.balance(t, f.leyla.ID))
	assert.Len(t, f.store.LedgerEntries(), 10)
}

func TestTransferMoney_ConcurrentBothWaysConservesTotal(t *testing.T) {
	f := newFixture(t, 5000, 5000)
	engine := ledger.NewEngine(f.store, f.opts)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = engine.TransferMoney(context.Background(), f.ali.ID, leylaNumber, 70, "")
		}()
		go func() {
			defer wg.Done()
			_, _ = engine.TransferMoney(context.Background(), f.leyla.ID, aliNumber, 30, "")
		}()
	}
	wg.Wait()

	ali, leyla := f.balance(t, f.ali.ID), f.balance(t, f.leyla.ID)
	assert.Equal(t, int64(10000), ali+leyla)
	assert.GreaterOrEqual(t, ali, int64(0))
	assert.GreaterOrEqual(t, leyla, int64(0))

	var net int64
	for _, e := range f.store.LedgerEntries() {
		if e.SenderAccountID == f.ali.ID {
			net -= e.Amount
		} else {
			net += e.Amount
		}
	}
	assert.Equal(t, ali-5000, net)
}

func TestTransferMoney_ConcurrentToDistinctReceivers(t *testing.T) {
	f := newFixture(t, 100000, 0)
	engine := ledger.NewEngine(f.store, f.opts)

	const n = 8
	numbers := make([]string, n)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("42009999000000%02d", i)
		f.store.SeedAccount(domain.Account{AccountNumber: numbers[i], FirstName: "R", LastName: strconv.Itoa(i)})
	}

	errs := make(chan error, n)
	var wg sync.WaitGroup
	for _, number := range numbers {
		wg.Add(1)
		go func(number string) {
			defer wg.Done()
			_, err := engine.TransferMoney(context.Background(), f.ali.ID, number, 10000, "")
			errs <- err
		}(number)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(100000-n*10000), f.balance(t, f.ali.ID))
	assert.Len(t, f.store.LedgerEntries(), n)
}
