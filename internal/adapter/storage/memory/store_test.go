package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/digibank/internal/core/domain"
	"github.com/ibrahimkeyboad/digibank/internal/core/uow"
)

func begin(t *testing.T, s *Store) uow.Scope {
	t.Helper()
	sc, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Rollback(context.Background()) })
	return sc
}

func TestAccounts_UniqueNumber(t *testing.T) {
	s := NewStore()
	s.SeedAccount(domain.Account{AccountNumber: "4200000000000001"})

	sc := begin(t, s)
	err := sc.Accounts().Add(context.Background(), &domain.Account{AccountNumber: "4200000000000001"})
	assert.ErrorIs(t, err, uow.ErrConflict)

	taken, err := sc.Accounts().ExistsNumber(context.Background(), "4200000000000001")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestAccounts_UpdateKeepsNumber(t *testing.T) {
	s := NewStore()
	a := s.SeedAccount(domain.Account{AccountNumber: "4200000000000001", Balance: 10})

	ctx := context.Background()
	sc := begin(t, s)
	a.AccountNumber = "4200999999999999"
	a.Balance = 20
	require.NoError(t, sc.Accounts().Update(ctx, &a))
	require.NoError(t, sc.Commit(ctx))

	got, ok := s.Account(a.ID)
	require.True(t, ok)
	assert.Equal(t, "4200000000000001", got.AccountNumber)
	assert.Equal(t, int64(20), got.Balance)
}

func TestAccounts_RejectsNegativeBalance(t *testing.T) {
	s := NewStore()
	a := s.SeedAccount(domain.Account{AccountNumber: "4200000000000001"})

	sc := begin(t, s)
	a.Balance = -1
	assert.Error(t, sc.Accounts().Update(context.Background(), &a))
}

func TestLedger_QueryNewestFirstWithinRange(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	ctx := context.Background()
	sc := begin(t, s)
	for i := 0; i < 4; i++ {
		require.NoError(t, sc.Ledger().Add(ctx, &domain.LedgerEntry{SenderAccountID: 1, ReceiverAccountID: 2, Amount: int64(i + 1)}))
	}
	require.NoError(t, sc.Ledger().Add(ctx, &domain.LedgerEntry{SenderAccountID: 3, ReceiverAccountID: 4, Amount: 9}))

	all, err := sc.Ledger().Query(ctx, uow.LedgerQuery{AccountID: 2})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(4), all[0].Amount)

	window, err := sc.Ledger().Query(ctx, uow.LedgerQuery{
		AccountID: 1,
		From:      base.Add(2 * time.Hour),
		To:        base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window, 2)

	limited, err := sc.Ledger().Query(ctx, uow.LedgerQuery{AccountID: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Error(t, sc.Ledger().Add(ctx, &domain.LedgerEntry{Amount: 0}))
}

func TestPaymentEvents_RecordOnce(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	sc := begin(t, s)
	fresh, err := sc.PaymentEvents().Record(ctx, &domain.PaymentEvent{EventID: "evt_1", AccountID: 1, Amount: 100})
	require.NoError(t, err)
	assert.True(t, fresh)
	require.NoError(t, sc.Commit(ctx))

	sc = begin(t, s)
	fresh, err = sc.PaymentEvents().Record(ctx, &domain.PaymentEvent{EventID: "evt_1", AccountID: 1, Amount: 100})
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestScope_RollbackDiscardsAndCloses(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	sc, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sc.Notifications().Add(ctx, &domain.Notification{UserID: 1, Message: "hi"}))
	require.NoError(t, sc.Rollback(ctx))
	require.NoError(t, sc.Rollback(ctx))

	assert.Empty(t, s.NotificationsFor(1))
	_, err = sc.Accounts().GetByID(ctx, 1)
	assert.Error(t, err)
}

func TestBegin_HonoursContext(t *testing.T) {
	s := NewStore()
	_ = begin(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Begin(ctx)
	assert.Equal(t, domain.KindPersistenceFailure, domain.KindOf(err))
}

func TestIdempotentResponses(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, _, found, err := s.LookupResponse(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveResponse(ctx, "k", 200, []byte(`{"a":1}`)))
	require.NoError(t, s.SaveResponse(ctx, "k", 422, []byte(`{"b":2}`)))

	status, body, found, err := s.LookupResponse(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 200, status)
	assert.JSONEq(t, `{"a":1}`, string(body))
}

func TestAPIKeys(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a := s.SeedAccount(domain.Account{AccountNumber: "4200000000000001"})

	assert.ErrorIs(t, s.SaveAPIKey(ctx, 99, "hash", "db_live_"), uow.ErrNotFound)
	require.NoError(t, s.SaveAPIKey(ctx, a.ID, "hash", "db_live_"))

	id, err := s.ResolveAPIKey(ctx, "hash")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, err = s.ResolveAPIKey(ctx, "other")
	assert.ErrorIs(t, err, uow.ErrNotFound)
}
