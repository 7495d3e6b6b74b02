package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, s store.Store, maxLog int) *Ledger {
	t.Helper()
	l, err := New(s, Options{MaxLogSize: maxLog, MissionsOptIn: true, NodeID: 1})
	require.NoError(t, err)
	return l
}

func TestApplyCreatesDefaultRecord(t *testing.T) {
	s := store.NewMemory()
	l := newLedger(t, s, 50)
	ctx := context.Background()

	u, err := l.Apply(ctx, "u1", domain.FieldStoreCredit, decimal.RequireFromString("2.50"), "gift")
	require.NoError(t, err)
	assert.True(t, u.StoreCredit.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, int64(1), u.Level)
	require.Len(t, u.TransactionLog, 1)
	assert.Equal(t, domain.FieldStoreCredit, u.TransactionLog[0].Field)
	assert.Equal(t, "gift", u.TransactionLog[0].Reason)
	assert.NotEmpty(t, u.TransactionLog[0].ID)

	stored, err := s.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, u.StoreCredit.String(), stored.StoreCredit.String())
}

func TestLogIsBoundedMostRecentFirst(t *testing.T) {
	s := store.NewMemory()
	l := newLedger(t, s, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := l.Apply(ctx, "u1", domain.FieldXP, decimal.NewFromInt(int64(i)), fmt.Sprintf("grant %d", i))
		require.NoError(t, err)
	}
	u, err := s.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), u.XP)
	require.Len(t, u.TransactionLog, 3)
	assert.Equal(t, "grant 5", u.TransactionLog[0].Reason)
	assert.Equal(t, "grant 3", u.TransactionLog[2].Reason)
}

func TestSpendRejectsWithoutMutation(t *testing.T) {
	s := store.NewMemory()
	l := newLedger(t, s, 50)
	ctx := context.Background()

	_, err := l.Apply(ctx, "u1", domain.FieldStoreCredit, decimal.NewFromInt(1), "seed")
	require.NoError(t, err)

	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := l.Spend(ctx, tx, "u1", domain.FieldStoreCredit, decimal.RequireFromString("1.01"), "too much")
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	u, err := s.User(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.StoreCredit.Equal(decimal.NewFromInt(1)))
	assert.Len(t, u.TransactionLog, 1)

	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := l.Spend(ctx, tx, "u1", domain.FieldStoreCredit, decimal.Zero, "nothing")
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRejectsFractionalIntegerDeltaAndUnknownField(t *testing.T) {
	s := store.NewMemory()
	l := newLedger(t, s, 50)
	ctx := context.Background()

	_, err := l.Apply(ctx, "u1", domain.FieldXP, decimal.RequireFromString("0.5"), "half")
	assert.Error(t, err)

	_, err = l.Apply(ctx, "u1", domain.Field("karma"), decimal.NewFromInt(1), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = s.User(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentIncrementsLoseNothing(t *testing.T) {
	s := store.NewMemory()
	l := newLedger(t, s, 50)
	ctx := context.Background()

	_, err := l.Apply(ctx, "u1", domain.FieldStoreCredit, decimal.NewFromInt(100), "seed")
	require.NoError(t, err)

	const workers = 40
	var wg sync.WaitGroup
	expected := decimal.NewFromInt(100)
	for i := 0; i < workers; i++ {
		delta := decimal.NewFromInt(3)
		if i%2 == 1 {
			delta = decimal.NewFromInt(-2)
		}
		expected = expected.Add(delta)

		wg.Add(1)
		go func(delta decimal.Decimal) {
			defer wg.Done()
			err := s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
				if delta.IsNegative() {
					_, err := l.Spend(ctx, tx, "u1", domain.FieldStoreCredit, delta.Neg(), "spend")
					return err
				}
				_, err := l.Add(ctx, tx, "u1", domain.FieldStoreCredit, delta, "earn")
				return err
			})
			assert.NoError(t, err)
		}(delta)
	}
	wg.Wait()

	u, err := s.User(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.StoreCredit.Equal(expected), "got %s want %s", u.StoreCredit, expected)
}

func TestComposedMutationsShareOneTransaction(t *testing.T) {
	s := store.NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l, err := New(s, Options{NodeID: 2, Now: func() time.Time { return now }})
	require.NoError(t, err)
	ctx := context.Background()

	err = s.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := l.Load(ctx, tx, "u1")
		if err != nil {
			return err
		}
		if err := l.Post(u, domain.FieldXP, decimal.NewFromInt(10), "xp"); err != nil {
			return err
		}
		if err := l.Post(u, domain.FieldWeeklyXP, decimal.NewFromInt(10), "xp"); err != nil {
			return err
		}
		return tx.PutUser(ctx, u)
	})
	require.NoError(t, err)

	u, err := s.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.XP)
	assert.Equal(t, int64(10), u.WeeklyXP)
	assert.Len(t, u.TransactionLog, 2)
	assert.True(t, now.Equal(u.TransactionLog[0].Timestamp))
	assert.Equal(t, domain.FieldWeeklyXP, u.TransactionLog[0].Field)
}
