package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	require.NoError(t, err)
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		require.NoError(t, err)
		_, err = db.Exec(context.Background(), string(b))
		require.NoError(t, err, "apply migration %s", f.Name())
	}
}

// Integration test: runs only if DATABASE_URL env is set.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applyMigrations(t, pool)
	for _, table := range []string{"users", "guilds", "giveaways", "pending_cashouts", "active_promos", "audit_logs"} {
		_, err := pool.Exec(context.Background(), "TRUNCATE "+table)
		require.NoError(t, err)
	}
	_, err = pool.Exec(context.Background(), `UPDATE system_state SET doc = '{}' WHERE key = 'events'`)
	require.NoError(t, err)
	return NewPostgres(pool)
}

func TestPostgresUserRoundTripAndRanking(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	err := p.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for id, weekly := range map[string]int64{"a": 5, "b": 50, "c": 0} {
			u := domain.NewUser(id, now, true)
			u.WeeklyXP = weekly
			u.StoreCredit = decimal.RequireFromString("1.25")
			if err := tx.PutUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	u, err := p.User(ctx, "a")
	require.NoError(t, err)
	assert.True(t, u.StoreCredit.Equal(decimal.RequireFromString("1.25")))

	top, err := p.Users(ctx, store.UserQuery{Field: domain.FieldWeeklyXP, Min: decimal.Zero, Limit: 10})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].ID)

	_, err = p.User(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresConcurrentIncrements(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	err := p.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutUser(ctx, domain.NewUser("u1", time.Now(), true))
	})
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
				u, err := tx.User(ctx, "u1")
				if err != nil {
					return err
				}
				u.XP++
				return tx.PutUser(ctx, u)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := p.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), u.XP)
}

func TestPostgresSystemDocumentsAndRollback(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := p.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutEvents(ctx, domain.EventSet{"double_xp": {ID: "double_xp", Multiplier: 2}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	events, err := p.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	err = p.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutCashout(ctx, &domain.PendingCashout{
			ID: "m1", UserID: "u1",
			CreditDeducted: decimal.NewFromInt(20), PayoutEUR: decimal.NewFromInt(20),
			PaypalEmail: "a@b.c", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &domain.AuditLog{ActorID: "u1", Action: domain.AuditActionCashoutRequest, Category: domain.AuditCategoryCashout})
	})
	require.NoError(t, err)

	c, err := p.Cashout(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, c.PayoutEUR.Equal(decimal.NewFromInt(20)))

	logs, err := p.AuditLog(ctx, 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionCashoutRequest, logs[0].Action)
}
