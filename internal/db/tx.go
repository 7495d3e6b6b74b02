package db

import (
	"context"
	"errors"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxTxAttempts   = 8
	firstRetryDelay = 75 * time.Millisecond
	maxRetryDelay   = 1200 * time.Millisecond
)

// RunSerializable runs fn in a SERIALIZABLE transaction and retries it when
// Postgres reports a serialization failure or deadlock. When every attempt
// conflicts it returns store.ErrTxConflict.
func RunSerializable(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	retryDelay := firstRetryDelay
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == maxTxAttempts-1 {
			break
		}
		metrics.TxRetries.Inc()
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	return store.ErrTxConflict
}

// IsRetryable reports a serialization failure (40001) or deadlock (40P01).
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
