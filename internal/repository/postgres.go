package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/db"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// repos groups the per-collection repositories bound to one connection or tx.
type repos struct {
	*UserRepository
	*GuildRepository
	*GiveawayRepository
	*CashoutRepository
	*SystemRepository
	*PromoRepository
	*AuditRepository
}

func newRepos(conn DBTX, inTx bool) repos {
	return repos{
		UserRepository:     &UserRepository{db: conn, lock: inTx},
		GuildRepository:    &GuildRepository{db: conn, lock: inTx},
		GiveawayRepository: &GiveawayRepository{db: conn, lock: inTx},
		CashoutRepository:  &CashoutRepository{db: conn, lock: inTx},
		SystemRepository:   &SystemRepository{db: conn, lock: inTx},
		PromoRepository:    &PromoRepository{db: conn},
		AuditRepository:    &AuditRepository{db: conn},
	}
}

// Postgres is the production store.Store. Transactions run SERIALIZABLE and
// single-document reads inside them take row locks.
type Postgres struct {
	pool *pgxpool.Pool
	repos
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, repos: newRepos(pool, false)}
}

func (p *Postgres) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return db.RunSerializable(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{repos: newRepos(tx, true)})
	})
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping is used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type pgTx struct {
	repos
}

var (
	_ store.Store = (*Postgres)(nil)
	_ store.Tx    = (*pgTx)(nil)
)

// forUpdate appends a row lock clause when running inside a transaction.
func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

// scanDoc decodes a single JSONB document column.
func scanDoc[T any](row pgx.Row) (*T, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &out, nil
}

func scanDocs[T any](rows pgx.Rows) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

// limitArg maps a non-positive limit to NULL (no limit).
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
