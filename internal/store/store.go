// Package store defines the persistence contract shared by the Postgres
// repository and the in-memory implementation used by tests and local runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrTxConflict is returned when a transaction kept conflicting with
	// concurrent writers and the retry budget ran out.
	ErrTxConflict = errors.New("transaction conflict")
)

// UserQuery selects users. When Field is set only users with Field > Min are
// returned, ordered by Field descending.
type UserQuery struct {
	Field         domain.Field
	Min           decimal.Decimal
	Limit         int
	HasVIP        bool
	HasGuildBonus bool
}

// GuildQuery selects guilds ordered by weekly XP descending.
type GuildQuery struct {
	MinWeeklyXP int64
	Limit       int
}

// Reader is the read side of the store. Inside a Tx, reads lock what they
// return until the transaction ends.
type Reader interface {
	User(ctx context.Context, id string) (*domain.User, error)
	Users(ctx context.Context, q UserQuery) ([]*domain.User, error)

	Guild(ctx context.Context, id string) (*domain.Guild, error)
	GuildByName(ctx context.Context, nameLower string) (*domain.Guild, error)
	Guilds(ctx context.Context, q GuildQuery) ([]*domain.Guild, error)

	Giveaway(ctx context.Context, messageID string) (*domain.Giveaway, error)
	DueGiveaways(ctx context.Context, now time.Time) ([]*domain.Giveaway, error)

	Cashout(ctx context.Context, id string) (*domain.PendingCashout, error)

	// Events and Lottery return an empty value when the document does not exist yet.
	Events(ctx context.Context) (domain.EventSet, error)
	Lottery(ctx context.Context) (*domain.LotteryPot, error)

	Promos(ctx context.Context) ([]*domain.Promo, error)
	AuditLog(ctx context.Context, limit int) ([]*domain.AuditLog, error)
}

// Tx is a read-modify-write transaction spanning any number of documents.
type Tx interface {
	Reader

	PutUser(ctx context.Context, u *domain.User) error

	PutGuild(ctx context.Context, g *domain.Guild) error
	DeleteGuild(ctx context.Context, id string) error

	PutGiveaway(ctx context.Context, g *domain.Giveaway) error
	DeleteGiveaway(ctx context.Context, messageID string) error

	PutCashout(ctx context.Context, c *domain.PendingCashout) error
	DeleteCashout(ctx context.Context, id string) error

	PutEvents(ctx context.Context, events domain.EventSet) error
	PutLottery(ctx context.Context, pot *domain.LotteryPot) error

	PutPromo(ctx context.Context, p *domain.Promo) error
	DeletePromo(ctx context.Context, id string) error

	AppendAudit(ctx context.Context, entry *domain.AuditLog) error
}

// Store runs transactions. fn may be invoked more than once when the backend
// retries on conflict, so it must not have side effects outside tx.
type Store interface {
	Reader
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// UserOrDefault loads a user inside tx, returning a fresh default record when
// none exists yet.
func UserOrDefault(ctx context.Context, r Reader, id string, now time.Time, missionsOptIn bool) (*domain.User, error) {
	u, err := r.User(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return domain.NewUser(id, now, missionsOptIn), nil
	}
	return u, err
}
