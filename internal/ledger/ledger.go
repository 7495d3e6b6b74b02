// Package ledger applies signed deltas to user counters and records each one
// in the user's bounded transaction log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

const DefaultMaxLogSize = 50

type Options struct {
	MaxLogSize int
	// MissionsOptIn is the default for records created on first touch.
	MissionsOptIn bool
	NodeID        int64
	Now           func() time.Time
}

type Ledger struct {
	store         store.Store
	node          *snowflake.Node
	maxLogSize    int
	missionsOptIn bool
	now           func() time.Time
}

func New(s store.Store, opts Options) (*Ledger, error) {
	node, err := snowflake.NewNode(opts.NodeID)
	if err != nil {
		return nil, fmt.Errorf("ledger id node: %w", err)
	}
	if opts.MaxLogSize <= 0 {
		opts.MaxLogSize = DefaultMaxLogSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{
		store:         s,
		node:          node,
		maxLogSize:    opts.MaxLogSize,
		missionsOptIn: opts.MissionsOptIn,
		now:           opts.Now,
	}, nil
}

// Load returns the user inside tx, creating the default record when absent.
func (l *Ledger) Load(ctx context.Context, tx store.Tx, userID string) (*domain.User, error) {
	return store.UserOrDefault(ctx, tx, userID, l.now(), l.missionsOptIn)
}

// Post applies delta to an already loaded user and prepends the log entry.
// The caller persists u. Use it to compose several mutations of one record
// inside a transaction.
func (l *Ledger) Post(u *domain.User, field domain.Field, delta decimal.Decimal, reason string) error {
	cur, err := u.Value(field)
	if err != nil {
		metrics.LedgerOps.WithLabelValues(string(field), metrics.Rejected).Inc()
		return err
	}
	if err := u.SetValue(field, cur.Add(delta)); err != nil {
		metrics.LedgerOps.WithLabelValues(string(field), metrics.Rejected).Inc()
		return err
	}

	now := l.now()
	entry := domain.LedgerEntry{
		ID:        l.node.Generate().String(),
		Timestamp: now,
		Field:     field,
		Amount:    delta,
		Reason:    reason,
	}
	log := make([]domain.LedgerEntry, 0, min(len(u.TransactionLog)+1, l.maxLogSize))
	log = append(log, entry)
	for _, e := range u.TransactionLog {
		if len(log) == l.maxLogSize {
			break
		}
		log = append(log, e)
	}
	u.TransactionLog = log
	u.UpdatedAt = now
	metrics.LedgerOps.WithLabelValues(string(field), metrics.OK).Inc()
	return nil
}

// Debit subtracts amount from an already loaded user after checking the
// balance covers it. Nothing is mutated on rejection.
func (l *Ledger) Debit(u *domain.User, field domain.Field, amount decimal.Decimal, reason string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	cur, err := u.Value(field)
	if err != nil {
		return err
	}
	if cur.LessThan(amount) {
		metrics.LedgerOps.WithLabelValues(string(field), metrics.Rejected).Inc()
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, cur, amount)
	}
	return l.Post(u, field, amount.Neg(), reason)
}

// Add loads the user inside tx, applies delta and saves the record.
func (l *Ledger) Add(ctx context.Context, tx store.Tx, userID string, field domain.Field, delta decimal.Decimal, reason string) (*domain.User, error) {
	u, err := l.Load(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := l.Post(u, field, delta, reason); err != nil {
		return nil, err
	}
	if err := tx.PutUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Spend is Add with a sufficiency check on a positive amount.
func (l *Ledger) Spend(ctx context.Context, tx store.Tx, userID string, field domain.Field, amount decimal.Decimal, reason string) (*domain.User, error) {
	u, err := l.Load(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := l.Debit(u, field, amount, reason); err != nil {
		return nil, err
	}
	if err := tx.PutUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Apply runs Add in its own transaction.
func (l *Ledger) Apply(ctx context.Context, userID string, field domain.Field, delta decimal.Decimal, reason string) (*domain.User, error) {
	var out *domain.User
	err := l.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := l.Add(ctx, tx, userID, field, delta, reason)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Now is the clock the ledger stamps entries with.
func (l *Ledger) Now() time.Time {
	return l.now()
}
