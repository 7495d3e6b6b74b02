package repository

import (
	"context"
	"errors"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type CashoutRepository struct {
	db   DBTX
	lock bool
}

// Cashout retrieves a pending request by the id of its staff message.
func (r *CashoutRepository) Cashout(ctx context.Context, id string) (*domain.PendingCashout, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, credit_to_deduct::text, euros_to_send::text, paypal_email, channel_id, created_at
		FROM pending_cashouts
		WHERE id = $1`+forUpdate(r.lock), id)

	var (
		c              domain.PendingCashout
		credit, payout string
	)
	err := row.Scan(&c.ID, &c.UserID, &credit, &payout, &c.PaypalEmail, &c.ChannelID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.CreditDeducted, err = decimal.NewFromString(credit); err != nil {
		return nil, err
	}
	if c.PayoutEUR, err = decimal.NewFromString(payout); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CashoutRepository) PutCashout(ctx context.Context, c *domain.PendingCashout) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pending_cashouts (id, user_id, credit_to_deduct, euros_to_send, paypal_email, channel_id, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			credit_to_deduct = EXCLUDED.credit_to_deduct,
			euros_to_send = EXCLUDED.euros_to_send,
			paypal_email = EXCLUDED.paypal_email,
			channel_id = EXCLUDED.channel_id
	`, c.ID, c.UserID, c.CreditDeducted.String(), c.PayoutEUR.String(), c.PaypalEmail, c.ChannelID, c.CreatedAt)
	return err
}

func (r *CashoutRepository) DeleteCashout(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pending_cashouts WHERE id = $1`, id)
	return err
}
