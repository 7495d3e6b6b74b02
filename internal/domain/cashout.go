package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PendingCashout is a withdrawal request awaiting staff review, keyed by the
// id of the request message posted in the staff channel.
type PendingCashout struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	CreditDeducted decimal.Decimal `json:"credit_to_deduct"`
	PayoutEUR      decimal.Decimal `json:"euros_to_send"`
	PaypalEmail    string          `json:"paypal_email"`
	ChannelID      string          `json:"channel_id"`
	CreatedAt      time.Time       `json:"created_at"`
}
