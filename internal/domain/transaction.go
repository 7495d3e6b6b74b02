package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one line of the bounded per-user audit log, most recent first.
type LedgerEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Field     Field           `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"description"`
}
