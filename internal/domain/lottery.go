package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// LotteryTicket is one participant in the current round.
type LotteryTicket struct {
	UserID      string `json:"id"`
	DisplayName string          `json:"name"`
	Paid        decimal.Decimal `json:"paid"`
}

// LotteryPot is the shared system/lottery document.
type LotteryPot struct {
	Tickets []LotteryTicket `json:"pot"`
	Round   int64           `json:"round"`
}

func (p *LotteryPot) Has(userID string) bool {
	return slices.ContainsFunc(p.Tickets, func(t LotteryTicket) bool { return t.UserID == userID })
}

// Collected sums what the current round's tickets paid. Tickets stored
// before prices were recorded count at fallback.
func (p *LotteryPot) Collected(fallback decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, t := range p.Tickets {
		if t.Paid.IsPositive() {
			total = total.Add(t.Paid)
		} else {
			total = total.Add(fallback)
		}
	}
	return total
}
