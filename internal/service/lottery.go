package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

const lotteryLockTTL = 10 * time.Second

// LotteryResult reports a ticket purchase and, when it filled the pot, the draw.
type LotteryResult struct {
	Round   int64
	Tickets int
	Needed  int
	Winner  *domain.LotteryTicket
	Prize   decimal.Decimal
}

func (r LotteryResult) Drawn() bool { return r.Winner != nil }

type LotteryService struct {
	Deps
	announcer *Announcer
	log       *slog.Logger
}

func NewLotteryService(d Deps, announcer *Announcer) *LotteryService {
	return &LotteryService{Deps: d, announcer: announcer, log: logger.Component("lottery")}
}

// Pot returns the current round.
func (s *LotteryService) Pot(ctx context.Context) (*domain.LotteryPot, error) {
	return s.Store.Lottery(ctx)
}

// Join buys one ticket at cost. The prize is a fraction of what the round's
// tickets actually paid. The ticket that fills the pot triggers the
// draw: the winner is credited and the pot reset in the same transaction.
func (s *LotteryService) Join(ctx context.Context, userID, name string, cost decimal.Decimal) (*LotteryResult, error) {
	if !s.Rules.Lottery.Enabled {
		return nil, ErrFeatureDisabled
	}
	ticketCost := decimal.NewFromFloat(s.Rules.Lottery.TicketCost)
	if !cost.IsPositive() {
		cost = ticketCost
	}
	release, _ := s.Lock.Acquire(ctx, "lottery", lotteryLockTTL)
	defer release()

	players := s.Rules.Lottery.PlayersPerRound
	var res LotteryResult
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = LotteryResult{Needed: players}
		pot, err := tx.Lottery(ctx)
		if err != nil {
			return err
		}
		if pot.Has(userID) {
			return ErrAlreadyParticipant
		}
		if _, err := s.Ledger.Spend(ctx, tx, userID, domain.FieldStoreCredit, cost, "Ticket de loterie"); err != nil {
			return err
		}
		pot.Tickets = append(pot.Tickets, domain.LotteryTicket{UserID: userID, DisplayName: name, Paid: cost})
		res.Round, res.Tickets = pot.Round, len(pot.Tickets)

		if len(pot.Tickets) >= players {
			winner := pot.Tickets[s.Rand.IntN(len(pot.Tickets))]
			prize := pot.Collected(ticketCost).
				Mul(decimal.NewFromFloat(s.Rules.Lottery.WinnerPrizeFraction)).Truncate(2)
			if _, err := s.Ledger.Add(ctx, tx, winner.UserID, domain.FieldStoreCredit, prize,
				fmt.Sprintf("Gain loterie (tour %d)", pot.Round)); err != nil {
				return err
			}
			res.Winner, res.Prize = &winner, prize
			pot.Tickets = nil
			pot.Round++
		}
		return tx.PutLottery(ctx, pot)
	})
	if err != nil {
		return nil, err
	}
	if res.Drawn() {
		s.announceDraw(ctx, &res)
	}
	return &res, nil
}

func (s *LotteryService) announceDraw(ctx context.Context, res *LotteryResult) {
	s.log.Info("lottery drawn", "round", res.Round, "winner_id", res.Winner.UserID, "prize", res.Prize.String())
	channel := s.Rules.Channels.Lottery
	if channel == "" {
		channel = s.Rules.Channels.Announcements
	}
	_, _ = s.announcer.Post(ctx, channel, KindLotteryDraw, domain.Message{
		Title: "🎉 Tirage de la Loterie ! 🎉",
		Description: fmt.Sprintf("Félicitations à <@%s> qui remporte **%s crédits** !",
			res.Winner.UserID, res.Prize.StringFixed(2)),
		Color:  domain.ColorGold,
		Footer: fmt.Sprintf("Tour %d • %d participants", res.Round, res.Tickets),
	})
	s.announcer.DM(ctx, res.Winner.UserID, Text(fmt.Sprintf(
		"🎉 Vous avez gagné la loterie ! **%s crédits** ont été ajoutés à votre solde.", res.Prize.StringFixed(2))))
}
