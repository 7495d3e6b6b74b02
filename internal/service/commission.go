package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

// Commission kinds.
const (
	CommissionSale    = "sale"
	CommissionCashout = "cashout"
)

// CommissionableBase is the part of a sale commissions are computed on: the
// full price, or the margin for net-margin products. Never negative.
func CommissionableBase(price decimal.Decimal, p config.Product, optionID string) decimal.Decimal {
	if p.MarginType != config.MarginNet {
		return decimal.Max(price, decimal.Zero)
	}
	cost := p.PurchaseCost
	if o, ok := p.Option(optionID); ok {
		cost = o.PurchaseCost
	}
	base := price.Sub(decimal.NewFromFloat(cost))
	if !base.IsPositive() {
		return decimal.Zero
	}
	return base
}

// CommissionRate returns the rate applied to the commissionable base and the
// cap it was already limited by.
func CommissionRate(referrer *domain.User, rules *config.Rules, eventBonus float64, now time.Time) (rate, ceiling float64) {
	if referrer.GuildBonus.IsTop1() {
		return referrer.GuildBonus.CommissionRate, 1.0
	}

	tiers := slices.Clone(rules.Affiliate.CommissionTiers)
	slices.SortStableFunc(tiers, func(a, b config.CommissionTier) int { return b.Level - a.Level })
	for _, t := range tiers {
		if referrer.Level >= int64(t.Level) {
			rate = t.Rate
			break
		}
	}

	bonus := eventBonus
	if referrer.VIP.Active(now) {
		vipTiers := slices.Clone(rules.VIP.CommissionBonusTiers)
		slices.SortStableFunc(vipTiers, func(a, b config.CommissionBonusTier) int { return b.ConsecutiveMonths - a.ConsecutiveMonths })
		for _, t := range vipTiers {
			if referrer.VIP.ConsecutiveMonths >= t.ConsecutiveMonths {
				bonus += t.Bonus
				break
			}
		}
	}
	if referrer.PermanentAffiliateBonus {
		bonus += rules.Affiliate.LoyaltyBonusRate
	}
	for _, b := range referrer.ActiveBoosters {
		if b.Kind == domain.BoosterCommission && b.Active(now) {
			bonus += b.Bonus
		}
	}
	bonus += referrer.AffiliateBooster.InexactFloat64()

	ceiling = 1.0
	if referrer.GuildBonus.IsRunnerUp() {
		bonus += referrer.GuildBonus.CommissionBoost
		if referrer.GuildBonus.MaxCommissionRate > 0 {
			ceiling = referrer.GuildBonus.MaxCommissionRate
		}
	}
	return math.Max(0, math.Min(rate+bonus, ceiling)), ceiling
}

// Commission is what the referrer earns on a sale, truncated to cents.
func Commission(referrer *domain.User, price decimal.Decimal, p config.Product, optionID string, rules *config.Rules, eventBonus float64, now time.Time) decimal.Decimal {
	base := CommissionableBase(price, p, optionID)
	if base.IsZero() {
		return decimal.Zero
	}
	rate, _ := CommissionRate(referrer, rules, eventBonus, now)
	return base.Mul(decimal.NewFromFloat(rate)).Truncate(2)
}

// CashoutCommission is what the referrer earns when a referral withdraws amount.
func CashoutCommission(referrer *domain.User, amount decimal.Decimal, rules *config.Rules, now time.Time) decimal.Decimal {
	rate := rules.Affiliate.CashoutBaseRate
	switch {
	case referrer.GuildBonus.IsRanked():
		rate = referrer.GuildBonus.CashoutCommissionRate
	case referrer.VIP.Active(now):
		rate = rules.Affiliate.CashoutVIPRate
	}
	if !amount.IsPositive() || rate <= 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromFloat(rate)).Truncate(2)
}

// AffiliateService credits commissions to referrers.
type AffiliateService struct {
	Deps
	events       *EventState
	achievements *AchievementService
	announcer    *Announcer
	log          *slog.Logger
}

func NewAffiliateService(d Deps, events *EventState, achievements *AchievementService, announcer *Announcer) *AffiliateService {
	return &AffiliateService{
		Deps:         d,
		events:       events,
		achievements: achievements,
		announcer:    announcer,
		log:          logger.Component("affiliate"),
	}
}

// credit adds amount to the referrer's earnings inside tx.
func (s *AffiliateService) credit(ctx context.Context, tx store.Tx, referrerID string, amount decimal.Decimal, kind, reason string) (*domain.User, error) {
	u, err := s.Ledger.Load(ctx, tx, referrerID)
	if err != nil {
		return nil, err
	}
	for _, f := range []domain.Field{domain.FieldStoreCredit, domain.FieldAffiliateEarnings, domain.FieldWeeklyAffiliateEarnings} {
		if err := s.Ledger.Post(u, f, amount, reason); err != nil {
			return nil, err
		}
	}
	if kind == CommissionSale {
		if err := s.Ledger.Post(u, domain.FieldAffiliateSaleCount, decimal.NewFromInt(1), reason); err != nil {
			return nil, err
		}
	}
	if err := tx.PutUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// saleCommissionTx computes and credits the commission for a sale inside tx.
func (s *AffiliateService) saleCommissionTx(ctx context.Context, tx store.Tx, referrerID string, price decimal.Decimal, p config.Product, optionID, buyerName string) (decimal.Decimal, error) {
	ref, err := s.Ledger.Load(ctx, tx, referrerID)
	if err != nil {
		return decimal.Zero, err
	}
	amount := Commission(ref, price, p, optionID, s.Rules, s.events.CommissionBonus(), s.Now())
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	if _, err := s.credit(ctx, tx, referrerID, amount, CommissionSale, fmt.Sprintf("Commission sur l'achat de %s", buyerName)); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// afterCommission runs the follow-ups of a credited commission.
func (s *AffiliateService) afterCommission(ctx context.Context, referrerID string, amount decimal.Decimal, kind string, dm domain.Message) {
	metrics.CommissionsPaid.WithLabelValues(kind).Inc()
	if _, err := s.achievements.Check(ctx, referrerID); err != nil {
		s.log.Error("achievement check failed", "user_id", referrerID, "error", err)
	}
	s.announcer.DM(ctx, referrerID, dm)
	s.log.Info("commission paid", "referrer_id", referrerID, "kind", kind, "amount", amount.String())
}

// PayCashoutCommission rewards the referrer of a member whose cashout was approved.
func (s *AffiliateService) PayCashoutCommission(ctx context.Context, referrerID, referralName string, payout decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		ref, err := s.Ledger.Load(ctx, tx, referrerID)
		if err != nil {
			return err
		}
		amount = CashoutCommission(ref, payout, s.Rules, s.Now())
		if !amount.IsPositive() {
			return nil
		}
		_, err = s.credit(ctx, tx, referrerID, amount, CommissionCashout, fmt.Sprintf("Commission sur le retrait de %s", referralName))
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("cashout commission: %w", err)
	}
	if amount.IsPositive() {
		s.afterCommission(ctx, referrerID, amount, CommissionCashout, Text(fmt.Sprintf(
			"💸 Votre filleul **%s** a effectué un retrait ! Vous recevez **%s crédits** de commission.", referralName, amount.StringFixed(2))))
	}
	return amount, nil
}
