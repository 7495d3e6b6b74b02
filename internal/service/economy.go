package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

const (
	jobVIP          = "vip"
	refundReason    = "Remboursement - Erreur canal de retrait"
	denyRefundLabel = "Remboursement suite au refus de retrait"
)

type EconomyService struct {
	Deps
	xp        *XPService
	affiliate *AffiliateService
	missions  *MissionService
	announcer *Announcer
	log       *slog.Logger
}

func NewEconomyService(d Deps, xp *XPService, affiliate *AffiliateService, missions *MissionService, announcer *Announcer) *EconomyService {
	return &EconomyService{
		Deps:      d,
		xp:        xp,
		affiliate: affiliate,
		missions:  missions,
		announcer: announcer,
		log:       logger.Component("economy"),
	}
}

// Purchase is a sale recorded by staff.
type Purchase struct {
	UserID      string
	DisplayName string
	ProductID   string
	OptionID    string
	CreditUsed  decimal.Decimal
	RecordedBy  string
}

type PurchaseResult struct {
	Price      decimal.Decimal
	XPGranted  int64
	ReferrerID string
	Commission decimal.Decimal
	VIPUntil   *time.Time
}

// RecordPurchase applies a sale to the buyer and pays the referrer's commission
// in one transaction, then grants the purchase XP.
func (s *EconomyService) RecordPurchase(ctx context.Context, p Purchase) (*PurchaseResult, error) {
	product, ok := s.Catalog.Product(p.ProductID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, p.ProductID)
	}
	price := decimal.NewFromFloat(product.Price)
	if o, ok := product.Option(p.OptionID); ok {
		price = decimal.NewFromFloat(o.Price)
	}
	if p.CreditUsed.IsNegative() {
		return nil, ErrInvalidAmount
	}
	buyerName := p.DisplayName
	if buyerName == "" {
		buyerName = p.UserID
	}

	var res PurchaseResult
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = PurchaseResult{Price: price}
		now := s.Now()
		u, err := s.Ledger.Load(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		if p.DisplayName != "" {
			u.DisplayName = p.DisplayName
		}
		if product.IsSubscription() {
			months := 1
			if u.VIP != nil {
				months = u.VIP.ConsecutiveMonths + 1
			}
			u.VIP = &domain.VIPStatus{
				StartsAt:          now,
				ExpiresAt:         now.AddDate(0, 0, s.Rules.VIP.DurationDays),
				ConsecutiveMonths: months,
			}
			until := u.VIP.ExpiresAt
			res.VIPUntil = &until
		}
		reason := "Achat: " + product.Name
		if err := s.Ledger.Post(u, domain.FieldPurchaseCount, decimal.NewFromInt(1), reason); err != nil {
			return err
		}
		if err := s.Ledger.Post(u, domain.FieldPurchaseTotalValue, price, reason); err != nil {
			return err
		}
		if p.CreditUsed.IsPositive() {
			if err := s.Ledger.Debit(u, domain.FieldStoreCredit, p.CreditUsed, "Crédit utilisé pour: "+product.Name); err != nil {
				return err
			}
		}
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}

		if u.ReferrerID != "" && u.ReferrerID != u.ID {
			res.ReferrerID = u.ReferrerID
			res.Commission, err = s.affiliate.saleCommissionTx(ctx, tx, u.ReferrerID, price, product, p.OptionID, buyerName)
			if err != nil {
				return err
			}
		}
		return appendAudit(ctx, tx, p.RecordedBy, p.UserID, domain.AuditActionPurchaseRecorded, domain.AuditCategoryEconomy,
			map[string]interface{}{
				"product":     product.ID,
				"option":      p.OptionID,
				"price":       price.String(),
				"credit_used": p.CreditUsed.String(),
				"commission":  res.Commission.String(),
			})
	})
	if err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	if product.IsSubscription() && s.Rules.Roles.VIPPremium != "" {
		if err := s.Platform.AddRole(ctx, p.UserID, s.Rules.Roles.VIPPremium); err != nil {
			s.log.Warn("vip role not granted", "user_id", p.UserID, "error", err)
		}
	}

	xp := price.Mul(decimal.NewFromFloat(s.Rules.XP.PerEuroSpent)).IntPart()
	if xp > 0 {
		g, err := s.xp.GrantXP(ctx, p.UserID, xp, SourcePurchase, "Achat: "+product.Name)
		if err != nil {
			s.log.Error("purchase xp failed", "user_id", p.UserID, "error", err)
		}
		res.XPGranted = g.Granted
	} else if _, err := s.xp.achievements.Check(ctx, p.UserID); err != nil {
		s.log.Error("achievement check failed", "user_id", p.UserID, "error", err)
	}
	if err := s.missions.Progress(ctx, p.UserID, domain.MissionActionPurchase, 1); err != nil {
		s.log.Error("mission progress failed", "user_id", p.UserID, "error", err)
	}
	if res.Commission.IsPositive() {
		s.affiliate.afterCommission(ctx, res.ReferrerID, res.Commission, CommissionSale, Text(fmt.Sprintf(
			"💰 Votre filleul **%s** a effectué un achat ! Vous recevez **%s crédits** de commission.", buyerName, res.Commission.StringFixed(2))))
	}
	return &res, nil
}

// PurchaseXP converts store credit to XP at the configured price per point.
func (s *EconomyService) PurchaseXP(ctx context.Context, userID string, credits decimal.Decimal) (int64, int64, error) {
	if !credits.IsPositive() {
		return 0, 0, ErrInvalidAmount
	}
	cost := decimal.NewFromFloat(s.Rules.XP.CostPerXPInCredits)
	xp := credits.Div(cost).Floor().IntPart()
	if xp <= 0 {
		return 0, 0, fmt.Errorf("%w: %s credits buy no XP", ErrInvalidAmount, credits)
	}

	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.Ledger.Debit(u, domain.FieldStoreCredit, credits, fmt.Sprintf("Achat de %d XP", xp)); err != nil {
			return err
		}
		if err := s.Ledger.Post(u, domain.FieldXP, decimal.NewFromInt(xp), "Achat d'XP avec crédits"); err != nil {
			return err
		}
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		return appendAudit(ctx, tx, userID, userID, domain.AuditActionXPPurchase, domain.AuditCategoryEconomy,
			map[string]interface{}{"credits": credits.String(), "xp": xp})
	})
	if err != nil {
		return 0, 0, err
	}
	metrics.XPGranted.WithLabelValues(SourcePurchase).Add(float64(xp))
	level, err := s.xp.CheckLevelUp(ctx, userID)
	if err != nil {
		s.log.Error("level check failed", "user_id", userID, "error", err)
	}
	return xp, level, nil
}

// ParseCredits reads a user-typed amount, accepting a decimal comma.
func ParseCredits(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return v, nil
}

// CashoutRequest is a member's withdrawal form.
type CashoutRequest struct {
	UserID      string
	DisplayName string
	Amount      string
	PaypalEmail string
}

// withdrawalThreshold is the minimum withdrawal for level.
func withdrawalThreshold(r config.CashoutRules, level int64) decimal.Decimal {
	tiers := slices.Clone(r.Thresholds)
	slices.SortStableFunc(tiers, func(a, b config.WithdrawalThreshold) int { return b.Level - a.Level })
	for _, t := range tiers {
		if level >= int64(t.Level) {
			return decimal.NewFromFloat(t.Threshold)
		}
	}
	return decimal.NewFromFloat(r.DefaultThreshold)
}

// SubmitCashout debits the credits and posts the request for staff review. The
// credits are refunded when the request cannot be posted.
func (s *EconomyService) SubmitCashout(ctx context.Context, req CashoutRequest) (*domain.PendingCashout, error) {
	amount, err := ParseCredits(req.Amount)
	if err != nil {
		return nil, err
	}
	rules := s.Rules.Cashout
	payout := amount.Mul(decimal.NewFromFloat(rules.CreditToEURRate)).Round(2)

	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Load(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if u.StoreCredit.LessThan(amount) {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, u.StoreCredit.StringFixed(2), amount.StringFixed(2))
		}
		if u.Level < rules.MinimumLevel {
			return fmt.Errorf("%w: level %d required", ErrLevelTooLow, rules.MinimumLevel)
		}
		if age := s.Now().Sub(u.JoinedAt); age < time.Duration(rules.MinimumAccountAgeDays)*24*time.Hour {
			return fmt.Errorf("%w: %d days required", ErrAccountTooYoung, rules.MinimumAccountAgeDays)
		}
		if threshold := withdrawalThreshold(rules, u.Level); amount.LessThan(threshold) {
			return fmt.Errorf("%w: minimum %s", ErrBelowThreshold, threshold.StringFixed(2))
		}
		if err := s.Ledger.Debit(u, domain.FieldStoreCredit, amount, "Demande de retrait"); err != nil {
			return err
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	ref, postErr := s.announcer.Post(ctx, s.Rules.Channels.CashoutRequests, "", domain.Message{
		Title: "Nouvelle Demande de Retrait",
		Color: domain.ColorOrange,
		Fields: []domain.MessageField{
			{Name: "Membre", Value: fmt.Sprintf("<@%s> (%s)", req.UserID, req.DisplayName)},
			{Name: "Crédits déduits", Value: amount.StringFixed(2), Inline: true},
			{Name: "Montant à envoyer", Value: payout.StringFixed(2) + "€", Inline: true},
			{Name: "Email PayPal", Value: req.PaypalEmail},
		},
		Buttons: []domain.Button{
			{Label: "✅ Approuver", ActionID: domain.ActionID(domain.ActionCashoutApprove, ""), Style: domain.ButtonSuccess},
			{Label: "❌ Refuser", ActionID: domain.ActionID(domain.ActionCashoutDeny, ""), Style: domain.ButtonDanger},
		},
	})
	if postErr != nil {
		if _, err := s.Ledger.Apply(ctx, req.UserID, domain.FieldStoreCredit, amount, refundReason); err != nil {
			s.log.Error("cashout refund failed", "user_id", req.UserID, "amount", amount.String(), "error", err)
		}
		return nil, fmt.Errorf("post cashout request: %w", postErr)
	}

	pending := &domain.PendingCashout{
		ID:             ref.MessageID,
		UserID:         req.UserID,
		CreditDeducted: amount,
		PayoutEUR:      payout,
		PaypalEmail:    req.PaypalEmail,
		ChannelID:      ref.ChannelID,
		CreatedAt:      s.Now(),
	}
	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutCashout(ctx, pending); err != nil {
			return err
		}
		return appendAudit(ctx, tx, req.UserID, req.UserID, domain.AuditActionCashoutRequest, domain.AuditCategoryCashout,
			map[string]interface{}{"credits": amount.String(), "payout_eur": payout.String()})
	})
	if err != nil {
		// the staff message exists but cannot be acted on; give the credits back
		_ = s.Platform.DeleteMessage(ctx, ref)
		if _, rerr := s.Ledger.Apply(ctx, req.UserID, domain.FieldStoreCredit, amount, refundReason); rerr != nil {
			s.log.Error("cashout refund failed", "user_id", req.UserID, "amount", amount.String(), "error", rerr)
		}
		return nil, fmt.Errorf("save cashout request: %w", err)
	}
	s.log.Info("cashout requested", "user_id", req.UserID, "credits", amount.String(), "message_id", ref.MessageID)
	return pending, nil
}

// Staff identifies who handled a request.
type Staff struct {
	ID          string
	DisplayName string
}

// ApproveCashout closes a pending request as paid. The request record and the
// cashout counter change together; the referrer commission and notices follow.
func (s *EconomyService) ApproveCashout(ctx context.Context, messageID string, staff Staff) (*domain.PendingCashout, error) {
	var (
		c          *domain.PendingCashout
		referrerID string
		name       string
	)
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = tx.Cashout(ctx, messageID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCashoutNotFound
		}
		if err != nil {
			return err
		}
		u, err := s.Ledger.Add(ctx, tx, c.UserID, domain.FieldCashoutCount, decimal.NewFromInt(1), "Approbation de retrait")
		if err != nil {
			return err
		}
		referrerID, name = u.ReferrerID, u.DisplayName
		if err := tx.DeleteCashout(ctx, messageID); err != nil {
			return err
		}
		return appendAudit(ctx, tx, staff.ID, c.UserID, domain.AuditActionCashoutApprove, domain.AuditCategoryCashout,
			map[string]interface{}{"request": messageID, "payout_eur": c.PayoutEUR.String()})
	})
	if err != nil {
		return nil, err
	}
	if name == "" {
		if m, err := s.Platform.Member(ctx, c.UserID); err == nil {
			name = m.DisplayName
		} else {
			name = "Utilisateur Inconnu"
		}
	}

	if _, err := s.xp.achievements.Check(ctx, c.UserID); err != nil {
		s.log.Error("achievement check failed", "user_id", c.UserID, "error", err)
	}
	s.announcer.DM(ctx, c.UserID, Text(fmt.Sprintf(
		"✅ Votre demande de retrait de `%s€` a été approuvée ! Le paiement sera effectué sous peu sur l'adresse `%s`.",
		c.PayoutEUR.StringFixed(2), c.PaypalEmail)))
	if referrerID != "" {
		if _, err := s.affiliate.PayCashoutCommission(ctx, referrerID, name, c.PayoutEUR); err != nil {
			s.log.Error("cashout commission failed", "referrer_id", referrerID, "error", err)
		}
	}
	_, _ = s.announcer.Post(ctx, s.Rules.Channels.PublicTransactions, KindTransaction, domain.Message{
		Title:       fmt.Sprintf("✅ Demande de retrait approuvée pour **%s**.", name),
		Description: fmt.Sprintf("**Montant :** `%s€`\n**Validé par :** <@%s>", c.PayoutEUR.StringFixed(2), staff.ID),
		Color:       domain.ColorGreen,
	})
	s.closeRequest(ctx, c, "Demande de Retrait APPROUVÉE", domain.ColorGreen, "Approuvé par "+staff.DisplayName)
	return c, nil
}

// DenyCashout closes a pending request and refunds the credits.
func (s *EconomyService) DenyCashout(ctx context.Context, messageID string, staff Staff) (*domain.PendingCashout, error) {
	var c *domain.PendingCashout
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = tx.Cashout(ctx, messageID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCashoutNotFound
		}
		if err != nil {
			return err
		}
		if _, err := s.Ledger.Add(ctx, tx, c.UserID, domain.FieldStoreCredit, c.CreditDeducted, denyRefundLabel); err != nil {
			return err
		}
		if err := tx.DeleteCashout(ctx, messageID); err != nil {
			return err
		}
		return appendAudit(ctx, tx, staff.ID, c.UserID, domain.AuditActionCashoutDeny, domain.AuditCategoryCashout,
			map[string]interface{}{"request": messageID, "refunded": c.CreditDeducted.String()})
	})
	if err != nil {
		return nil, err
	}
	s.announcer.DM(ctx, c.UserID, Text(fmt.Sprintf(
		"❌ Votre demande de retrait a été refusée par le staff. Vos `%s` crédits vous ont été remboursés.", c.CreditDeducted.StringFixed(2))))
	s.closeRequest(ctx, c, "Demande de Retrait REFUSÉE", domain.ColorRed, "Refusé par "+staff.DisplayName)
	return c, nil
}

// closeRequest rewrites the staff message without its buttons.
func (s *EconomyService) closeRequest(ctx context.Context, c *domain.PendingCashout, title string, color int, footer string) {
	msg := domain.Message{
		Title: title,
		Color: color,
		Fields: []domain.MessageField{
			{Name: "Membre", Value: "<@" + c.UserID + ">"},
			{Name: "Crédits déduits", Value: c.CreditDeducted.StringFixed(2), Inline: true},
			{Name: "Montant à envoyer", Value: c.PayoutEUR.StringFixed(2) + "€", Inline: true},
			{Name: "Email PayPal", Value: c.PaypalEmail},
		},
		Footer: footer,
	}
	if err := s.Platform.EditMessage(ctx, MessageRef{ChannelID: c.ChannelID, MessageID: c.ID}, msg); err != nil {
		s.log.Warn("cashout message not updated", "message_id", c.ID, "error", err)
	}
}

// SweepVIP clears expired VIP subscriptions and removes the VIP role.
func (s *EconomyService) SweepVIP(ctx context.Context, now time.Time) (expired, failed int, err error) {
	users, err := s.Store.Users(ctx, store.UserQuery{HasVIP: true})
	if err != nil {
		return 0, 0, fmt.Errorf("list vip users: %w", err)
	}
	for _, listed := range users {
		if listed.VIP.Active(now) {
			continue
		}
		cleared := false
		err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
			u, err := tx.User(ctx, listed.ID)
			if err != nil {
				return err
			}
			if u.VIP == nil || u.VIP.Active(now) {
				cleared = false
				return nil
			}
			u.VIP = nil
			cleared = true
			return tx.PutUser(ctx, u)
		})
		if err != nil {
			failed++
			metrics.SweepEntityFailures.WithLabelValues(jobVIP).Inc()
			s.log.Error("vip expiry failed", "user_id", listed.ID, "error", err)
			continue
		}
		if !cleared {
			continue
		}
		expired++
		if role := s.Rules.Roles.VIPPremium; role != "" {
			if err := s.Platform.RemoveRole(ctx, listed.ID, role); err != nil {
				s.log.Warn("vip role not removed", "user_id", listed.ID, "error", err)
			}
		}
	}
	return expired, failed, nil
}
