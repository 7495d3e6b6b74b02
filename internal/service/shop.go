package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

type ShopService struct {
	Deps
	lottery *LotteryService
	economy *EconomyService
	log     *slog.Logger
}

func NewShopService(d Deps, lottery *LotteryService, economy *EconomyService) *ShopService {
	return &ShopService{Deps: d, lottery: lottery, economy: economy, log: logger.Component("shop")}
}

// Items lists the credit shop.
func (s *ShopService) Items() []config.ShopItem {
	return s.Catalog.ShopItems
}

// BuyResult describes what a purchase did. NeedsAmount means the item is
// priced per unit and the caller must ask how many credits to spend.
type BuyResult struct {
	Item        config.ShopItem
	Booster     *domain.Booster
	Lottery     *LotteryResult
	NeedsAmount bool
}

// Buy spends credits on a shop item and applies its effect.
func (s *ShopService) Buy(ctx context.Context, userID, displayName, itemID string) (*BuyResult, error) {
	item, ok := s.Catalog.ShopItem(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
	}
	res := &BuyResult{Item: item}
	switch item.Effect.Kind {
	case config.EffectXPPurchase:
		res.NeedsAmount = true
		return res, nil
	case config.EffectLotteryTicket:
		lr, err := s.lottery.Join(ctx, userID, displayName, decimal.NewFromFloat(item.Cost))
		if err != nil {
			return nil, err
		}
		res.Lottery = lr
		return res, nil
	case config.EffectXPBooster, config.EffectCommissionBooster:
	default:
		return nil, fmt.Errorf("%w: effect %q", ErrUnknownItem, item.Effect.Kind)
	}

	cost := decimal.NewFromFloat(item.Cost)
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cost.IsPositive() {
			if err := s.Ledger.Debit(u, domain.FieldStoreCredit, cost, "Achat boutique: "+item.Name); err != nil {
				return err
			}
		}
		b := domain.Booster{
			Kind:      domain.BoosterKind(item.Effect.Kind),
			ExpiresAt: s.Now().Add(item.Effect.Duration),
		}
		if b.Kind == domain.BoosterXP {
			b.Multiplier = item.Effect.Multiplier
		} else {
			b.Bonus = item.Effect.Bonus
		}
		if u.ActiveBoosters == nil {
			u.ActiveBoosters = map[string]domain.Booster{}
		}
		u.ActiveBoosters[item.Effect.Slot] = b
		res.Booster = &b
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		return appendAudit(ctx, tx, userID, userID, domain.AuditActionShopPurchase, domain.AuditCategoryEconomy,
			map[string]interface{}{"item": item.ID, "cost": cost.String()})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("shop purchase", "user_id", userID, "item", item.ID)
	return res, nil
}

// BuyXP converts a user-typed credit amount into XP.
func (s *ShopService) BuyXP(ctx context.Context, userID, rawAmount string) (xp, level int64, err error) {
	credits, err := ParseCredits(rawAmount)
	if err != nil {
		return 0, 0, err
	}
	return s.economy.PurchaseXP(ctx, userID, credits)
}
