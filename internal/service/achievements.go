package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

type AchievementService struct {
	Deps
	xp        *XPService
	announcer *Announcer
	log       *slog.Logger
}

func NewAchievementService(d Deps, announcer *Announcer) *AchievementService {
	return &AchievementService{Deps: d, announcer: announcer, log: logger.Component("achievements")}
}

// Check records every achievement whose trigger the user now meets and pays
// the XP rewards. Already earned achievements are never granted twice.
func (s *AchievementService) Check(ctx context.Context, userID string) ([]config.Achievement, error) {
	var earned []config.Achievement
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		earned = earned[:0]
		u, err := tx.User(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, a := range s.Catalog.Achievements {
			if u.HasAchievement(a.ID) {
				continue
			}
			v, err := u.Value(a.Field())
			if err != nil {
				s.log.Warn("achievement trigger names unknown counter", "achievement", a.ID, "type", a.Trigger.Type)
				continue
			}
			if v.LessThan(decimal.NewFromFloat(a.Trigger.Value)) {
				continue
			}
			if u.AddAchievement(a.ID) {
				earned = append(earned, a)
			}
		}
		if len(earned) == 0 {
			return nil
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return nil, fmt.Errorf("check achievements: %w", err)
	}

	for _, a := range earned {
		s.log.Info("achievement unlocked", "user_id", userID, "achievement", a.ID)
		if a.RewardXP > 0 && s.xp != nil {
			if _, err := s.xp.grant(ctx, userID, a.RewardXP, SourceAchievement, "Succès: "+a.Name, true); err != nil {
				s.log.Error("achievement reward failed", "user_id", userID, "achievement", a.ID, "error", err)
			}
		}
		s.announcer.DM(ctx, userID, domain.Message{
			Title:       "🏆 Succès Débloqué !",
			Description: fmt.Sprintf("**%s**\n%s", a.Name, a.Description),
			Color:       domain.ColorGold,
			Footer:      fmt.Sprintf("+%d XP", a.RewardXP),
		})
	}
	return earned, nil
}
