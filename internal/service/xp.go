package service

import (
	"context"
	"errors"
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

// XP sources, used for metrics and to pick the message rules.
const (
	SourceMessage     = "message"
	SourceGrant       = "grant"
	SourcePurchase    = "purchase"
	SourceAchievement = "achievement"
	SourceMission     = "mission"
	SourceReferral    = "referral"
	SourceAdmin       = "admin"
)

const referralMilestoneLevel = 5

// XPNeeded is the total XP required to leave level.
func XPNeeded(level int64, r config.LevelRules) int64 {
	return int64(r.BaseXP * math.Pow(r.Multiplier, float64(level)))
}

// LevelFor returns the level reached from level with xp, handling several
// levels at once. It never goes down.
func LevelFor(xp, level int64, r config.LevelRules) int64 {
	if level < 1 {
		level = 1
	}
	for xp >= XPNeeded(level, r) {
		level++
	}
	return level
}

// ComputeBoost returns 1 plus the VIP tier boost and every running XP booster.
func ComputeBoost(u *domain.User, vip config.VIPRules, now time.Time) float64 {
	boost := 1.0
	if u.VIP.Active(now) {
		tiers := slices.Clone(vip.XPBoostTiers)
		slices.SortStableFunc(tiers, func(a, b config.XPBoostTier) int { return b.ConsecutiveMonths - a.ConsecutiveMonths })
		for _, t := range tiers {
			if u.VIP.ConsecutiveMonths >= t.ConsecutiveMonths {
				boost += t.Boost
				break
			}
		}
	}
	for _, b := range u.ActiveBoosters {
		if b.Kind == domain.BoosterXP && b.Active(now) {
			boost += b.Multiplier - 1.0
		}
	}
	return boost
}

// FinalXP applies the boost, truncates, then applies the event multiplier.
func FinalXP(base int64, boost, eventMultiplier float64) int64 {
	boosted := math.Floor(float64(base) * boost)
	return int64(boosted * eventMultiplier)
}

// GrantResult describes one XP grant.
type GrantResult struct {
	Granted  int64
	OldLevel int64
	NewLevel int64
}

func (r GrantResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

type XPService struct {
	Deps
	events       *EventState
	achievements *AchievementService
	announcer    *Announcer
	audit        *AuditService
	log          *slog.Logger
}

func NewXPService(d Deps, events *EventState, achievements *AchievementService, announcer *Announcer, audit *AuditService) *XPService {
	return &XPService{
		Deps:         d,
		events:       events,
		achievements: achievements,
		announcer:    announcer,
		audit:        audit,
		log:          logger.Component("xp"),
	}
}

// GrantMessageXP rewards a chat message. Word-count filtering is the caller's job.
func (s *XPService) GrantMessageXP(ctx context.Context, userID string) (GrantResult, error) {
	if !s.Rules.XP.Enabled {
		return GrantResult{}, nil
	}
	if !s.Cooldown.Allow(ctx, "xp:"+userID, s.Rules.XP.Cooldown()) {
		return GrantResult{}, nil
	}
	return s.grant(ctx, userID, 0, SourceMessage, "Message envoyé", false)
}

// GrantXP adds a fixed amount, boosted like any other gain.
func (s *XPService) GrantXP(ctx context.Context, userID string, amount int64, source, reason string) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, nil
	}
	return s.grant(ctx, userID, amount, source, reason, false)
}

func (s *XPService) grant(ctx context.Context, userID string, base int64, source, reason string, fromAchievement bool) (GrantResult, error) {
	var res GrantResult
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		res = GrantResult{}
		u, err := s.Ledger.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.OldLevel, res.NewLevel = u.Level, u.Level

		amount := base
		if source == SourceMessage {
			if u.XPGated {
				return nil
			}
			now := s.Now()
			if u.LastMessageAt != nil && now.Sub(*u.LastMessageAt) < s.Rules.XP.Cooldown() {
				return nil
			}
			u.LastMessageAt = &now
			amount = randRange(s.Rand, s.Rules.XP.MessageMin, s.Rules.XP.MessageMax)
			if err := s.Ledger.Post(u, domain.FieldMessageCount, decimal.NewFromInt(1), reason); err != nil {
				return err
			}
		}

		final := FinalXP(amount, ComputeBoost(u, s.Rules.VIP, s.Now()), s.events.XPMultiplier())
		if final > 0 {
			delta := decimal.NewFromInt(final)
			if err := s.Ledger.Post(u, domain.FieldXP, delta, reason); err != nil {
				return err
			}
			if err := s.Ledger.Post(u, domain.FieldWeeklyXP, delta, "Gain hebdomadaire: "+reason); err != nil {
				return err
			}
			if u.GuildID != "" {
				if err := addGuildWeeklyXP(ctx, tx, u.GuildID, final); err != nil {
					return err
				}
			}
		}
		res.Granted = final
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return GrantResult{}, fmt.Errorf("grant xp: %w", err)
	}
	if res.Granted == 0 {
		return res, nil
	}
	metrics.XPGranted.WithLabelValues(source).Add(float64(res.Granted))

	level, err := s.CheckLevelUp(ctx, userID)
	if err != nil {
		s.log.Error("level check failed", "user_id", userID, "error", err)
	} else {
		res.NewLevel = level
	}
	if !fromAchievement {
		if _, err := s.achievements.Check(ctx, userID); err != nil {
			s.log.Error("achievement check failed", "user_id", userID, "error", err)
		}
	}
	if res.LeveledUp() {
		_, _ = s.announcer.Post(ctx, s.Rules.Channels.LevelUp, KindLevelUp,
			Text(fmt.Sprintf("🎉 Bravo <@%s>, tu as atteint le niveau **%d** !", userID, res.NewLevel)))
	}
	return res, nil
}

// addGuildWeeklyXP is a no-op when the guild no longer exists.
func addGuildWeeklyXP(ctx context.Context, tx store.Tx, guildID string, amount int64) error {
	g, err := tx.Guild(ctx, guildID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	g.WeeklyXP += amount
	return tx.PutGuild(ctx, g)
}

// CheckLevelUp moves the user to the level their XP reaches and pays the
// referral milestone. It returns the resulting level.
func (s *XPService) CheckLevelUp(ctx context.Context, userID string) (int64, error) {
	var (
		oldLevel, newLevel int64
		referrerID         string
		displayName        string
	)
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		referrerID = ""
		u, err := tx.User(ctx, userID)
		if err != nil {
			return err
		}
		oldLevel, newLevel = u.Level, u.Level
		displayName = u.DisplayName
		if u.XPGated {
			return nil
		}
		newLevel = LevelFor(u.XP, u.Level, s.Rules.Level)
		if newLevel <= oldLevel {
			return nil
		}
		if err := s.Ledger.Post(u, domain.FieldLevel, decimal.NewFromInt(newLevel-oldLevel), "Montée de niveau"); err != nil {
			return err
		}
		if s.milestoneDue(u) {
			u.Lvl5MilestoneRewarded = true
			referrerID = u.ReferrerID
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return 0, err
	}
	if newLevel > oldLevel {
		metrics.LevelUps.Inc()
		s.log.Info("level up", "user_id", userID, "from", oldLevel, "to", newLevel)
	}
	if referrerID != "" {
		s.payReferralMilestone(ctx, referrerID, userID, displayName)
	}
	return newLevel, nil
}

func (s *XPService) milestoneDue(u *domain.User) bool {
	if u.ReferrerID == "" || u.Lvl5MilestoneRewarded || u.Level < referralMilestoneLevel {
		return false
	}
	limit := time.Duration(s.Rules.XP.ReferralLevel5DaysLimit) * 24 * time.Hour
	return s.Now().Sub(u.JoinedAt) < limit
}

func (s *XPService) payReferralMilestone(ctx context.Context, referrerID, userID, displayName string) {
	bonus := s.Rules.XP.ReferralLevel5Bonus
	name := displayName
	if name == "" {
		name = "<@" + userID + ">"
	}
	if _, err := s.GrantXP(ctx, referrerID, bonus, SourceReferral, fmt.Sprintf("Filleul %s a atteint le niveau 5", name)); err != nil {
		s.log.Error("referral milestone grant failed", "referrer_id", referrerID, "error", err)
		return
	}
	s.announcer.DM(ctx, referrerID, Text(fmt.Sprintf(
		"🚀 Votre filleul <@%s> a atteint le niveau 5 rapidement ! Vous gagnez **%d XP** bonus !", userID, bonus)))
}

// SetXPGate freezes or unfreezes XP gains and leveling for a member.
func (s *XPService) SetXPGate(ctx context.Context, userID string, gated bool, adminID string) error {
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		u.XPGated = gated
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		return appendAudit(ctx, tx, adminID, userID, domain.AuditActionAdminXPGate, domain.AuditCategoryAdmin,
			map[string]interface{}{"gated": gated})
	})
	if err != nil {
		return fmt.Errorf("set xp gate: %w", err)
	}
	return nil
}

// AdminGrant is GrantXP on behalf of a staff member, audited.
func (s *XPService) AdminGrant(ctx context.Context, userID string, amount int64, reason, adminID string) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, ErrInvalidAmount
	}
	res, err := s.GrantXP(ctx, userID, amount, SourceAdmin, reason)
	if err != nil {
		return res, err
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionAdminGrantXP, userID, map[string]interface{}{
		"amount": amount, "granted": res.Granted, "reason": reason,
	})
	return res, nil
}
