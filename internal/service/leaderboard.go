package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ai"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

const (
	jobWeekly   = "weekly_reset"
	jobCoaching = "coaching"
	podiumSize  = 3
)

// Leaderboard categories.
var leaderboardFields = map[string]domain.Field{
	"xp":                 domain.FieldXP,
	"weekly_xp":          domain.FieldWeeklyXP,
	"affiliate_earnings": domain.FieldAffiliateEarnings,
	"referral_count":     domain.FieldReferralCount,
}

// LeaderboardCategories returns the accepted category names.
func LeaderboardCategories() []string {
	return []string{"xp", "weekly_xp", "affiliate_earnings", "referral_count"}
}

// LeaderboardField maps a category to the counter it ranks by.
func LeaderboardField(category string) (domain.Field, bool) {
	f, ok := leaderboardFields[category]
	return f, ok
}

var medals = map[int]string{1: "🥇", 2: "🥈", 3: "🥉"}

func rankLabel(rank int) string {
	if m, ok := medals[rank]; ok {
		return m
	}
	return "**#" + strconv.Itoa(rank) + "**"
}

type LeaderboardService struct {
	Deps
	announcer *Announcer
	log       *slog.Logger
}

func NewLeaderboardService(d Deps, announcer *Announcer) *LeaderboardService {
	return &LeaderboardService{Deps: d, announcer: announcer, log: logger.Component("leaderboard")}
}

// Top returns up to n users with a positive value in category, best first.
func (s *LeaderboardService) Top(ctx context.Context, category string, n int) ([]*domain.User, error) {
	field, ok := leaderboardFields[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if n <= 0 {
		n = 10
	}
	return s.Store.Users(ctx, store.UserQuery{Field: field, Min: decimal.Zero, Limit: n})
}

// TopGuilds returns up to n guilds by weekly XP.
func (s *LeaderboardService) TopGuilds(ctx context.Context, n int) ([]*domain.Guild, error) {
	if n <= 0 {
		n = 10
	}
	return s.Store.Guilds(ctx, store.GuildQuery{MinWeeklyXP: 1, Limit: n})
}

// Profile is a member's standing.
type Profile struct {
	User           *domain.User
	Guild          *domain.Guild
	NextLevelXP    int64
	XPBoost        float64
	CommissionRate float64
	VIPActive      bool
}

// Profile returns the member's record and derived figures. Unknown members
// get a default record.
func (s *LeaderboardService) Profile(ctx context.Context, userID string) (*Profile, error) {
	now := s.Now()
	u, err := store.UserOrDefault(ctx, s.Store, userID, now, s.Rules.Missions.OptInDefault)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		User:        u,
		NextLevelXP: XPNeeded(u.Level, s.Rules.Level),
		XPBoost:     ComputeBoost(u, s.Rules.VIP, now),
		VIPActive:   u.VIP.Active(now),
	}
	p.CommissionRate, _ = CommissionRate(u, s.Rules, 0, now)
	if u.GuildID != "" {
		g, err := s.Store.Guild(ctx, u.GuildID)
		switch {
		case err == nil:
			p.Guild = g
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return p, nil
}

// WeeklyReport summarises one weekly reset.
type WeeklyReport struct {
	TopUsers  []*domain.User
	TopGuilds []*domain.Guild
	Failed    int
}

// WeeklyReset closes the week: leaderboard roles and guild bonuses move to
// the new podium, both leaderboards are announced and the weekly counters
// go back to zero. Every user and guild is written in its own transaction.
func (s *LeaderboardService) WeeklyReset(ctx context.Context) (*WeeklyReport, error) {
	rep := &WeeklyReport{}
	fail := func(msg string, args ...any) {
		rep.Failed++
		metrics.SweepEntityFailures.WithLabelValues(jobWeekly).Inc()
		s.log.Error(msg, args...)
	}

	// 1. strip last week's roles
	for _, role := range s.Rules.Roles.LeaderboardTop {
		if role == "" {
			continue
		}
		holders, err := s.Platform.RoleMembers(ctx, role)
		if err != nil {
			s.log.Warn("leaderboard role lookup failed", "role", role, "error", err)
			continue
		}
		for _, id := range holders {
			if err := s.Platform.RemoveRole(ctx, id, role); err != nil {
				s.log.Warn("leaderboard role not removed", "role", role, "user_id", id, "error", err)
			}
		}
	}

	// 2. clear guild bonuses
	bonused, err := s.Store.Users(ctx, store.UserQuery{HasGuildBonus: true})
	if err != nil {
		return nil, fmt.Errorf("list guild bonuses: %w", err)
	}
	for _, u := range bonused {
		if err := s.setGuildBonus(ctx, u.ID, nil); err != nil {
			fail("guild bonus not cleared", "user_id", u.ID, "error", err)
		}
	}

	// 3. member podium
	rep.TopUsers, err = s.Store.Users(ctx, store.UserQuery{Field: domain.FieldWeeklyXP, Min: decimal.Zero, Limit: podiumSize})
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	var lines []string
	for i, u := range rep.TopUsers {
		rank := i + 1
		name := u.DisplayName
		if m, err := s.Platform.Member(ctx, u.ID); err == nil {
			name = m.DisplayName
			if rank <= len(s.Rules.Roles.LeaderboardTop) && s.Rules.Roles.LeaderboardTop[rank-1] != "" {
				if err := s.Platform.AddRole(ctx, u.ID, s.Rules.Roles.LeaderboardTop[rank-1]); err != nil {
					s.log.Warn("leaderboard role not granted", "user_id", u.ID, "error", err)
				}
			}
		}
		if name == "" {
			name = "<@" + u.ID + ">"
		}
		lines = append(lines, fmt.Sprintf("%s **%s** - `%d` XP", rankLabel(rank), name, u.WeeklyXP))
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "Personne n'a gagné d'XP cette semaine."
	}
	_, _ = s.announcer.Post(ctx, s.Rules.Channels.WeeklyLeaderboard, KindLeaderboard, domain.Message{
		Title:       "🏆 Classement Hebdomadaire des Membres (XP) 🏆",
		Description: desc,
		Color:       domain.ColorGold,
	})

	// 4. guild podium and bonuses
	rep.TopGuilds, err = s.Store.Guilds(ctx, store.GuildQuery{MinWeeklyXP: 1, Limit: podiumSize})
	if err != nil {
		return nil, fmt.Errorf("top guilds: %w", err)
	}
	lines = lines[:0]
	for i, g := range rep.TopGuilds {
		rank := i + 1
		lines = append(lines, fmt.Sprintf("%s **%s** - `%d` XP", rankLabel(rank), g.Name, g.WeeklyXP))
		reward, ok := s.Rules.Guilds.RewardFor(rank)
		if !ok {
			continue
		}
		bonus := &domain.GuildBonus{
			Type:                  "top" + strconv.Itoa(rank),
			CommissionRate:        reward.CommissionRate,
			CommissionBoost:       reward.CommissionBoost,
			MaxCommissionRate:     reward.MaxCommissionRate,
			CashoutCommissionRate: reward.CashoutCommissionRate,
		}
		for _, id := range g.Members {
			if err := s.setGuildBonus(ctx, id, bonus); err != nil {
				fail("guild bonus not granted", "user_id", id, "guild_id", g.ID, "error", err)
			}
		}
	}
	desc = strings.Join(lines, "\n")
	if desc == "" {
		desc = "Aucune guilde n'a gagné d'XP cette semaine."
	}
	_, _ = s.announcer.Post(ctx, s.Rules.Channels.GuildLeaderboard, KindGuildLeaderboard, domain.Message{
		Title:       "🛡️ Classement Hebdomadaire des Guildes 🛡️",
		Description: desc,
		Color:       domain.ColorBlurple,
		Footer:      "Les bonus de commission sont actifs pour la semaine à venir !",
	})

	// 5. weekly counters
	users, err := s.Store.Users(ctx, store.UserQuery{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if err := s.resetUser(ctx, u.ID); err != nil {
			fail("weekly counters not reset", "user_id", u.ID, "error", err)
		}
	}
	guilds, err := s.Store.Guilds(ctx, store.GuildQuery{})
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	for _, g := range guilds {
		err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
			cur, err := tx.Guild(ctx, g.ID)
			if err != nil {
				return err
			}
			cur.WeeklyXP = 0
			return tx.PutGuild(ctx, cur)
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			fail("guild weekly xp not reset", "guild_id", g.ID, "error", err)
		}
	}
	s.log.Info("weekly reset done", "top_users", len(rep.TopUsers), "top_guilds", len(rep.TopGuilds), "failed", rep.Failed)
	return rep, nil
}

func (s *LeaderboardService) setGuildBonus(ctx context.Context, userID string, bonus *domain.GuildBonus) error {
	return s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.User(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		u.GuildBonus = bonus
		return tx.PutUser(ctx, u)
	})
}

func (s *LeaderboardService) resetUser(ctx context.Context, userID string) error {
	return s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.User(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if u.WeeklyXP == 0 && u.WeeklyAffiliateEarnings.IsZero() && u.AffiliateBooster.IsZero() {
			return nil
		}
		u.WeeklyXP = 0
		u.WeeklyAffiliateEarnings = decimal.Zero
		u.AffiliateBooster = decimal.Zero
		u.UpdatedAt = s.Now()
		return tx.PutUser(ctx, u)
	})
}

// Coaching sends an AI-written weekly summary to every member above the
// activity floor. It must run before WeeklyReset clears the counters.
func (s *LeaderboardService) Coaching(ctx context.Context) (sent, failed int, err error) {
	tpl := s.Rules.AI.CoachPrompt
	if tpl == "" {
		return 0, 0, nil
	}
	users, err := s.Store.Users(ctx, store.UserQuery{
		Field: domain.FieldWeeklyXP,
		Min:   decimal.NewFromInt(s.Rules.AI.CoachMinWeeklyXP),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("list active users: %w", err)
	}
	for _, u := range users {
		if ctx.Err() != nil {
			return sent, failed, ctx.Err()
		}
		name := u.DisplayName
		if m, err := s.Platform.Member(ctx, u.ID); err == nil {
			name = m.DisplayName
		} else if errors.Is(err, ErrMemberNotFound) {
			continue
		}
		prompt := ai.FormatPrompt(tpl, map[string]string{
			"username":                  name,
			"weekly_xp":                 strconv.FormatInt(u.WeeklyXP, 10),
			"weekly_affiliate_earnings": u.WeeklyAffiliateEarnings.StringFixed(2),
		})
		text, err := ai.Ask(ctx, s.AI, ai.PurposeCoach, prompt, false)
		if errors.Is(err, ai.ErrDisabled) {
			return sent, failed, nil
		}
		if err != nil || strings.TrimSpace(text) == "" {
			failed++
			metrics.SweepEntityFailures.WithLabelValues(jobCoaching).Inc()
			continue
		}
		if s.announcer.DM(ctx, u.ID, Text(text)) {
			sent++
		}
	}
	return sent, failed, nil
}

// RunWeekly runs coaching then the reset, as scheduled at the week boundary.
func (s *LeaderboardService) RunWeekly(ctx context.Context, _ time.Time) error {
	if _, _, err := s.Coaching(ctx); err != nil {
		s.log.Error("coaching failed", "error", err)
	}
	_, err := s.WeeklyReset(ctx)
	return err
}
