// Package service implements the bot features: XP and levels, achievements,
// affiliate commissions, cashouts, missions, events, guilds, lottery,
// giveaways, the credit shop, moderation, tickets, promos and the weekly
// leaderboard. Services talk to members only through Platform.
package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ai"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/cache"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ledger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

// Deps is what every service is built from. Feed, AI, Cooldown, Lock, Rand
// and Now are optional.
type Deps struct {
	Store    store.Store
	Ledger   *ledger.Ledger
	Rules    *config.Rules
	Catalog  *config.Catalog
	Platform Platform
	Feed     Publisher
	AI       ai.TextGenerator
	Cooldown *cache.Cooldown
	Lock     *cache.Lock
	Rand     Random
	Now      func() time.Time
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type noFeed struct{}

func (noFeed) Publish(domain.Announcement) {}

func (d Deps) withDefaults() Deps {
	if d.Rand == nil {
		d.Rand = globalRand{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Feed == nil {
		d.Feed = noFeed{}
	}
	if d.AI == nil {
		d.AI = ai.Disabled{}
	}
	return d
}

// Services is the wired feature set used by the bot, the HTTP API and the scheduler.
type Services struct {
	Announcer    *Announcer
	Audit        *AuditService
	Events       *EventState
	XP           *XPService
	Achievements *AchievementService
	Affiliate    *AffiliateService
	Economy      *EconomyService
	Missions     *MissionService
	Guilds       *GuildService
	Lottery      *LotteryService
	Giveaways    *GiveawayService
	Shop         *ShopService
	Tickets      *TicketService
	Moderation   *ModerationService
	Promos       *PromoService
	Referrals    *ReferralService
	Leaderboard  *LeaderboardService
}

func New(d Deps) *Services {
	d = d.withDefaults()
	s := &Services{}
	s.Announcer = NewAnnouncer(d)
	s.Audit = NewAuditService(d.Store)
	s.Events = NewEventState(d, s.Announcer)
	s.Achievements = NewAchievementService(d, s.Announcer)
	s.XP = NewXPService(d, s.Events, s.Achievements, s.Announcer, s.Audit)
	s.Achievements.xp = s.XP
	s.Affiliate = NewAffiliateService(d, s.Events, s.Achievements, s.Announcer)
	s.Missions = NewMissionService(d, s.XP, s.Announcer)
	s.Economy = NewEconomyService(d, s.XP, s.Affiliate, s.Missions, s.Announcer)
	s.Guilds = NewGuildService(d, s.Announcer)
	s.Lottery = NewLotteryService(d, s.Announcer)
	s.Giveaways = NewGiveawayService(d, s.Announcer)
	s.Shop = NewShopService(d, s.Lottery, s.Economy)
	s.Tickets = NewTicketService(d, s.Announcer)
	s.Moderation = NewModerationService(d, s.Tickets, s.Announcer, s.Audit)
	s.Promos = NewPromoService(d, s.Announcer)
	s.Referrals = NewReferralService(d, s.XP, s.Missions, s.Achievements, s.Announcer)
	s.Leaderboard = NewLeaderboardService(d, s.Announcer)
	return s
}

// randRange returns a uniform integer in [lo, hi].
func randRange(r Random, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(r.IntN(int(hi-lo+1)))
}

// appendAudit records an audit entry inside tx.
func appendAudit(ctx context.Context, tx store.Tx, actorID, targetID, action, category string, details map[string]interface{}) error {
	return tx.AppendAudit(ctx, &domain.AuditLog{
		ActorID:  actorID,
		TargetID: targetID,
		Action:   action,
		Category: category,
		Details:  details,
	})
}
