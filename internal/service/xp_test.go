package service

import (
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelCurve(t *testing.T) {
	r := config.LevelRules{BaseXP: 150, Multiplier: 1.6}
	assert.Equal(t, int64(240), XPNeeded(1, r))
	assert.Equal(t, int64(384), XPNeeded(2, r))
	assert.Equal(t, int64(614), XPNeeded(3, r))

	assert.Equal(t, int64(1), LevelFor(15, 1, r))
	assert.Equal(t, int64(2), LevelFor(240, 1, r))
	assert.Equal(t, int64(4), LevelFor(700, 1, r), "several levels at once")
	assert.Equal(t, int64(7), LevelFor(10, 7, r), "never goes down")
	assert.Equal(t, int64(1), LevelFor(0, 0, r))
}

func TestFinalXP(t *testing.T) {
	assert.Equal(t, int64(250), FinalXP(100, 1.25, 2.0), "booster 1.25 under double XP")
	assert.Equal(t, int64(44), FinalXP(15, 1.5, 2.0), "boost is truncated before the event multiplier")
	assert.Equal(t, int64(0), FinalXP(0, 3, 2))
}

func TestComputeBoost(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	vip := config.VIPRules{XPBoostTiers: []config.XPBoostTier{
		{ConsecutiveMonths: 1, Boost: 0.25},
		{ConsecutiveMonths: 3, Boost: 0.5},
	}}

	u := domain.NewUser("u1", now, true)
	assert.Equal(t, 1.0, ComputeBoost(u, vip, now))

	u.VIP = &domain.VIPStatus{ExpiresAt: now.Add(time.Hour), ConsecutiveMonths: 4}
	u.ActiveBoosters["xp"] = domain.Booster{Kind: domain.BoosterXP, Multiplier: 1.5, ExpiresAt: now.Add(time.Hour)}
	u.ActiveBoosters["old"] = domain.Booster{Kind: domain.BoosterXP, Multiplier: 3, ExpiresAt: now.Add(-time.Hour)}
	assert.InDelta(t, 2.0, ComputeBoost(u, vip, now), 1e-9)

	u.VIP.ExpiresAt = now.Add(-time.Minute)
	assert.InDelta(t, 1.5, ComputeBoost(u, vip, now), 1e-9)
}

func TestGrantXPLevelsUpAndAnnounces(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.XP.GrantXP(env.ctx, "u1", 15, SourceGrant, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Granted)
	assert.False(t, res.LeveledUp())
	assert.Equal(t, int64(1), env.user("u1").Level)
	assert.Empty(t, env.platform.postsTo("level-up"))

	res, err = env.svc.XP.GrantXP(env.ctx, "u1", 300, SourceGrant, "test")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp())
	assert.Equal(t, int64(2), res.NewLevel)

	u := env.user("u1")
	assert.Equal(t, int64(315), u.XP)
	assert.Equal(t, int64(315), u.WeeklyXP)
	assert.Equal(t, int64(2), u.Level)
	assert.Len(t, env.platform.postsTo("level-up"), 1)
}

func TestGrantXPAppliesDoubleXPEvent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Events.Start(env.ctx, domain.EventDoubleXP, time.Hour, "admin")
	require.NoError(t, err)

	res, err := env.svc.XP.GrantXP(env.ctx, "u1", 100, SourceGrant, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Granted)

	env.now = env.now.Add(2 * time.Hour)
	res, err = env.svc.XP.GrantXP(env.ctx, "u1", 100, SourceGrant, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Granted, "expired event no longer applies")
}

func TestGrantXPFeedsGuildWeeklyXP(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})
	g, err := env.svc.Guilds.Create(env.ctx, "owner", "Les Loups", "")
	require.NoError(t, err)

	_, err = env.svc.XP.GrantXP(env.ctx, "owner", 40, SourceGrant, "test")
	require.NoError(t, err)

	stored, err := env.store.Guild(env.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stored.WeeklyXP)
}

func TestGrantMessageXPRespectsCooldownAndGate(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.XP.GrantMessageXP(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Granted, "lowest roll of the 10-20 range")
	assert.Equal(t, int64(1), env.user("u1").MessageCount)

	res, err = env.svc.XP.GrantMessageXP(env.ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, res.Granted, "within cooldown")

	env.now = env.now.Add(61 * time.Second)
	res, err = env.svc.XP.GrantMessageXP(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Granted)

	require.NoError(t, env.svc.XP.SetXPGate(env.ctx, "u1", true, "admin"))
	env.now = env.now.Add(61 * time.Second)
	res, err = env.svc.XP.GrantMessageXP(env.ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, res.Granted)
	assert.Equal(t, int64(20), env.user("u1").XP)
}

func TestReferralMilestonePaidOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "ref"})
	env.seed(&domain.User{ID: "kid", ReferrerID: "ref", XP: 1500, Level: 4, JoinedAt: env.now.Add(-48 * time.Hour)})

	_, err := env.svc.XP.GrantXP(env.ctx, "kid", 100, SourceGrant, "test")
	require.NoError(t, err)

	kid := env.user("kid")
	assert.GreaterOrEqual(t, kid.Level, int64(5))
	assert.True(t, kid.Lvl5MilestoneRewarded)
	assert.Equal(t, int64(2000), env.user("ref").XP)
	assert.NotEmpty(t, env.platform.dmsTo("ref"))

	_, err = env.svc.XP.GrantXP(env.ctx, "kid", 2000, SourceGrant, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), env.user("ref").XP)
}

func TestAdminGrantRejectsNonPositive(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.XP.AdminGrant(env.ctx, "u1", 0, "oops", "admin")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	res, err := env.svc.XP.AdminGrant(env.ctx, "u1", 50, "bravo", "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Granted)

	logs, err := env.svc.Audit.Recent(env.ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.AuditActionAdminGrantXP, logs[0].Action)
}

func TestAchievementsAreGrantedOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "u1", PurchaseCount: 1})

	earned, err := env.svc.Achievements.Check(env.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, "first_purchase", earned[0].ID)
	assert.Equal(t, int64(50), env.user("u1").XP)

	earned, err = env.svc.Achievements.Check(env.ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, earned)

	u := env.user("u1")
	assert.Equal(t, int64(50), u.XP)
	assert.Equal(t, []string{"first_purchase"}, u.Achievements)
}

func TestAchievementsUnknownUserIsNoop(t *testing.T) {
	env := newTestEnv(t)
	earned, err := env.svc.Achievements.Check(env.ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, earned)
}

func TestBoosterAndDoubleXPGrantEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.ShopItems = append(env.catalog.ShopItems, config.ShopItem{
		ID: "xp_booster_25_24h", Name: "Boost XP +25% 24h", Cost: 1,
		Effect: config.ShopEffect{Kind: config.EffectXPBooster, Slot: "xp", Multiplier: 1.25, Duration: 24 * time.Hour},
	})
	env.seed(&domain.User{ID: "u1", StoreCredit: dec("1")})

	_, err := env.svc.Shop.Buy(env.ctx, "u1", "Sam", "xp_booster_25_24h")
	require.NoError(t, err)
	_, err = env.svc.Events.Start(env.ctx, domain.EventDoubleXP, time.Hour, "admin")
	require.NoError(t, err)

	before := env.user("u1").XP
	res, err := env.svc.XP.GrantXP(env.ctx, "u1", 100, SourceGrant, "test")
	require.NoError(t, err)
	assert.Equal(t, int64(250), res.Granted)

	u := env.user("u1")
	assert.Equal(t, before+250, u.XP)
	assert.Equal(t, int64(250), u.WeeklyXP)
}
