package service

import (
	"context"
	"testing"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWeek(t *testing.T, env *testEnv) {
	t.Helper()
	env.seed(&domain.User{ID: "a", WeeklyXP: 300, WeeklyAffiliateEarnings: dec("5"), AffiliateBooster: dec("0.1"), GuildID: "g1"})
	env.seed(&domain.User{ID: "b", WeeklyXP: 200, GuildID: "g1"})
	env.seed(&domain.User{ID: "c", WeeklyXP: 100})
	env.seed(&domain.User{ID: "d", GuildBonus: &domain.GuildBonus{Type: domain.GuildBonusTop1, CommissionRate: 0.9}})
	for _, id := range []string{"a", "b", "c"} {
		env.platform.addMember(Member{ID: id, DisplayName: "Membre " + id})
	}
	env.platform.addMember(Member{ID: "old", Roles: []string{"Top 1"}})
	require.NoError(t, env.store.RunTx(env.ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutGuild(ctx, &domain.Guild{ID: "g1", Name: "Les Loups", NameLower: "les loups", OwnerID: "a",
			Members: []string{"a", "b"}, WeeklyXP: 500})
	}))
}

func TestWeeklyReset(t *testing.T) {
	env := newTestEnv(t)
	seedWeek(t, env)

	rep, err := env.svc.Leaderboard.WeeklyReset(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Failed)
	require.Len(t, rep.TopUsers, 3)
	assert.Equal(t, "a", rep.TopUsers[0].ID)
	require.Len(t, rep.TopGuilds, 1)

	assert.NotContains(t, env.platform.roles["old"], "Top 1")
	assert.Contains(t, env.platform.roles["a"], "Top 1")
	assert.Contains(t, env.platform.roles["b"], "Top 2")
	assert.Contains(t, env.platform.roles["c"], "Top 3")

	assert.Nil(t, env.user("d").GuildBonus)
	for _, id := range []string{"a", "b"} {
		bonus := env.user(id).GuildBonus
		require.NotNil(t, bonus, id)
		assert.True(t, bonus.IsTop1())
		assert.Equal(t, 0.9, bonus.CommissionRate)
	}

	a := env.user("a")
	assert.Zero(t, a.WeeklyXP)
	assert.True(t, a.WeeklyAffiliateEarnings.IsZero())
	assert.True(t, a.AffiliateBooster.IsZero())
	g, err := env.store.Guild(env.ctx, "g1")
	require.NoError(t, err)
	assert.Zero(t, g.WeeklyXP)

	members := env.platform.postsTo("classement")
	require.Len(t, members, 1)
	assert.Contains(t, members[0].Msg.Description, "Membre a")
	assert.Len(t, env.platform.postsTo("classement-guildes"), 1)
}

func TestWeeklyResetEmptyWeek(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.svc.Leaderboard.WeeklyReset(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, rep.TopUsers)
	posts := env.platform.postsTo("classement")
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0].Msg.Description, "Personne")
}

func TestRunWeeklyCoachesBeforeReset(t *testing.T) {
	env := newTestEnv(t)
	seedWeek(t, env)
	env.rules.AI.CoachPrompt = "Coach {username}: {weekly_xp} XP"
	env.ai.out = "Continue comme ça !"

	require.NoError(t, env.svc.Leaderboard.RunWeekly(env.ctx, env.now))

	assert.Contains(t, env.ai.prompts, "Coach Membre a: 300 XP")
	require.Len(t, env.platform.dmsTo("a"), 1)
	assert.Equal(t, "Continue comme ça !", env.platform.dmsTo("a")[0].Content)
	assert.Empty(t, env.platform.dmsTo("d"), "no activity, no coaching")
	assert.Zero(t, env.user("a").WeeklyXP)
}

func TestLeaderboardTopAndProfile(t *testing.T) {
	env := newTestEnv(t)
	seedWeek(t, env)

	_, err := env.svc.Leaderboard.Top(env.ctx, "karma", 5)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	top, err := env.svc.Leaderboard.Top(env.ctx, "weekly_xp", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].ID)
	assert.Equal(t, "b", top[1].ID)

	p, err := env.svc.Leaderboard.Profile(env.ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, p.Guild)
	assert.Equal(t, "g1", p.Guild.ID)
	assert.Equal(t, int64(240), p.NextLevelXP)
	assert.InDelta(t, 0.10, p.CommissionRate, 1e-9)

	fresh, err := env.svc.Leaderboard.Profile(env.ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.User.Level)
	assert.Nil(t, fresh.Guild)
}
