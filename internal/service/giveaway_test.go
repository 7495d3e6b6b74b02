package service

import (
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickWinnersSkipsBots(t *testing.T) {
	entrants := []Member{{ID: "bot", Bot: true}, {ID: "a"}, {ID: "b"}, {ID: "c"}}

	got := pickWinners(&seqRand{values: []int{2, 0}}, entrants, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	all := pickWinners(&seqRand{}, entrants, 10)
	assert.Len(t, all, 3)
	for _, m := range all {
		assert.False(t, m.Bot)
	}

	assert.Empty(t, pickWinners(&seqRand{}, []Member{{ID: "bot", Bot: true}}, 1))
}

func TestGiveawayStartValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Giveaways.Start(env.ctx, "admin", "giveaways", time.Hour, 0, "Nitro")
	assert.ErrorIs(t, err, ErrInvalidWinnerCount)
	_, err = env.svc.Giveaways.Start(env.ctx, "admin", "giveaways", time.Hour, 26, "Nitro")
	assert.ErrorIs(t, err, ErrInvalidWinnerCount)
	_, err = env.svc.Giveaways.Start(env.ctx, "admin", "giveaways", 0, 1, "Nitro")
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = env.svc.Giveaways.Start(env.ctx, "admin", "giveaways", time.Hour, 1, "  ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestGiveawayLifecycle(t *testing.T) {
	env := newTestEnv(t)

	g, err := env.svc.Giveaways.Start(env.ctx, "admin", "giveaways", time.Hour, 1, "Nitro")
	require.NoError(t, err)
	assert.Equal(t, env.now.Add(time.Hour), g.EndTime)
	assert.Contains(t, env.platform.reacted, g.MessageID+" "+domain.GiveawayEmoji)
	env.platform.reaction[g.MessageID] = []Member{{ID: "bot", Bot: true}, {ID: "w1"}}

	ended, failed, err := env.svc.Giveaways.Sweep(env.ctx, env.now)
	require.NoError(t, err)
	assert.Zero(t, ended, "not due yet")
	assert.Zero(t, failed)

	ended, _, err = env.svc.Giveaways.Sweep(env.ctx, env.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, ended)

	_, err = env.store.Giveaway(env.ctx, g.MessageID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	posts := env.platform.postsTo("giveaways")
	require.Len(t, posts, 2)
	assert.Contains(t, posts[1].Msg.Content, "<@w1>")
	assert.Contains(t, env.platform.edits, g.MessageID)

	ended, _, err = env.svc.Giveaways.Sweep(env.ctx, env.now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, ended, "drawn only once")
}

func TestGiveawayWithoutEntrants(t *testing.T) {
	env := newTestEnv(t)
	g, err := env.svc.Giveaways.Start(env.ctx, "admin", "giveaways", time.Minute, 3, "Nitro")
	require.NoError(t, err)

	ended, _, err := env.svc.Giveaways.Sweep(env.ctx, env.now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, ended)
	posts := env.platform.postsTo("giveaways")
	require.Len(t, posts, 2)
	assert.Contains(t, posts[1].Msg.Content, "aucun participant")
	assert.NotContains(t, env.platform.edits, g.MessageID)
}

func TestGiveawayReroll(t *testing.T) {
	env := newTestEnv(t)
	ref := MessageRef{ChannelID: "giveaways", MessageID: "old"}

	_, err := env.svc.Giveaways.Reroll(env.ctx, ref)
	assert.ErrorIs(t, err, ErrNoParticipants)

	env.platform.reaction["old"] = []Member{{ID: "a"}, {ID: "b"}}
	env.rand.values = []int{1}
	w, err := env.svc.Giveaways.Reroll(env.ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "b", w.ID)
}
