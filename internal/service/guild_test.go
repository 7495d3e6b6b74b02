package service

import (
	"errors"
	"testing"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	hex, v, err := ParseColor("#fff")
	require.NoError(t, err)
	assert.Equal(t, "#fff", hex)
	assert.Equal(t, 0xffffff, v)

	_, v, err = ParseColor("#1A2b3C")
	require.NoError(t, err)
	assert.Equal(t, 0x1a2b3c, v)

	hex, _, err = ParseColor("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultGuildColor, hex)

	for _, bad := range []string{"fff", "#ffff", "#ggg", "red"} {
		_, _, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidColor, bad)
	}
}

func TestGuildCreate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})

	g, err := env.svc.Guilds.Create(env.ctx, "owner", "  Les Loups ", "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "Les Loups", g.Name)
	assert.Equal(t, "les loups", g.NameLower)
	assert.Equal(t, []string{"owner"}, g.Members)
	assert.NotEmpty(t, g.RoleID)
	assert.NotEmpty(t, g.TextChannelID)
	assert.NotEmpty(t, g.VoiceChannelID)
	assert.Contains(t, env.platform.roles["owner"], g.RoleID)
	assert.True(t, env.platform.channels[g.TextChannelID].Private)

	owner := env.user("owner")
	assert.Equal(t, g.ID, owner.GuildID)
	assert.True(t, owner.StoreCredit.Equal(dec("2")))

	env.seed(&domain.User{ID: "other", StoreCredit: dec("5")})
	_, err = env.svc.Guilds.Create(env.ctx, "other", "LES LOUPS", "")
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = env.svc.Guilds.Create(env.ctx, "owner", "Autre", "")
	assert.ErrorIs(t, err, ErrAlreadyInGuild)
}

func TestGuildCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "poor", StoreCredit: dec("1")})

	_, err := env.svc.Guilds.Create(env.ctx, "poor", "ab", "")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = env.svc.Guilds.Create(env.ctx, "poor", "Valide", "blue")
	assert.ErrorIs(t, err, ErrInvalidColor)
	_, err = env.svc.Guilds.Create(env.ctx, "poor", "Valide", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, env.platform.createdRoles, "nothing provisioned for a rejected request")
}

func TestGuildCreateRollsBackOnSaveFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})
	boom := errors.New("db down")
	deps := env.deps
	deps.Store = failingStore{Store: env.store, err: boom}
	svc := New(deps)

	_, err := svc.Guilds.Create(env.ctx, "owner", "Les Loups", "")
	require.ErrorIs(t, err, boom)

	assert.Len(t, env.platform.createdRoles, 1)
	assert.Equal(t, env.platform.createdRoles, env.platform.deletedRoles)
	assert.Len(t, env.platform.deletedChannels, 2)
	assert.Empty(t, env.platform.channels)
	assert.True(t, env.credit("owner").Equal(dec("5")))
	assert.Empty(t, env.user("owner").GuildID)
}

func TestGuildCreateRollsBackOnProvisionFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})
	env.platform.failCreateChannel = errors.New("missing permissions")

	_, err := env.svc.Guilds.Create(env.ctx, "owner", "Les Loups", "")
	require.Error(t, err)
	assert.Equal(t, env.platform.createdRoles, env.platform.deletedRoles)
	assert.True(t, env.credit("owner").Equal(dec("5")))

	guilds, err := env.store.Guilds(env.ctx, store.GuildQuery{})
	require.NoError(t, err)
	assert.Empty(t, guilds)
}

func TestGuildMembership(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})
	g, err := env.svc.Guilds.Create(env.ctx, "owner", "Les Loups", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.Guilds.Invite(env.ctx, "owner", Member{ID: "m1"}))
	invites := env.platform.dmsTo("m1")
	require.Len(t, invites, 1)
	require.Len(t, invites[0].Buttons, 2)
	action, arg := domain.ParseActionID(invites[0].Buttons[0].ActionID)
	assert.Equal(t, domain.ActionGuildAccept, action)
	assert.Equal(t, g.ID, arg)

	assert.ErrorIs(t, env.svc.Guilds.Invite(env.ctx, "owner", Member{ID: "owner"}), ErrSelfInvite)
	assert.ErrorIs(t, env.svc.Guilds.Invite(env.ctx, "owner", Member{ID: "bot", Bot: true}), ErrSelfInvite)
	assert.ErrorIs(t, env.svc.Guilds.Invite(env.ctx, "m1", Member{ID: "m2"}), ErrNotInGuild)

	_, err = env.svc.Guilds.Accept(env.ctx, "m1", g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, env.user("m1").GuildID)
	assert.Contains(t, env.platform.roles["m1"], g.RoleID)
	_, err = env.svc.Guilds.Accept(env.ctx, "m1", g.ID)
	assert.ErrorIs(t, err, ErrAlreadyInGuild)

	_, err = env.svc.Guilds.Leave(env.ctx, "owner")
	assert.ErrorIs(t, err, ErrOwnerCannotLeave)

	_, err = env.svc.Guilds.Leave(env.ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, env.user("m1").GuildID)
	assert.NotContains(t, env.platform.roles["m1"], g.RoleID)
	stored, err := env.store.Guild(env.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner"}, stored.Members)
}

func TestGuildLeaveClearsDanglingReference(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "m1", GuildID: "gone"})

	g, err := env.svc.Guilds.Leave(env.ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "gone", g.ID)
	assert.Empty(t, env.user("m1").GuildID)

	_, err = env.svc.Guilds.Leave(env.ctx, "m1")
	assert.ErrorIs(t, err, ErrNotInGuild)
}

func TestGuildFull(t *testing.T) {
	env := newTestEnv(t)
	env.rules.Guilds.MaxMembers = 1
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})
	g, err := env.svc.Guilds.Create(env.ctx, "owner", "Solo", "")
	require.NoError(t, err)

	assert.ErrorIs(t, env.svc.Guilds.Invite(env.ctx, "owner", Member{ID: "m1"}), ErrGuildFull)
	_, err = env.svc.Guilds.Accept(env.ctx, "m1", g.ID)
	assert.ErrorIs(t, err, ErrGuildFull)
}

func TestGuildDissolve(t *testing.T) {
	env := newTestEnv(t)
	env.seed(&domain.User{ID: "owner", StoreCredit: dec("5")})
	g, err := env.svc.Guilds.Create(env.ctx, "owner", "Les Loups", "")
	require.NoError(t, err)
	_, err = env.svc.Guilds.Accept(env.ctx, "m1", g.ID)
	require.NoError(t, err)

	_, err = env.svc.Guilds.Dissolve(env.ctx, "m1")
	assert.ErrorIs(t, err, ErrNotGuildOwner)

	_, err = env.svc.Guilds.Dissolve(env.ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, env.user("owner").GuildID)
	assert.Empty(t, env.user("m1").GuildID)
	_, err = env.store.Guild(env.ctx, g.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{g.RoleID}, env.platform.deletedRoles)
	assert.ElementsMatch(t, []string{g.TextChannelID, g.VoiceChannelID}, env.platform.deletedChannels)

	_, err = env.svc.Guilds.Info(env.ctx, "owner")
	assert.ErrorIs(t, err, ErrNotInGuild)
}
