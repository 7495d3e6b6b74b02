package service

import (
	"errors"
	"testing"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chat(content string) ChatMessage {
	return ChatMessage{
		ID:          "m1",
		ChannelID:   "c1",
		ChannelName: "general",
		Content:     content,
		Author:      Member{ID: "u1", DisplayName: "Sam"},
		JumpURL:     "https://discord.com/channels/g/c1/m1",
	}
}

func TestReviewFallsBackToPass(t *testing.T) {
	env := newTestEnv(t)
	env.ai.err = errors.New("quota")

	v, err := env.svc.Moderation.Review(env.ctx, chat("salut"))
	require.NoError(t, err)
	assert.Equal(t, ActionPass, v.Action)
	assert.Empty(t, env.platform.deleted)

	env.ai.err = nil
	env.ai.out = "not json at all"
	v, err = env.svc.Moderation.Review(env.ctx, chat("salut"))
	require.NoError(t, err)
	assert.Equal(t, ActionPass, v.Action)
}

func TestReviewFormatsPrompt(t *testing.T) {
	env := newTestEnv(t)
	env.ai.out = `{"action":"PASS"}`

	_, err := env.svc.Moderation.Review(env.ctx, chat("bonjour"))
	require.NoError(t, err)
	require.Len(t, env.ai.prompts, 1)
	assert.Equal(t, "Analyse: bonjour in #general", env.ai.prompts[0])
}

func TestReviewSkipsStaffBotsAndPromoChannels(t *testing.T) {
	env := newTestEnv(t)
	env.ai.out = `{"action":"WARN","reason":"spam"}`

	staff := chat("x")
	staff.Author.Roles = []string{"Staff"}
	bot := chat("x")
	bot.Author.Bot = true
	promo := chat("x")
	promo.ChannelName = "promo-flash"

	for _, msg := range []ChatMessage{staff, bot, promo} {
		v, err := env.svc.Moderation.Review(env.ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, ActionPass, v.Action)
	}
	assert.Empty(t, env.ai.prompts)
}

func TestReviewWarn(t *testing.T) {
	env := newTestEnv(t)
	env.ai.out = "```json\n{\"action\":\"WARN\",\"reason\":\"insulte\"}\n```"

	v, err := env.svc.Moderation.Review(env.ctx, chat("..."))
	require.NoError(t, err)
	assert.Equal(t, ActionWarn, v.Action)
	assert.Equal(t, int64(1), env.user("u1").Warnings)
	assert.Contains(t, env.platform.reacted, "m1 "+warnReaction)
	require.Len(t, env.platform.dmsTo("u1"), 1)

	logs, err := env.svc.Audit.Recent(env.ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.AuditActionWarn, logs[0].Action)
}

func TestReviewDeleteAndWarn(t *testing.T) {
	env := newTestEnv(t)
	env.ai.out = `{"action":"DELETE_AND_WARN","reason":"lien interdit"}`

	_, err := env.svc.Moderation.Review(env.ctx, chat("..."))
	require.NoError(t, err)
	require.Len(t, env.platform.deleted, 1)
	assert.Equal(t, "m1", env.platform.deleted[0].MessageID)
	assert.Equal(t, int64(1), env.user("u1").Warnings)
}

func TestReviewNotifiesStaff(t *testing.T) {
	env := newTestEnv(t)
	env.ai.out = `{"action":"NOTIFY_STAFF","reason":"arnaque"}`
	_, err := env.svc.Moderation.Review(env.ctx, chat("..."))
	require.NoError(t, err)
	require.Len(t, env.platform.postsTo("mod-alerts"), 1)

	env.ai.out = `{"action":"BAN_FOREVER"}`
	_, err = env.svc.Moderation.Review(env.ctx, chat("..."))
	require.NoError(t, err)
	assert.Len(t, env.platform.postsTo("mod-alerts"), 2, "unknown actions are escalated")
}

func TestReviewOpensSupportTicket(t *testing.T) {
	env := newTestEnv(t)
	env.ai.out = `{"action":"CREATE_SUPPORT_TICKET","reason":"problème de commande"}`

	_, err := env.svc.Moderation.Review(env.ctx, chat("ma commande n'arrive pas"))
	require.NoError(t, err)
	require.Len(t, env.platform.channels, 1)
	for _, spec := range env.platform.channels {
		assert.True(t, spec.Private)
		assert.Equal(t, []string{"u1"}, spec.AllowUsers)
		assert.Equal(t, []string{"Staff"}, spec.AllowRoles)
	}
	assert.Empty(t, env.platform.postsTo("mod-alerts"))

	env.platform.failCreateChannel = errors.New("no perms")
	_, err = env.svc.Moderation.Review(env.ctx, chat("encore"))
	require.NoError(t, err)
	assert.Len(t, env.platform.postsTo("mod-alerts"), 1, "staff told when the ticket cannot open")
}

func TestTicketOpenAndClose(t *testing.T) {
	env := newTestEnv(t)
	m := Member{ID: "u1", DisplayName: "Sam Doe"}

	_, err := env.svc.Tickets.Open(env.ctx, m, "Inconnu", "")
	assert.ErrorIs(t, err, ErrUnknownTicketType)

	tk, err := env.svc.Tickets.Open(env.ctx, m, "partenariat", "collab")
	require.NoError(t, err)
	assert.Equal(t, "Partenariat", tk.Type)
	assert.Contains(t, env.platform.channels[tk.ChannelID].Name, "ticket-sam-doe-")
	welcome := env.platform.postsTo(tk.ChannelID)
	require.Len(t, welcome, 1)
	assert.Equal(t, domain.ActionID(domain.ActionTicketClose, tk.ID), welcome[0].Msg.Buttons[0].ActionID)

	require.NoError(t, env.svc.Tickets.Close(env.ctx, tk.ChannelID, Member{ID: "staff1"}))
	assert.Equal(t, []string{tk.ChannelID}, env.platform.deletedChannels)
}
