package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/bwmarrin/discordgo"
)

const (
	maxSelectOptions = 25
	maxOptionText    = 100
)

// slowCommands reply through a deferred response because they touch several
// platform objects before answering.
var slowCommands = map[string]bool{
	"guilde":   true,
	"event":    true,
	"loterie":  true,
	"giveaway": true,
	"promo":    true,
	"admin":    true,
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.track(func(ctx context.Context) {
		b.log.Info("gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
		if err := b.svc.Referrals.RefreshInvites(ctx); err != nil {
			b.log.Warn("invite cache not primed", "error", err)
		}
		if err := b.svc.Events.Load(ctx); err != nil {
			b.log.Error("events not loaded", "error", err)
		}
		b.readyOnce.Do(func() {
			if b.onReady != nil {
				b.onReady(b.ctx)
			}
		})
	})
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.track(func(ctx context.Context) {
		in, err := decode(i, b.platform.RoleNames)
		if err != nil {
			b.log.Warn("interaction ignored", "error", err)
			return
		}
		log := b.log.With("interaction", in.Kind(), "user_id", in.Actor().ID)
		ctx = logger.Into(ctx, log)

		deferred := false
		if cmd, ok := in.(SlashCommand); ok && slowCommands[cmd.Name] {
			err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
			}, discordgo.WithContext(ctx))
			if err != nil {
				log.Warn("defer failed", "error", err)
				return
			}
			deferred = true
		}

		res := b.dispatch.Handle(ctx, in)
		if err := b.respond(ctx, i.Interaction, res, deferred); err != nil {
			log.Warn("reply failed", "error", err)
		}
		if res.then != nil {
			if err := res.then(ctx); err != nil {
				log.Error("follow-up failed", "error", err)
			}
		}
	})
}

// respond sends res as the interaction reply.
func (b *Bot) respond(ctx context.Context, i *discordgo.Interaction, res response, deferred bool) error {
	if deferred {
		edit := webhookEdit(res.msg)
		if res.selectMenu != nil {
			components := append(*edit.Components, selectRow(res.selectMenu))
			edit.Components = &components
		}
		_, err := b.session.InteractionResponseEdit(i, edit, discordgo.WithContext(ctx))
		return err
	}

	var resp *discordgo.InteractionResponse
	switch {
	case res.modal != nil:
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: modalData(res.modal),
		}
	case res.update:
		data := responseData(res.msg, false)
		if data.Components == nil {
			data.Components = []discordgo.MessageComponent{}
		}
		if data.Embeds == nil {
			data.Embeds = []*discordgo.MessageEmbed{}
		}
		resp = &discordgo.InteractionResponse{Type: discordgo.InteractionResponseUpdateMessage, Data: data}
	default:
		data := responseData(res.msg, res.ephemeral)
		if res.selectMenu != nil {
			data.Components = append(data.Components, selectRow(res.selectMenu))
		}
		resp = &discordgo.InteractionResponse{Type: discordgo.InteractionResponseChannelMessageWithSource, Data: data}
	}
	return b.session.InteractionRespond(i, resp, discordgo.WithContext(ctx))
}

func clip(s string) string {
	if r := []rune(s); len(r) > maxOptionText {
		return string(r[:maxOptionText-1]) + "…"
	}
	return s
}

func selectRow(m *selectMenu) discordgo.ActionsRow {
	menu := discordgo.SelectMenu{
		MenuType:    discordgo.StringSelectMenu,
		CustomID:    m.ID,
		Placeholder: m.Placeholder,
	}
	for _, o := range m.Options[:min(len(m.Options), maxSelectOptions)] {
		label := o.Label
		if o.Emoji != "" {
			label = o.Emoji + " " + label
		}
		menu.Options = append(menu.Options, discordgo.SelectMenuOption{
			Label:       clip(label),
			Value:       o.Value,
			Description: clip(o.Description),
		})
	}
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}}
}

func modalData(m *modal) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{CustomID: m.ID, Title: m.Title}
	for _, in := range m.Inputs {
		style := discordgo.TextInputShort
		if in.Long {
			style = discordgo.TextInputParagraph
		}
		data.Components = append(data.Components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID:    in.ID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Required:    true,
			}},
		})
	}
	return data
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || m.GuildID != b.guildID {
		return
	}
	b.track(func(ctx context.Context) {
		author := service.Member{ID: m.Author.ID, DisplayName: displayName(m.Author, "")}
		if m.Member != nil {
			author.DisplayName = displayName(m.Author, m.Member.Nick)
			author.Roles = b.platform.RoleNames(m.Member.Roles)
			author.JoinedAt = m.Member.JoinedAt
		}
		log := b.log.With("user_id", author.ID, "channel_id", m.ChannelID)
		ctx = logger.Into(ctx, log)

		if wordCount(m.Content) >= b.rules.XP.AntiFarmMinWords {
			if _, err := b.svc.XP.GrantMessageXP(ctx, author.ID); err != nil {
				log.Error("message xp failed", "error", err)
			}
			if err := b.svc.Missions.Progress(ctx, author.ID, domain.MissionActionSendMessage, 1); err != nil {
				log.Error("mission progress failed", "error", err)
			}
		}

		_, err := b.svc.Moderation.Review(ctx, service.ChatMessage{
			ID:          m.ID,
			ChannelID:   m.ChannelID,
			ChannelName: b.platform.ChannelName(m.ChannelID),
			Content:     m.Content,
			Author:      author,
			JumpURL:     fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.ID),
		})
		if err != nil {
			log.Error("moderation review failed", "error", err)
		}
	})
}

func (b *Bot) handleMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.GuildID != b.guildID || m.Member == nil {
		return
	}
	b.track(func(ctx context.Context) {
		member := b.platform.memberOf(m.Member)
		ref, err := b.svc.Referrals.MemberJoined(ctx, member)
		if err != nil {
			b.log.Error("member join not processed", "user_id", member.ID, "error", err)
			return
		}
		b.log.Info("member joined", "user_id", member.ID, "referrer_id", ref)
	})
}

func (b *Bot) handleInviteCreate(s *discordgo.Session, e *discordgo.InviteCreate) {
	b.refreshInvites(e.GuildID)
}

func (b *Bot) handleInviteDelete(s *discordgo.Session, e *discordgo.InviteDelete) {
	b.refreshInvites(e.GuildID)
}

func (b *Bot) refreshInvites(guildID string) {
	if guildID != b.guildID {
		return
	}
	b.track(func(ctx context.Context) {
		if err := b.svc.Referrals.RefreshInvites(ctx); err != nil {
			b.log.Warn("invite cache refresh failed", "error", err)
		}
	})
}
