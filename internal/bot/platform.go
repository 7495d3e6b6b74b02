package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
)

const (
	membersPageSize   = 1000
	reactionsPageSize = 100
)

// Platform drives one Discord server through a discordgo session.
type Platform struct {
	s       *discordgo.Session
	guildID string
	log     *slog.Logger
}

var _ service.Platform = (*Platform)(nil)

func NewPlatform(s *discordgo.Session, guildID string) *Platform {
	return &Platform{s: s, guildID: guildID, log: logger.Component("discord")}
}

// isID reports whether ref looks like a snowflake rather than a name.
func isID(ref string) bool {
	if len(ref) < 17 {
		return false
	}
	id, err := snowflake.ParseString(ref)
	return err == nil && id > 0
}

// mapError converts REST failures to the service sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return fmt.Errorf("%w: %v", service.ErrChannelNotFound, err)
		case discordgo.ErrCodeUnknownRole:
			return fmt.Errorf("%w: %v", service.ErrRoleNotFound, err)
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %v", service.ErrMemberNotFound, err)
		case discordgo.ErrCodeCannotSendMessagesToThisUser, discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %v", service.ErrForbidden, err)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", service.ErrForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", service.ErrChannelNotFound, err)
		}
	}
	return err
}

func (p *Platform) channels(ctx context.Context) ([]*discordgo.Channel, error) {
	if g, err := p.s.State.Guild(p.guildID); err == nil && len(g.Channels) > 0 {
		return g.Channels, nil
	}
	list, err := p.s.GuildChannels(p.guildID, discordgo.WithContext(ctx))
	return list, mapError(err)
}

func (p *Platform) roles(ctx context.Context) ([]*discordgo.Role, error) {
	if g, err := p.s.State.Guild(p.guildID); err == nil && len(g.Roles) > 0 {
		return g.Roles, nil
	}
	list, err := p.s.GuildRoles(p.guildID, discordgo.WithContext(ctx))
	return list, mapError(err)
}

// channelID resolves a channel name or id.
func (p *Platform) channelID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if isID(ref) {
		return ref, nil
	}
	list, err := p.channels(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range list {
		if c.Name == ref && c.Type != discordgo.ChannelTypeGuildCategory {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", service.ErrChannelNotFound, ref)
}

// roleID resolves a role name or id.
func (p *Platform) roleID(ctx context.Context, ref string) (string, error) {
	if isID(ref) {
		return ref, nil
	}
	list, err := p.roles(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range list {
		if r.Name == ref {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", service.ErrRoleNotFound, ref)
}

// RoleNames maps role ids to names, keeping unknown ids as-is.
func (p *Platform) RoleNames(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, err := p.s.State.Role(p.guildID, id); err == nil {
			out = append(out, r.Name)
			continue
		}
		out = append(out, id)
	}
	return out
}

func (p *Platform) memberOf(m *discordgo.Member) service.Member {
	if m == nil || m.User == nil {
		return service.Member{}
	}
	return service.Member{
		ID:          m.User.ID,
		DisplayName: displayName(m.User, m.Nick),
		Roles:       p.RoleNames(m.Roles),
		Bot:         m.User.Bot,
		JoinedAt:    m.JoinedAt,
	}
}

func (p *Platform) SendChannel(ctx context.Context, channel string, msg domain.Message) (service.MessageRef, error) {
	id, err := p.channelID(ctx, channel)
	if err != nil {
		return service.MessageRef{}, err
	}
	m, err := p.s.ChannelMessageSendComplex(id, sendOf(msg), discordgo.WithContext(ctx))
	if err != nil {
		return service.MessageRef{}, mapError(err)
	}
	return service.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (p *Platform) SendDM(ctx context.Context, userID string, msg domain.Message) error {
	ch, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	_, err = p.s.ChannelMessageSendComplex(ch.ID, sendOf(msg), discordgo.WithContext(ctx))
	return mapError(err)
}

func (p *Platform) EditMessage(ctx context.Context, ref service.MessageRef, msg domain.Message) error {
	_, err := p.s.ChannelMessageEditComplex(editOf(ref, msg), discordgo.WithContext(ctx))
	return mapError(err)
}

func (p *Platform) DeleteMessage(ctx context.Context, ref service.MessageRef) error {
	return mapError(p.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)))
}

func (p *Platform) AddReaction(ctx context.Context, ref service.MessageRef, emoji string) error {
	return mapError(p.s.MessageReactionAdd(ref.ChannelID, ref.MessageID, emoji, discordgo.WithContext(ctx)))
}

// ReactionUsers pages through everyone who reacted with emoji.
func (p *Platform) ReactionUsers(ctx context.Context, ref service.MessageRef, emoji string) ([]service.Member, error) {
	var (
		out   []service.Member
		after string
	)
	for {
		page, err := p.s.MessageReactions(ref.ChannelID, ref.MessageID, emoji, reactionsPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, mapError(err)
		}
		for _, u := range page {
			out = append(out, service.Member{ID: u.ID, DisplayName: displayName(u, ""), Bot: u.Bot})
		}
		if len(page) < reactionsPageSize {
			return out, nil
		}
		after = page[len(page)-1].ID
	}
}

func (p *Platform) Member(ctx context.Context, userID string) (service.Member, error) {
	if m, err := p.s.State.Member(p.guildID, userID); err == nil {
		return p.memberOf(m), nil
	}
	m, err := p.s.GuildMember(p.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return service.Member{}, mapError(err)
	}
	return p.memberOf(m), nil
}

func (p *Platform) AddRole(ctx context.Context, userID, role string) error {
	id, err := p.roleID(ctx, role)
	if err != nil {
		return err
	}
	return mapError(p.s.GuildMemberRoleAdd(p.guildID, userID, id, discordgo.WithContext(ctx)))
}

func (p *Platform) RemoveRole(ctx context.Context, userID, role string) error {
	id, err := p.roleID(ctx, role)
	if err != nil {
		return err
	}
	return mapError(p.s.GuildMemberRoleRemove(p.guildID, userID, id, discordgo.WithContext(ctx)))
}

// RoleMembers lists the ids of members holding role. It walks the whole
// member list, which needs the server members intent.
func (p *Platform) RoleMembers(ctx context.Context, role string) ([]string, error) {
	id, err := p.roleID(ctx, role)
	if err != nil {
		return nil, err
	}
	var (
		out   []string
		after string
	)
	for {
		page, err := p.s.GuildMembers(p.guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, mapError(err)
		}
		for _, m := range page {
			for _, r := range m.Roles {
				if r == id {
					out = append(out, m.User.ID)
					break
				}
			}
		}
		if len(page) < membersPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (p *Platform) CreateRole(ctx context.Context, name string, color int) (string, error) {
	mentionable := true
	r, err := p.s.GuildRoleCreate(p.guildID, &discordgo.RoleParams{
		Name:        name,
		Color:       &color,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return r.ID, nil
}

func (p *Platform) DeleteRole(ctx context.Context, roleID string) error {
	return mapError(p.s.GuildRoleDelete(p.guildID, roleID, discordgo.WithContext(ctx)))
}

// category finds the category named name, creating it when missing.
func (p *Platform) category(ctx context.Context, name string) (string, error) {
	list, err := p.channels(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range list {
		if c.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	c, err := p.s.GuildChannelCreateComplex(p.guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	p.log.Info("category created", "name", name, "channel_id", c.ID)
	return c.ID, nil
}

const memberAccess = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak

func (p *Platform) CreateChannel(ctx context.Context, spec service.ChannelSpec) (string, error) {
	data := discordgo.GuildChannelCreateData{
		Name:  spec.Name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: spec.Topic,
	}
	if spec.Kind == service.ChannelVoice {
		data.Type = discordgo.ChannelTypeGuildVoice
		data.Topic = ""
	}
	if spec.Category != "" {
		parent, err := p.category(ctx, spec.Category)
		if err != nil {
			return "", err
		}
		data.ParentID = parent
	}
	if spec.Private {
		// the @everyone role shares the server id
		data.PermissionOverwrites = append(data.PermissionOverwrites, &discordgo.PermissionOverwrite{
			ID:   p.guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		})
		for _, role := range spec.AllowRoles {
			id, err := p.roleID(ctx, role)
			if err != nil {
				p.log.Warn("skipping unknown role in overwrite", "role", role, "error", err)
				continue
			}
			data.PermissionOverwrites = append(data.PermissionOverwrites, &discordgo.PermissionOverwrite{
				ID: id, Type: discordgo.PermissionOverwriteTypeRole, Allow: memberAccess,
			})
		}
		for _, user := range spec.AllowUsers {
			data.PermissionOverwrites = append(data.PermissionOverwrites, &discordgo.PermissionOverwrite{
				ID: user, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAccess,
			})
		}
	}
	c, err := p.s.GuildChannelCreateComplex(p.guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return c.ID, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := p.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return mapError(err)
}

func (p *Platform) Invites(ctx context.Context) ([]service.Invite, error) {
	list, err := p.s.GuildInvites(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]service.Invite, 0, len(list))
	for _, inv := range list {
		i := service.Invite{Code: inv.Code, Uses: inv.Uses}
		if inv.Inviter != nil {
			i.InviterID = inv.Inviter.ID
		}
		out = append(out, i)
	}
	return out, nil
}

// ChannelName returns the name of channelID, or "" when unknown.
func (p *Platform) ChannelName(channelID string) string {
	if c, err := p.s.State.Channel(channelID); err == nil {
		return c.Name
	}
	return ""
}
