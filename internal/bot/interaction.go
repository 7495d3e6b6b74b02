package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/bwmarrin/discordgo"
)

var errUnsupportedInteraction = errors.New("unsupported interaction")

// Interaction is one decoded platform interaction. The set of variants is
// closed: SlashCommand, ButtonPress, SelectChoice and ModalSubmit.
type Interaction interface {
	interaction()
	Kind() string
	Actor() service.Member
}

// SlashCommand is a /command, with its subcommand flattened into Sub.
type SlashCommand struct {
	Member    service.Member
	ChannelID string
	Name      string
	Sub       string
	Options   map[string]any
	// Users holds the members resolved for user options, by id.
	Users map[string]service.Member
}

// ButtonPress is a click on a button carrying an action id.
type ButtonPress struct {
	Member    service.Member
	ChannelID string
	MessageID string
	Action    domain.ActionKind
	Arg       string
}

// SelectChoice is a choice made in a select menu.
type SelectChoice struct {
	Member    service.Member
	ChannelID string
	MessageID string
	Action    domain.ActionKind
	Arg       string
	Values    []string
}

// ModalSubmit is a submitted form, fields keyed by their custom id.
type ModalSubmit struct {
	Member    service.Member
	ChannelID string
	Action    domain.ActionKind
	Arg       string
	Fields    map[string]string
}

func (SlashCommand) interaction() {}
func (ButtonPress) interaction()  {}
func (SelectChoice) interaction() {}
func (ModalSubmit) interaction()  {}

func (c SlashCommand) Kind() string {
	if c.Sub != "" {
		return "command:" + c.Name + " " + c.Sub
	}
	return "command:" + c.Name
}
func (b ButtonPress) Kind() string  { return "button:" + string(b.Action) }
func (s SelectChoice) Kind() string { return "select:" + string(s.Action) }
func (m ModalSubmit) Kind() string  { return "modal:" + string(m.Action) }

func (c SlashCommand) Actor() service.Member { return c.Member }
func (b ButtonPress) Actor() service.Member  { return b.Member }
func (s SelectChoice) Actor() service.Member { return s.Member }
func (m ModalSubmit) Actor() service.Member  { return m.Member }

func (c SlashCommand) String(name string) string {
	s, _ := c.Options[name].(string)
	return strings.TrimSpace(s)
}

func (c SlashCommand) Int(name string) int64 {
	n, _ := c.Options[name].(int64)
	return n
}

func (c SlashCommand) Bool(name string) (value, ok bool) {
	value, ok = c.Options[name].(bool)
	return value, ok
}

// User returns the member picked in a user option.
func (c SlashCommand) User(name string) (service.Member, bool) {
	id, ok := c.Options[name].(string)
	if !ok || id == "" {
		return service.Member{}, false
	}
	if m, ok := c.Users[id]; ok {
		return m, true
	}
	return service.Member{ID: id}, true
}

// roleNamer turns role ids into role names.
type roleNamer func(ids []string) []string

// decode turns a gateway interaction into its typed variant.
func decode(i *discordgo.InteractionCreate, names roleNamer) (Interaction, error) {
	actor := actorOf(i, names)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		cmd := SlashCommand{
			Member:    actor,
			ChannelID: i.ChannelID,
			Name:      data.Name,
			Options:   map[string]any{},
			Users:     map[string]service.Member{},
		}
		opts := data.Options
		// subcommand groups are not used; one level of subcommand at most
		if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
			cmd.Sub = opts[0].Name
			opts = opts[0].Options
		}
		for _, o := range opts {
			cmd.Options[o.Name] = optionValue(o)
		}
		if data.Resolved != nil {
			for id, u := range data.Resolved.Users {
				m := service.Member{ID: id, DisplayName: displayName(u, ""), Bot: u.Bot}
				if rm, ok := data.Resolved.Members[id]; ok && rm != nil {
					m.DisplayName = displayName(u, rm.Nick)
					m.Roles = names(rm.Roles)
				}
				cmd.Users[id] = m
			}
		}
		return cmd, nil

	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		action, arg := domain.ParseActionID(data.CustomID)
		messageID := ""
		if i.Message != nil {
			messageID = i.Message.ID
		}
		if data.ComponentType == discordgo.ButtonComponent {
			return ButtonPress{Member: actor, ChannelID: i.ChannelID, MessageID: messageID, Action: action, Arg: arg}, nil
		}
		return SelectChoice{Member: actor, ChannelID: i.ChannelID, MessageID: messageID, Action: action, Arg: arg, Values: data.Values}, nil

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		action, arg := domain.ParseActionID(data.CustomID)
		return ModalSubmit{Member: actor, ChannelID: i.ChannelID, Action: action, Arg: arg, Fields: modalFields(data.Components)}, nil
	}
	return nil, fmt.Errorf("%w: type %d", errUnsupportedInteraction, i.Type)
}

func optionValue(o *discordgo.ApplicationCommandInteractionDataOption) any {
	switch o.Type {
	case discordgo.ApplicationCommandOptionInteger:
		return o.IntValue()
	case discordgo.ApplicationCommandOptionBoolean:
		return o.BoolValue()
	case discordgo.ApplicationCommandOptionNumber:
		return o.FloatValue()
	default:
		// strings, and snowflakes for users, roles and channels
		s, _ := o.Value.(string)
		return s
	}
}

func modalFields(rows []discordgo.MessageComponent) map[string]string {
	out := map[string]string{}
	for _, c := range rows {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok {
				out[in.CustomID] = strings.TrimSpace(in.Value)
			}
		}
	}
	return out
}

// actorOf is the member behind i. Direct-message interactions carry a bare user.
func actorOf(i *discordgo.InteractionCreate, names roleNamer) service.Member {
	if i.Member != nil && i.Member.User != nil {
		return service.Member{
			ID:          i.Member.User.ID,
			DisplayName: displayName(i.Member.User, i.Member.Nick),
			Roles:       names(i.Member.Roles),
			Bot:         i.Member.User.Bot,
			JoinedAt:    i.Member.JoinedAt,
		}
	}
	if i.User != nil {
		return service.Member{ID: i.User.ID, DisplayName: displayName(i.User, ""), Bot: i.User.Bot}
	}
	return service.Member{}
}

func displayName(u *discordgo.User, nick string) string {
	switch {
	case nick != "":
		return nick
	case u == nil:
		return ""
	case u.GlobalName != "":
		return u.GlobalName
	}
	return u.Username
}
