package bot

import (
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/bwmarrin/discordgo"
)

const buttonsPerRow = 5

var buttonStyles = map[domain.ButtonStyle]discordgo.ButtonStyle{
	domain.ButtonPrimary:   discordgo.PrimaryButton,
	domain.ButtonSecondary: discordgo.SecondaryButton,
	domain.ButtonSuccess:   discordgo.SuccessButton,
	domain.ButtonDanger:    discordgo.DangerButton,
}

// embedOf renders the embed part of msg, or nil for a plain text message.
func embedOf(msg domain.Message) *discordgo.MessageEmbed {
	if msg.Title == "" && msg.Description == "" && len(msg.Fields) == 0 {
		return nil
	}
	e := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	return e
}

func embedsOf(msg domain.Message) []*discordgo.MessageEmbed {
	if e := embedOf(msg); e != nil {
		return []*discordgo.MessageEmbed{e}
	}
	return nil
}

// componentsOf lays the buttons out in rows of five.
func componentsOf(buttons []domain.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				CustomID: b.ActionID,
				Style:    buttonStyles[b.Style],
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func sendOf(msg domain.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     embedsOf(msg),
		Components: componentsOf(msg.Buttons),
	}
}

// editOf replaces content, embeds and components of an existing message.
func editOf(ref service.MessageRef, msg domain.Message) *discordgo.MessageEdit {
	content := msg.Content
	embeds := embedsOf(msg)
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := componentsOf(msg.Buttons)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	}
}

// responseData is the interaction reply for msg.
func responseData(msg domain.Message, ephemeral bool) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    msg.Content,
		Embeds:     embedsOf(msg),
		Components: componentsOf(msg.Buttons),
	}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// webhookEdit turns msg into the edit of a deferred reply.
func webhookEdit(msg domain.Message) *discordgo.WebhookEdit {
	content := msg.Content
	embeds := embedsOf(msg)
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := componentsOf(msg.Buttons)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{Content: &content, Embeds: &embeds, Components: &components}
}
