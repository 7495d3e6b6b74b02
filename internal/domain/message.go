package domain

import (
	"strings"
	"time"
)

// Embed colors.
const (
	ColorGold    = 0xF1C40F
	ColorGreen   = 0x2ECC71
	ColorRed     = 0xE74C3C
	ColorBlue    = 0x3498DB
	ColorPurple  = 0x9B59B6
	ColorOrange  = 0xE67E22
	ColorGrey    = 0x607D8B
	ColorMagenta = 0xE91E63
	ColorBlurple = 0x5865F2
)

// Message is a platform-neutral outbound message. Adapters render it as an embed.
type Message struct {
	Content     string         `json:"content,omitempty"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []MessageField `json:"fields,omitempty"`
	Footer      string         `json:"footer,omitempty"`
	Buttons     []Button       `json:"-"`
}

type MessageField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button carries an encoded action id that comes back as a component interaction.
type Button struct {
	Label    string
	ActionID string
	Style    ButtonStyle
}

// ActionKind identifies what a persistent button or modal does.
type ActionKind string

const (
	ActionCashoutApprove ActionKind = "cashout_approve"
	ActionCashoutDeny    ActionKind = "cashout_deny"
	ActionCashoutOpen    ActionKind = "cashout_open"
	ActionCashoutSubmit  ActionKind = "cashout_submit"
	ActionGuildAccept    ActionKind = "guild_accept"
	ActionGuildDecline   ActionKind = "guild_decline"
	ActionVerify         ActionKind = "verify_member"
	ActionMissionToggle  ActionKind = "toggle_mission_dms"
	ActionTicketOpen     ActionKind = "ticket_open"
	ActionTicketType     ActionKind = "ticket_type"
	ActionTicketClose    ActionKind = "ticket_close"
	ActionShopBuy        ActionKind = "credit_shop"
	ActionXPPurchase     ActionKind = "xp_purchase"
	ActionChallenge      ActionKind = "challenge_submit"
)

// ActionID encodes kind and an optional argument as "kind:arg".
func ActionID(kind ActionKind, arg string) string {
	if arg == "" {
		return string(kind)
	}
	return string(kind) + ":" + arg
}

// ParseActionID splits an id produced by ActionID.
func ParseActionID(id string) (ActionKind, string) {
	kind, arg, _ := strings.Cut(id, ":")
	return ActionKind(kind), arg
}

// Announcement is a public notice mirrored to the live feed.
type Announcement struct {
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Channel string    `json:"channel,omitempty"`
	At      time.Time `json:"at"`
}
