package service

import (
	"context"
	"errors"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrMemberNotFound  = errors.New("member not found")
	// ErrForbidden is returned when the bot lacks the permission for an action.
	ErrForbidden = errors.New("missing platform permission")
)

type ChannelKind int

const (
	ChannelText ChannelKind = iota
	ChannelVoice
)

// ChannelSpec describes a channel to create. A private channel is hidden from
// everyone except AllowRoles and AllowUsers. Roles are names or ids.
type ChannelSpec struct {
	Name       string
	Category   string
	Kind       ChannelKind
	Topic      string
	Private    bool
	AllowRoles []string
	AllowUsers []string
}

// Member is a guild member as seen by the services. Roles holds role names.
type Member struct {
	ID          string
	DisplayName string
	Roles       []string
	Bot         bool
	JoinedAt    time.Time
}

func (m Member) Mention() string {
	return "<@" + m.ID + ">"
}

func (m Member) HasRole(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range m.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// MessageRef locates a posted message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Invite is a server invite and its use counter.
type Invite struct {
	Code      string
	InviterID string
	Uses      int
}

// Platform is the slice of the chat platform the services drive. Channel and
// role arguments accept either a name or an id.
type Platform interface {
	SendChannel(ctx context.Context, channel string, msg domain.Message) (MessageRef, error)
	SendDM(ctx context.Context, userID string, msg domain.Message) error
	EditMessage(ctx context.Context, ref MessageRef, msg domain.Message) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AddReaction(ctx context.Context, ref MessageRef, emoji string) error
	ReactionUsers(ctx context.Context, ref MessageRef, emoji string) ([]Member, error)

	Member(ctx context.Context, userID string) (Member, error)
	AddRole(ctx context.Context, userID, role string) error
	RemoveRole(ctx context.Context, userID, role string) error
	RoleMembers(ctx context.Context, role string) ([]string, error)
	CreateRole(ctx context.Context, name string, color int) (string, error)
	DeleteRole(ctx context.Context, roleID string) error

	CreateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error

	Invites(ctx context.Context) ([]Invite, error)
}

// Publisher receives public announcements for the live feed.
type Publisher interface {
	Publish(a domain.Announcement)
}

// Random is the source used for XP rolls, draws and mission picks.
type Random interface {
	IntN(n int) int
}
