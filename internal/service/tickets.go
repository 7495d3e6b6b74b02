package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"

	"github.com/google/uuid"
)

type TicketService struct {
	Deps
	announcer *Announcer
	log       *slog.Logger
}

func NewTicketService(d Deps, announcer *Announcer) *TicketService {
	return &TicketService{Deps: d, announcer: announcer, log: logger.Component("tickets")}
}

// Types lists the ticket kinds members can open.
func (s *TicketService) Types() []config.TicketType {
	return s.Rules.Tickets.Types
}

func (s *TicketService) ticketType(label string) (config.TicketType, bool) {
	for _, t := range s.Rules.Tickets.Types {
		if strings.EqualFold(t.Label, label) {
			return t, true
		}
	}
	return config.TicketType{}, false
}

// Ticket is an opened support channel.
type Ticket struct {
	ID        string
	ChannelID string
	Type      string
	OwnerID   string
}

// Open creates a private channel visible to member and the staff roles.
func (s *TicketService) Open(ctx context.Context, member Member, typeLabel, reason string) (*Ticket, error) {
	t, ok := s.ticketType(typeLabel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTicketType, typeLabel)
	}
	return s.open(ctx, member, t.Label, reason)
}

func (s *TicketService) open(ctx context.Context, member Member, label, reason string) (*Ticket, error) {
	id := uuid.NewString()
	name := fmt.Sprintf("ticket-%s-%s", strings.ToLower(strings.ReplaceAll(member.DisplayName, " ", "-")), id[:8])
	channelID, err := s.Platform.CreateChannel(ctx, ChannelSpec{
		Name:       name,
		Category:   s.Rules.Tickets.CategoryName,
		Kind:       ChannelText,
		Topic:      fmt.Sprintf("Ticket %s de %s (%s)", label, member.DisplayName, member.ID),
		Private:    true,
		AllowRoles: s.Rules.Roles.Staff,
		AllowUsers: []string{member.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket channel: %w", err)
	}
	desc := fmt.Sprintf("Bonjour %s, un membre du staff va vous répondre rapidement.", member.Mention())
	if reason != "" {
		desc += "\n\n**Motif :** " + reason
	}
	_, err = s.Platform.SendChannel(ctx, channelID, domain.Message{
		Title:       "Ticket : " + label,
		Description: desc,
		Color:       domain.ColorBlue,
		Buttons: []domain.Button{{
			Label:    "Fermer le ticket",
			ActionID: domain.ActionID(domain.ActionTicketClose, id),
			Style:    domain.ButtonDanger,
		}},
	})
	if err != nil {
		s.log.Warn("ticket welcome not posted", "channel_id", channelID, "error", err)
	}
	s.log.Info("ticket opened", "ticket_id", id, "user_id", member.ID, "type", label)
	return &Ticket{ID: id, ChannelID: channelID, Type: label, OwnerID: member.ID}, nil
}

// OpenSupport opens a ticket on behalf of the moderation pipeline.
func (s *TicketService) OpenSupport(ctx context.Context, member Member, reason string) (*Ticket, error) {
	return s.open(ctx, member, "Support", reason)
}

// Close logs the closure to the staff channel and deletes the ticket channel.
func (s *TicketService) Close(ctx context.Context, channelID string, closedBy Member) error {
	_, _ = s.announcer.Post(ctx, s.Rules.Channels.ModAlerts, "", domain.Message{
		Title:       "Ticket fermé",
		Description: fmt.Sprintf("Le ticket <#%s> a été fermé par %s.", channelID, closedBy.Mention()),
		Color:       domain.ColorGrey,
	})
	if err := s.Platform.DeleteChannel(ctx, channelID); err != nil {
		return fmt.Errorf("delete ticket channel: %w", err)
	}
	s.log.Info("ticket closed", "channel_id", channelID, "closed_by", closedBy.ID)
	return nil
}
