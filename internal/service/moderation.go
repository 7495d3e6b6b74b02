package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ai"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

// Moderation actions returned by the AI verdict.
const (
	ActionPass          = "PASS"
	ActionDeleteAndWarn = "DELETE_AND_WARN"
	ActionWarn          = "WARN"
	ActionNotifyStaff   = "NOTIFY_STAFF"
	ActionSupportTicket = "CREATE_SUPPORT_TICKET"
)

const warnReaction = "⚠️"

// ChatMessage is a member message submitted for review.
type ChatMessage struct {
	ID          string
	ChannelID   string
	ChannelName string
	Content     string
	Author      Member
	JumpURL     string
}

func (m ChatMessage) ref() MessageRef {
	return MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}
}

// Verdict is the decoded AI answer.
type Verdict struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type ModerationService struct {
	Deps
	tickets   *TicketService
	announcer *Announcer
	audit     *AuditService
	log       *slog.Logger
}

func NewModerationService(d Deps, tickets *TicketService, announcer *Announcer, audit *AuditService) *ModerationService {
	return &ModerationService{
		Deps:      d,
		tickets:   tickets,
		announcer: announcer,
		audit:     audit,
		log:       logger.Component("moderation"),
	}
}

// skip reports whether msg is exempt from review.
func (s *ModerationService) skip(msg ChatMessage) bool {
	if !s.Rules.Moderation.Enabled || msg.Author.Bot {
		return true
	}
	if slices.Contains(s.Rules.Channels.PromoChannels(), msg.ChannelName) {
		return true
	}
	return s.Rules.HasStaffRole(msg.Author.Roles)
}

// verdict asks the AI for a decision. Any failure reads as PASS.
func (s *ModerationService) verdict(ctx context.Context, msg ChatMessage) Verdict {
	prompt := ai.FormatPrompt(s.Rules.AI.ModerationPrompt, map[string]string{
		"user_message": msg.Content,
		"channel_name": msg.ChannelName,
	})
	out, err := ai.Ask(ctx, s.AI, ai.PurposeModeration, prompt, true)
	if err != nil {
		return Verdict{Action: ActionPass, Reason: "Erreur d'analyse IA."}
	}
	var v Verdict
	if err := ai.DecodeJSON(out, &v); err != nil {
		s.log.Warn("moderation verdict unreadable", "error", err)
		return Verdict{Action: ActionPass, Reason: "Réponse IA illisible."}
	}
	if v.Action == "" {
		v.Action = ActionPass
	}
	if v.Reason == "" {
		v.Reason = "Aucune raison spécifiée."
	}
	return v
}

// Review runs a message through the AI and applies the returned action.
func (s *ModerationService) Review(ctx context.Context, msg ChatMessage) (Verdict, error) {
	if s.skip(msg) {
		return Verdict{Action: ActionPass}, nil
	}
	v := s.verdict(ctx, msg)
	switch v.Action {
	case ActionPass:
	case ActionDeleteAndWarn:
		if err := s.Platform.DeleteMessage(ctx, msg.ref()); err != nil {
			s.log.Warn("flagged message not deleted", "message_id", msg.ID, "error", err)
		}
		if _, err := s.Warn(ctx, msg.Author.ID, "", v.Reason, msg.JumpURL); err != nil {
			return v, err
		}
	case ActionWarn:
		if _, err := s.Warn(ctx, msg.Author.ID, "", v.Reason, msg.JumpURL); err != nil {
			return v, err
		}
		if err := s.Platform.AddReaction(ctx, msg.ref(), warnReaction); err != nil {
			s.log.Debug("warn reaction not added", "message_id", msg.ID, "error", err)
		}
	case ActionNotifyStaff:
		s.NotifyStaff(ctx, "Alerte de Modération IA",
			fmt.Sprintf("Raison : %s\nMessage de %s: [cliquer ici](%s)", v.Reason, msg.Author.Mention(), msg.JumpURL))
	case ActionSupportTicket:
		if _, err := s.tickets.OpenSupport(ctx, msg.Author, v.Reason); err != nil {
			s.log.Warn("support ticket not opened", "user_id", msg.Author.ID, "error", err)
			s.NotifyStaff(ctx, "Ticket de support requis",
				fmt.Sprintf("Impossible d'ouvrir un ticket pour %s. Raison : %s", msg.Author.Mention(), v.Reason))
		}
	default:
		s.log.Warn("unknown moderation action", "action", v.Action)
		s.NotifyStaff(ctx, "Alerte de Modération IA",
			fmt.Sprintf("Action IA non reconnue: `%s`. Raison: `%s`\nMessage de %s: [cliquer ici](%s)",
				v.Action, v.Reason, msg.Author.Mention(), msg.JumpURL))
	}
	return v, nil
}

// Warn adds one warning to userID and tells them why. It returns the new count.
func (s *ModerationService) Warn(ctx context.Context, userID, moderatorID, reason, jumpURL string) (int64, error) {
	var count int64
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Add(ctx, tx, userID, domain.FieldWarnings, decimal.NewFromInt(1), "Avertissement: "+reason)
		if err != nil {
			return err
		}
		count = u.Warnings
		actor := moderatorID
		if actor == "" {
			actor = "system"
		}
		return appendAudit(ctx, tx, actor, userID, domain.AuditActionWarn, domain.AuditCategoryMod,
			map[string]interface{}{"reason": reason, "message": jumpURL, "warnings": count})
	})
	if err != nil {
		return 0, fmt.Errorf("warn: %w", err)
	}
	desc := fmt.Sprintf("**Raison :** %s\nVous avez maintenant **%d** avertissement(s).", reason, count)
	if jumpURL != "" {
		desc += fmt.Sprintf("\n[Message concerné](%s)", jumpURL)
	}
	s.announcer.DM(ctx, userID, domain.Message{
		Title:       "⚠️ Avertissement",
		Description: desc,
		Color:       domain.ColorOrange,
	})
	s.log.Info("member warned", "user_id", userID, "warnings", count)
	return count, nil
}

// NotifyStaff posts an alert to the moderation channel.
func (s *ModerationService) NotifyStaff(ctx context.Context, title, body string) {
	_, _ = s.announcer.Post(ctx, s.Rules.Channels.ModAlerts, "", domain.Message{
		Title:       title,
		Description: body,
		Color:       domain.ColorRed,
	})
}
