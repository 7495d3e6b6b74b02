package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/shopspring/decimal"
)

// ReferralService tracks who invited whom. It keeps the last seen use count
// of every server invite to work out which invite a new member used.
type ReferralService struct {
	Deps
	xp           *XPService
	missions     *MissionService
	achievements *AchievementService
	announcer    *Announcer
	log          *slog.Logger

	mu      sync.Mutex
	invites map[string]Invite
}

func NewReferralService(d Deps, xp *XPService, missions *MissionService, achievements *AchievementService, announcer *Announcer) *ReferralService {
	return &ReferralService{
		Deps:         d,
		xp:           xp,
		missions:     missions,
		achievements: achievements,
		announcer:    announcer,
		log:          logger.Component("referrals"),
		invites:      map[string]Invite{},
	}
}

// RefreshInvites reloads the invite cache from the platform.
func (s *ReferralService) RefreshInvites(ctx context.Context) error {
	list, err := s.Platform.Invites(ctx)
	if err != nil {
		return fmt.Errorf("list invites: %w", err)
	}
	s.mu.Lock()
	s.replaceInvites(list)
	s.mu.Unlock()
	return nil
}

// replaceInvites must be called with mu held.
func (s *ReferralService) replaceInvites(list []Invite) {
	s.invites = make(map[string]Invite, len(list))
	for _, inv := range list {
		s.invites[inv.Code] = inv
	}
}

// usedInvite compares the platform's invites with the cache and returns the
// inviter whose invite gained a use. The cache is replaced either way.
func (s *ReferralService) usedInvite(ctx context.Context) (string, error) {
	list, err := s.Platform.Invites(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inviter := ""
	for _, inv := range list {
		if old, ok := s.invites[inv.Code]; ok && inv.Uses > old.Uses {
			inviter = inv.InviterID
			break
		}
	}
	s.replaceInvites(list)
	return inviter, nil
}

// MemberJoined sets a new member up: unverified role, default record and,
// when the invite used can be identified, the referral link.
func (s *ReferralService) MemberJoined(ctx context.Context, m Member) (referrerID string, err error) {
	if m.Bot {
		return "", nil
	}
	if role := s.Rules.Roles.Unverified; role != "" {
		if err := s.Platform.AddRole(ctx, m.ID, role); err != nil {
			s.log.Warn("unverified role not granted", "user_id", m.ID, "error", err)
		}
	}
	inviter, err := s.usedInvite(ctx)
	if err != nil {
		s.log.Warn("invite lookup failed", "user_id", m.ID, "error", err)
	}
	if inviter == m.ID {
		inviter = ""
	}

	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		referrerID = ""
		u, err := s.Ledger.Load(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		if m.DisplayName != "" {
			u.DisplayName = m.DisplayName
		}
		if inviter != "" && u.ReferrerID == "" {
			u.ReferrerID = inviter
			referrerID = inviter
			if _, err := s.Ledger.Add(ctx, tx, inviter, domain.FieldReferralCount, decimal.NewFromInt(1),
				"Parrainage de "+m.DisplayName); err != nil {
				return err
			}
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return "", fmt.Errorf("member joined: %w", err)
	}
	if referrerID != "" {
		s.log.Info("referral recorded", "user_id", m.ID, "referrer_id", referrerID)
		if err := s.missions.Progress(ctx, referrerID, domain.MissionActionInvite, 1); err != nil {
			s.log.Error("mission progress failed", "user_id", referrerID, "error", err)
		}
		if _, err := s.achievements.Check(ctx, referrerID); err != nil {
			s.log.Error("achievement check failed", "user_id", referrerID, "error", err)
		}
	}
	return referrerID, nil
}

// Verify swaps the unverified role for the verified one, rewards the referrer
// and sends the onboarding message.
func (s *ReferralService) Verify(ctx context.Context, m Member) error {
	verified := s.Rules.Roles.Verified
	if verified == "" {
		return ErrRoleNotConfigured
	}
	if m.HasRole(verified) {
		return ErrAlreadyVerified
	}
	if err := s.Platform.AddRole(ctx, m.ID, verified); err != nil {
		return fmt.Errorf("grant verified role: %w", err)
	}
	if unverified := s.Rules.Roles.Unverified; m.HasRole(unverified) {
		if err := s.Platform.RemoveRole(ctx, m.ID, unverified); err != nil {
			s.log.Warn("unverified role not removed", "user_id", m.ID, "error", err)
		}
	}

	u, err := s.Store.User(ctx, m.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		s.log.Error("verify lookup failed", "user_id", m.ID, "error", err)
	case u.ReferrerID != "":
		if _, err := s.Platform.Member(ctx, u.ReferrerID); err != nil {
			s.log.Debug("referrer left, no verification reward", "referrer_id", u.ReferrerID)
			break
		}
		if _, err := s.xp.GrantXP(ctx, u.ReferrerID, s.Rules.XP.PerVerifiedInvite, SourceReferral, "Parrainage validé"); err != nil {
			s.log.Error("verification reward failed", "referrer_id", u.ReferrerID, "error", err)
		}
	}
	s.announcer.DM(ctx, m.ID, s.onboarding(m))
	return nil
}

func (s *ReferralService) onboarding(m Member) domain.Message {
	return domain.Message{
		Title: "Bienvenue " + m.DisplayName + " !",
		Description: "Merci d'avoir rejoint la communauté. Gagnez de l'XP en discutant, " +
			"invitez vos amis pour toucher des commissions et consultez `/missions` pour vos objectifs du jour.",
		Color: domain.ColorBlurple,
		Fields: []domain.MessageField{
			{Name: "Profil", Value: "`/profil`", Inline: true},
			{Name: "Boutique", Value: "`/boutique`", Inline: true},
			{Name: "Classement", Value: "`/classement`", Inline: true},
		},
	}
}

// SubmitChallenge forwards a member's challenge proof to the staff channel.
func (s *ReferralService) SubmitChallenge(ctx context.Context, m Member, kind, proof string) error {
	if strings.TrimSpace(proof) == "" {
		return fmt.Errorf("%w: empty submission", ErrInvalidName)
	}
	title := "Soumission de Défi"
	if kind != "" {
		title += " (" + strings.ToUpper(kind[:1]) + kind[1:] + ")"
	}
	_, err := s.announcer.Post(ctx, s.Rules.Channels.ModAlerts, "", domain.Message{
		Title:       title,
		Description: fmt.Sprintf("**Utilisateur:** %s\n\n**Preuve Soumise:**\n>>> %s", m.Mention(), proof),
		Color:       domain.ColorOrange,
		Footer:      "Utilisez /admin grant-xp pour récompenser manuellement.",
	})
	return err
}
