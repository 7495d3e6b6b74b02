package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

// ParseColor accepts #rgb or #rrggbb. Empty input is the default guild color.
func ParseColor(s string) (string, int, error) {
	if s == "" {
		s = domain.DefaultGuildColor
	}
	if !hexColor.MatchString(s) {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return s, int(v), nil
}

func guildRoleName(name string) string { return "Guilde - " + name }

func guildTextChannel(name string) string {
	return "│💬│" + strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

func guildVoiceChannel(name string) string { return "│🔊│" + name }

type GuildService struct {
	Deps
	announcer *Announcer
	log       *slog.Logger
}

func NewGuildService(d Deps, announcer *Announcer) *GuildService {
	return &GuildService{Deps: d, announcer: announcer, log: logger.Component("guilds")}
}

func (s *GuildService) enabled() error {
	if !s.Rules.Guilds.Enabled {
		return ErrFeatureDisabled
	}
	return nil
}

// Create founds a guild owned by ownerID. The role and channels are created
// first; if the charge or the save fails they are removed again.
func (s *GuildService) Create(ctx context.Context, ownerID, name, color string) (*domain.Guild, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 3 || n > s.Rules.Guilds.NameMaxLength {
		return nil, fmt.Errorf("%w: 3 to %d characters", ErrInvalidName, s.Rules.Guilds.NameMaxLength)
	}
	color, colorValue, err := ParseColor(color)
	if err != nil {
		return nil, err
	}
	cost := decimal.NewFromFloat(s.Rules.Guilds.CreationCost)

	// cheap pre-checks so nothing is provisioned for a request bound to fail
	if u, err := s.Store.User(ctx, ownerID); err == nil {
		if u.GuildID != "" {
			return nil, ErrAlreadyInGuild
		}
		if cost.IsPositive() && u.StoreCredit.LessThan(cost) {
			return nil, fmt.Errorf("%w: creation costs %s credits", ErrInsufficientFunds, cost.StringFixed(2))
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := s.Store.GuildByName(ctx, strings.ToLower(name)); err == nil {
		return nil, ErrNameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	g := &domain.Guild{
		ID:        uuid.NewString(),
		Name:      name,
		NameLower: strings.ToLower(name),
		OwnerID:   ownerID,
		Members:   []string{ownerID},
		Color:     color,
		CreatedAt: s.Now(),
	}
	if err := s.provision(ctx, g, colorValue); err != nil {
		s.release(ctx, g)
		return nil, fmt.Errorf("provision guild: %w", err)
	}

	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := s.Ledger.Load(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if u.GuildID != "" {
			return ErrAlreadyInGuild
		}
		if _, err := tx.GuildByName(ctx, g.NameLower); err == nil {
			return ErrNameTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if cost.IsPositive() {
			if err := s.Ledger.Debit(u, domain.FieldStoreCredit, cost, "Création de la guilde "+name); err != nil {
				return err
			}
		}
		u.GuildID = g.ID
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		if err := tx.PutGuild(ctx, g); err != nil {
			return err
		}
		return appendAudit(ctx, tx, ownerID, ownerID, domain.AuditActionGuildCreate, domain.AuditCategoryGuild,
			map[string]interface{}{"guild_id": g.ID, "name": name, "cost": cost.String()})
	})
	if err != nil {
		s.release(ctx, g)
		return nil, err
	}
	s.log.Info("guild created", "guild_id", g.ID, "name", name, "owner_id", ownerID)
	return g, nil
}

func (s *GuildService) provision(ctx context.Context, g *domain.Guild, color int) error {
	var err error
	if g.RoleID, err = s.Platform.CreateRole(ctx, guildRoleName(g.Name), color); err != nil {
		return err
	}
	if err = s.Platform.AddRole(ctx, g.OwnerID, g.RoleID); err != nil {
		return err
	}
	g.TextChannelID, err = s.Platform.CreateChannel(ctx, ChannelSpec{
		Name:       guildTextChannel(g.Name),
		Category:   s.Rules.Guilds.CategoryName,
		Kind:       ChannelText,
		Topic:      "Salon privé de la guilde " + g.Name,
		Private:    true,
		AllowRoles: []string{g.RoleID},
	})
	if err != nil {
		return err
	}
	g.VoiceChannelID, err = s.Platform.CreateChannel(ctx, ChannelSpec{
		Name:       guildVoiceChannel(g.Name),
		Category:   s.Rules.Guilds.CategoryName,
		Kind:       ChannelVoice,
		Private:    true,
		AllowRoles: []string{g.RoleID},
	})
	return err
}

// release deletes whatever platform resources g holds. Failures are logged.
func (s *GuildService) release(ctx context.Context, g *domain.Guild) {
	for _, id := range []string{g.TextChannelID, g.VoiceChannelID} {
		if id == "" {
			continue
		}
		if err := s.Platform.DeleteChannel(ctx, id); err != nil {
			s.log.Warn("guild channel not deleted", "guild_id", g.ID, "channel_id", id, "error", err)
		}
	}
	if g.RoleID != "" {
		if err := s.Platform.DeleteRole(ctx, g.RoleID); err != nil {
			s.log.Warn("guild role not deleted", "guild_id", g.ID, "role_id", g.RoleID, "error", err)
		}
	}
}

// ownedGuild returns the guild ownerID owns.
func (s *GuildService) ownedGuild(ctx context.Context, r store.Reader, ownerID string) (*domain.Guild, error) {
	u, err := r.User(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInGuild
	}
	if err != nil {
		return nil, err
	}
	if u.GuildID == "" {
		return nil, ErrNotInGuild
	}
	g, err := r.Guild(ctx, u.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGuildNotFound
	}
	if err != nil {
		return nil, err
	}
	if g.OwnerID != ownerID {
		return nil, ErrNotGuildOwner
	}
	return g, nil
}

// Invite sends target a direct message with accept and decline buttons.
func (s *GuildService) Invite(ctx context.Context, ownerID string, target Member) error {
	if err := s.enabled(); err != nil {
		return err
	}
	if target.Bot || target.ID == ownerID {
		return ErrSelfInvite
	}
	g, err := s.ownedGuild(ctx, s.Store, ownerID)
	if err != nil {
		return err
	}
	if len(g.Members) >= s.Rules.Guilds.MaxMembers {
		return ErrGuildFull
	}
	if u, err := s.Store.User(ctx, target.ID); err == nil && u.GuildID != "" {
		return ErrAlreadyInGuild
	}
	ok := s.announcer.DM(ctx, target.ID, domain.Message{
		Title:       "Invitation de Guilde",
		Description: fmt.Sprintf("<@%s> vous invite à rejoindre la guilde **%s** !", ownerID, g.Name),
		Color:       domain.ColorBlurple,
		Buttons: []domain.Button{
			{Label: "Accepter", ActionID: domain.ActionID(domain.ActionGuildAccept, g.ID), Style: domain.ButtonSuccess},
			{Label: "Refuser", ActionID: domain.ActionID(domain.ActionGuildDecline, g.ID), Style: domain.ButtonDanger},
		},
	})
	if !ok {
		return ErrDMFailed
	}
	return nil
}

// Accept adds userID to the guild named in an invitation.
func (s *GuildService) Accept(ctx context.Context, userID, guildID string) (*domain.Guild, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	var g *domain.Guild
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		g, err = tx.Guild(ctx, guildID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrGuildNotFound
		}
		if err != nil {
			return err
		}
		u, err := s.Ledger.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u.GuildID != "" {
			return ErrAlreadyInGuild
		}
		if len(g.Members) >= s.Rules.Guilds.MaxMembers {
			return ErrGuildFull
		}
		g.AddMember(userID)
		u.GuildID = g.ID
		if err := tx.PutGuild(ctx, g); err != nil {
			return err
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	if err := s.Platform.AddRole(ctx, userID, g.RoleID); err != nil {
		s.log.Warn("guild role not granted", "guild_id", g.ID, "user_id", userID, "error", err)
	}
	s.announcer.DM(ctx, g.OwnerID, Text(fmt.Sprintf("✅ <@%s> a rejoint votre guilde **%s** !", userID, g.Name)))
	return g, nil
}

// Decline tells the owner their invitation was refused.
func (s *GuildService) Decline(ctx context.Context, userID, guildID string) error {
	g, err := s.Store.Guild(ctx, guildID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrGuildNotFound
	}
	if err != nil {
		return err
	}
	s.announcer.DM(ctx, g.OwnerID, Text(fmt.Sprintf("❌ <@%s> a refusé l'invitation à rejoindre **%s**.", userID, g.Name)))
	return nil
}

// Leave removes a non-owner member and drops any guild ranking bonus they held.
func (s *GuildService) Leave(ctx context.Context, userID string) (*domain.Guild, error) {
	var g *domain.Guild
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.User(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotInGuild
		}
		if err != nil {
			return err
		}
		if u.GuildID == "" {
			return ErrNotInGuild
		}
		g, err = tx.Guild(ctx, u.GuildID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Dangling reference: clearing it is the whole leave.
			g = &domain.Guild{ID: u.GuildID}
		case err != nil:
			return err
		case g.OwnerID == userID:
			return ErrOwnerCannotLeave
		default:
			g.RemoveMember(userID)
			if err := tx.PutGuild(ctx, g); err != nil {
				return err
			}
		}
		u.GuildID = ""
		u.GuildBonus = nil
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	if g.RoleID == "" {
		return g, nil
	}
	if err := s.Platform.RemoveRole(ctx, userID, g.RoleID); err != nil {
		s.log.Warn("guild role not removed", "guild_id", g.ID, "user_id", userID, "error", err)
	}
	return g, nil
}

// Dissolve deletes the owner's guild, frees every member and removes the
// platform resources.
func (s *GuildService) Dissolve(ctx context.Context, ownerID string) (*domain.Guild, error) {
	var g *domain.Guild
	err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		g, err = s.ownedGuild(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		for _, id := range g.Members {
			u, err := tx.User(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if u.GuildID != g.ID {
				continue
			}
			u.GuildID = ""
			u.GuildBonus = nil
			if err := tx.PutUser(ctx, u); err != nil {
				return err
			}
		}
		if err := tx.DeleteGuild(ctx, g.ID); err != nil {
			return err
		}
		return appendAudit(ctx, tx, ownerID, ownerID, domain.AuditActionGuildDissolve, domain.AuditCategoryGuild,
			map[string]interface{}{"guild_id": g.ID, "name": g.Name, "members": len(g.Members)})
	})
	if err != nil {
		return nil, err
	}
	s.release(ctx, g)
	s.log.Info("guild dissolved", "guild_id", g.ID, "name", g.Name)
	return g, nil
}

// Info returns the guild of userID.
func (s *GuildService) Info(ctx context.Context, userID string) (*domain.Guild, error) {
	u, err := s.Store.User(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInGuild
	}
	if err != nil {
		return nil, err
	}
	if u.GuildID == "" {
		return nil, ErrNotInGuild
	}
	g, err := s.Store.Guild(ctx, u.GuildID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGuildNotFound
	}
	return g, err
}
