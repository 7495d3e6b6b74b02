package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ai"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"

	"github.com/google/uuid"
)

const (
	jobPromos         = "promos"
	defaultPromoPitch = "Offre spéciale ! Ne manquez pas cette promotion."
)

type PromoService struct {
	Deps
	announcer *Announcer
	log       *slog.Logger
}

func NewPromoService(d Deps, announcer *Announcer) *PromoService {
	return &PromoService{Deps: d, announcer: announcer, log: logger.Component("promos")}
}

// pitch asks the AI for promo copy and falls back to the product's short description.
func (s *PromoService) pitch(ctx context.Context, p config.Product) string {
	fallback := p.ShortDescription
	if fallback == "" {
		fallback = defaultPromoPitch
	}
	if s.Rules.AI.PromoPrompt == "" {
		return fallback
	}
	prompt := ai.FormatPrompt(s.Rules.AI.PromoPrompt, map[string]string{
		"product_name":      p.Name,
		"short_description": p.ShortDescription,
	})
	out, err := ai.Ask(ctx, s.AI, ai.PurposePromo, prompt, true)
	if err != nil {
		return fallback
	}
	var body struct {
		Description string `json:"generated_description"`
	}
	if err := ai.DecodeJSON(out, &body); err != nil || strings.TrimSpace(body.Description) == "" {
		return fallback
	}
	return body.Description
}

// Create posts a flash promotion for productID and records it until it expires.
func (s *PromoService) Create(ctx context.Context, productID, createdBy string) (*domain.Promo, error) {
	p, ok := s.Catalog.Product(productID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProduct, productID)
	}
	desc := s.pitch(ctx, p)
	now := s.Now()
	expires := now.Add(time.Duration(s.Rules.Promos.DurationHours) * time.Hour)
	ref, err := s.announcer.Post(ctx, s.Rules.Channels.PromoFlash, KindPromo, domain.Message{
		Title:       "⚡ PROMO FLASH : " + p.Name,
		Description: desc,
		Color:       domain.ColorPurple,
		Fields: []domain.MessageField{
			{Name: "Prix", Value: fmt.Sprintf("%.2f€", p.Price), Inline: true},
			{Name: "Fin", Value: fmt.Sprintf("<t:%d:R>", expires.Unix()), Inline: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("post promo: %w", err)
	}
	promo := &domain.Promo{
		ID:          uuid.NewString(),
		ProductID:   p.ID,
		Description: desc,
		ChannelID:   ref.ChannelID,
		MessageID:   ref.MessageID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		ExpiresAt:   expires,
	}
	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutPromo(ctx, promo)
	})
	if err != nil {
		_ = s.Platform.DeleteMessage(ctx, ref)
		return nil, fmt.Errorf("save promo: %w", err)
	}
	s.log.Info("promo created", "promo_id", promo.ID, "product", p.ID)
	return promo, nil
}

// SweepExpired removes promotions past their expiry along with their message.
func (s *PromoService) SweepExpired(ctx context.Context, now time.Time) (removed int, err error) {
	promos, err := s.Store.Promos(ctx)
	if err != nil {
		return 0, fmt.Errorf("list promos: %w", err)
	}
	for _, p := range promos {
		if now.Before(p.ExpiresAt) {
			continue
		}
		err := s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.DeletePromo(ctx, p.ID)
		})
		if err != nil {
			metrics.SweepEntityFailures.WithLabelValues(jobPromos).Inc()
			s.log.Error("promo expiry failed", "promo_id", p.ID, "error", err)
			continue
		}
		removed++
		if p.MessageID != "" {
			if err := s.Platform.DeleteMessage(ctx, MessageRef{ChannelID: p.ChannelID, MessageID: p.MessageID}); err != nil {
				s.log.Debug("promo message not deleted", "promo_id", p.ID, "error", err)
			}
		}
	}
	return removed, nil
}
