package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/metrics"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

const (
	jobGiveaways      = "giveaways"
	maxGiveawayWinner = 25
)

type GiveawayService struct {
	Deps
	announcer *Announcer
	log       *slog.Logger
}

func NewGiveawayService(d Deps, announcer *Announcer) *GiveawayService {
	return &GiveawayService{Deps: d, announcer: announcer, log: logger.Component("giveaways")}
}

// Start posts the giveaway and records it under its message id. An empty
// channel means the configured giveaway channel.
func (s *GiveawayService) Start(ctx context.Context, hostID, channel string, d time.Duration, winners int, prize string) (*domain.Giveaway, error) {
	if winners < 1 || winners > maxGiveawayWinner {
		return nil, ErrInvalidWinnerCount
	}
	if d <= 0 {
		return nil, ErrInvalidDuration
	}
	if strings.TrimSpace(prize) == "" {
		return nil, fmt.Errorf("%w: empty prize", ErrInvalidName)
	}
	if channel == "" {
		channel = s.Rules.Channels.Giveaways
	}
	end := s.Now().Add(d)
	ref, err := s.announcer.Post(ctx, channel, KindGiveaway, domain.Message{
		Title: "🎉 GIVEAWAY 🎉",
		Description: fmt.Sprintf("**Prix :** %s\nRéagissez avec %s pour participer !\n**Gagnants :** %d\n**Fin :** <t:%d:R>",
			prize, domain.GiveawayEmoji, winners, end.Unix()),
		Color:  domain.ColorMagenta,
		Footer: "Organisé par " + hostID,
	})
	if err != nil {
		return nil, fmt.Errorf("post giveaway: %w", err)
	}
	if err := s.Platform.AddReaction(ctx, ref, domain.GiveawayEmoji); err != nil {
		s.log.Warn("giveaway reaction not added", "message_id", ref.MessageID, "error", err)
	}
	g := &domain.Giveaway{
		MessageID:   ref.MessageID,
		ChannelID:   ref.ChannelID,
		EndTime:     end,
		WinnerCount: winners,
		Prize:       prize,
		HostID:      hostID,
	}
	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.PutGiveaway(ctx, g)
	})
	if err != nil {
		_ = s.Platform.DeleteMessage(ctx, ref)
		return nil, fmt.Errorf("save giveaway: %w", err)
	}
	return g, nil
}

// pickWinners samples up to n distinct entrants with a partial Fisher-Yates shuffle.
func pickWinners(r Random, entrants []Member, n int) []Member {
	pool := make([]Member, 0, len(entrants))
	for _, m := range entrants {
		if !m.Bot {
			pool = append(pool, m)
		}
	}
	n = min(n, len(pool))
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// Sweep ends every giveaway past its end time. Each giveaway is handled on
// its own; one failure does not stop the others.
func (s *GiveawayService) Sweep(ctx context.Context, now time.Time) (ended, failed int, err error) {
	due, err := s.Store.DueGiveaways(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("list giveaways: %w", err)
	}
	for _, g := range due {
		if err := s.end(ctx, g); err != nil {
			failed++
			metrics.SweepEntityFailures.WithLabelValues(jobGiveaways).Inc()
			s.log.Error("giveaway end failed", "message_id", g.MessageID, "error", err)
			continue
		}
		ended++
	}
	return ended, failed, nil
}

func (s *GiveawayService) end(ctx context.Context, g *domain.Giveaway) error {
	ref := MessageRef{ChannelID: g.ChannelID, MessageID: g.MessageID}
	entrants, err := s.Platform.ReactionUsers(ctx, ref, domain.GiveawayEmoji)
	if err != nil && !errors.Is(err, ErrChannelNotFound) {
		return err
	}
	// the record goes first so a failing announcement never draws twice
	err = s.Store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.DeleteGiveaway(ctx, g.MessageID)
	})
	if err != nil {
		return err
	}

	winners := pickWinners(s.Rand, entrants, g.WinnerCount)
	if len(winners) == 0 {
		_, _ = s.announcer.Post(ctx, g.ChannelID, KindGiveaway,
			Text(fmt.Sprintf("Le giveaway pour **%s** est terminé, mais il n'y avait aucun participant.", g.Prize)))
		return nil
	}
	mentions := make([]string, len(winners))
	for i, w := range winners {
		mentions[i] = w.Mention()
	}
	_, _ = s.announcer.Post(ctx, g.ChannelID, KindGiveaway,
		Text(fmt.Sprintf("🎉 Félicitations %s ! Vous avez gagné **%s** !", strings.Join(mentions, ", "), g.Prize)))
	if err := s.Platform.EditMessage(ctx, ref, domain.Message{
		Title:       "🎉 GIVEAWAY TERMINÉ 🎉",
		Description: fmt.Sprintf("**Prix :** %s\n**Gagnant(s) :** %s", g.Prize, strings.Join(mentions, ", ")),
		Color:       domain.ColorGrey,
	}); err != nil {
		s.log.Warn("giveaway message not updated", "message_id", g.MessageID, "error", err)
	}
	s.log.Info("giveaway ended", "message_id", g.MessageID, "winners", len(winners))
	return nil
}

// Reroll draws one new winner among the entrants of an ended giveaway.
func (s *GiveawayService) Reroll(ctx context.Context, ref MessageRef) (Member, error) {
	entrants, err := s.Platform.ReactionUsers(ctx, ref, domain.GiveawayEmoji)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %v", ErrGiveawayNotFound, err)
	}
	winners := pickWinners(s.Rand, entrants, 1)
	if len(winners) == 0 {
		return Member{}, ErrNoParticipants
	}
	w := winners[0]
	_, _ = s.announcer.Post(ctx, ref.ChannelID, KindGiveaway,
		Text(fmt.Sprintf("🎉 Nouveau tirage ! Le nouveau gagnant est %s !", w.Mention())))
	return w, nil
}
