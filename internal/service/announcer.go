package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
)

// Announcement kinds mirrored to the live feed.
const (
	KindLevelUp          = "level_up"
	KindLotteryDraw      = "lottery_draw"
	KindGiveaway         = "giveaway"
	KindEvent            = "event"
	KindLeaderboard      = "leaderboard"
	KindGuildLeaderboard = "guild_leaderboard"
	KindTransaction      = "transaction"
	KindPromo            = "promo"
)

// Announcer posts to configured channels and direct messages. Delivery
// failures are logged and returned; callers on decorative paths ignore them.
type Announcer struct {
	platform Platform
	feed     Publisher
	now      func() time.Time
	log      *slog.Logger
}

func NewAnnouncer(d Deps) *Announcer {
	return &Announcer{
		platform: d.Platform,
		feed:     d.Feed,
		now:      d.Now,
		log:      logger.Component("announcer"),
	}
}

// Post sends msg to channel. A public kind also goes to the live feed.
func (a *Announcer) Post(ctx context.Context, channel, kind string, msg domain.Message) (MessageRef, error) {
	if channel == "" {
		return MessageRef{}, ErrChannelNotConfigured
	}
	ref, err := a.platform.SendChannel(ctx, channel, msg)
	if err != nil {
		a.log.Warn("channel post failed", "channel", channel, "kind", kind, "error", err)
		return MessageRef{}, err
	}
	if kind != "" {
		body := msg.Description
		if body == "" {
			body = msg.Content
		}
		a.feed.Publish(domain.Announcement{
			Kind:    kind,
			Title:   msg.Title,
			Body:    body,
			Channel: channel,
			At:      a.now(),
		})
	}
	return ref, nil
}

// DM reports whether the direct message was delivered.
func (a *Announcer) DM(ctx context.Context, userID string, msg domain.Message) bool {
	if err := a.platform.SendDM(ctx, userID, msg); err != nil {
		a.log.Debug("dm not delivered", "user_id", userID, "error", err)
		return false
	}
	return true
}

// Text is a plain content message.
func Text(content string) domain.Message {
	return domain.Message{Content: content}
}
