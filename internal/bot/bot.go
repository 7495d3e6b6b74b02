// Package bot connects the services to a Discord server: it registers the
// slash commands, turns gateway events into service calls and implements
// service.Platform on top of the REST API.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/bwmarrin/discordgo"
)

const (
	handlerTimeout = 30 * time.Second
	stopTimeout    = 10 * time.Second
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildInvites |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// NewSession prepares a bot session with the intents the handlers rely on.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.StateEnabled = true
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	s.State.TrackChannels = true
	return s, nil
}

// Bot owns the gateway session and the event handlers.
type Bot struct {
	session  *discordgo.Session
	guildID  string
	platform *Platform
	dispatch *Dispatcher
	svc      *service.Services
	rules    *config.Rules
	log      *slog.Logger

	onReady   func(ctx context.Context)
	readyOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Options struct {
	GuildID string
	Rules   *config.Rules
	Tokens  *service.StaffTokens
	// OnReady runs once, after the first gateway ready event.
	OnReady func(ctx context.Context)
}

func New(s *discordgo.Session, platform *Platform, svc *service.Services, opts Options) *Bot {
	return &Bot{
		session:  s,
		guildID:  opts.GuildID,
		platform: platform,
		dispatch: NewDispatcher(svc, opts.Rules, opts.Tokens),
		svc:      svc,
		rules:    opts.Rules,
		log:      logger.Component("bot"),
		onReady:  opts.OnReady,
	}
}

// Start registers the handlers, opens the gateway and overwrites the
// server's slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.handleMessage)
	b.session.AddHandler(b.handleMemberAdd)
	b.session.AddHandler(b.handleInviteCreate)
	b.session.AddHandler(b.handleInviteDelete)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	appID := b.session.State.User.ID
	cmds, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, Commands(b.rules), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.log.Info("bot started", "user", b.session.State.User.Username, "commands", len(cmds))
	return nil
}

// Stop closes the gateway and waits for in-flight handlers.
func (b *Bot) Stop() {
	b.log.Info("stopping bot...")
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.session.Close(); err != nil {
		b.log.Warn("gateway close failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(stopTimeout):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

// track runs fn as an in-flight handler unless the bot is stopping.
func (b *Bot) track(fn func(ctx context.Context)) {
	if b.ctx == nil || b.ctx.Err() != nil {
		return
	}
	b.wg.Add(1)
	defer b.wg.Done()
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()
	fn(ctx)
}
