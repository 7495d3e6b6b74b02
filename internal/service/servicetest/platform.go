// Package servicetest provides doubles for testing code built on the services.
package servicetest

import (
	"context"
	"slices"
	"sync"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
)

// Platform accepts every call and remembers what it was asked to do.
type Platform struct {
	mu       sync.Mutex
	sent     map[string][]domain.Message
	deleted  []string
	dms      map[string]int
	channels int
}

func NewPlatform() *Platform {
	return &Platform{sent: map[string][]domain.Message{}, dms: map[string]int{}}
}

// Sent returns the messages posted to channel.
func (p *Platform) Sent(channel string) []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sent[channel])
}

// Deleted returns the deleted channel ids in order.
func (p *Platform) Deleted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.deleted)
}

// DMs returns how many direct messages userID received.
func (p *Platform) DMs(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dms[userID]
}

// Channels returns how many channels were created.
func (p *Platform) Channels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels
}

func (p *Platform) SendChannel(_ context.Context, channel string, msg domain.Message) (service.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[channel] = append(p.sent[channel], msg)
	return service.MessageRef{ChannelID: channel, MessageID: "m"}, nil
}

func (p *Platform) SendDM(_ context.Context, userID string, _ domain.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms[userID]++
	return nil
}

func (p *Platform) EditMessage(context.Context, service.MessageRef, domain.Message) error { return nil }
func (p *Platform) DeleteMessage(context.Context, service.MessageRef) error               { return nil }
func (p *Platform) AddReaction(context.Context, service.MessageRef, string) error         { return nil }
func (p *Platform) ReactionUsers(context.Context, service.MessageRef, string) ([]service.Member, error) {
	return nil, nil
}

func (p *Platform) Member(_ context.Context, id string) (service.Member, error) {
	return service.Member{ID: id}, nil
}
func (p *Platform) AddRole(context.Context, string, string) error         { return nil }
func (p *Platform) RemoveRole(context.Context, string, string) error      { return nil }
func (p *Platform) RoleMembers(context.Context, string) ([]string, error) { return nil, nil }
func (p *Platform) CreateRole(context.Context, string, int) (string, error) {
	return "role", nil
}
func (p *Platform) DeleteRole(context.Context, string) error { return nil }

func (p *Platform) CreateChannel(context.Context, service.ChannelSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels++
	return "chan", nil
}

func (p *Platform) DeleteChannel(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *Platform) Invites(context.Context) ([]service.Invite, error) { return nil, nil }
