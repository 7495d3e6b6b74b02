package domain

import (
	"slices"
	"time"
)

const DefaultGuildColor = "#99aab5"

// Guild is a player clan with its own role and channels on the platform.
type Guild struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NameLower      string    `json:"name_lower"`
	OwnerID        string    `json:"owner_id"`
	Members        []string  `json:"members"`
	Color          string    `json:"color"`
	WeeklyXP       int64     `json:"weekly_xp"`
	RoleID         string    `json:"role_id"`
	TextChannelID  string    `json:"text_channel_id"`
	VoiceChannelID string    `json:"voice_channel_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (g *Guild) HasMember(userID string) bool {
	return slices.Contains(g.Members, userID)
}

// AddMember is idempotent.
func (g *Guild) AddMember(userID string) {
	if !g.HasMember(userID) {
		g.Members = append(g.Members, userID)
	}
}

func (g *Guild) RemoveMember(userID string) {
	g.Members = slices.DeleteFunc(g.Members, func(id string) bool { return id == userID })
}
