package domain

import "time"

const GiveawayEmoji = "🎉"

// Giveaway is keyed by the id of its announcement message.
type Giveaway struct {
	MessageID   string    `json:"message_id"`
	ChannelID   string    `json:"channel_id"`
	EndTime     time.Time `json:"end_time"`
	WinnerCount int       `json:"winner_count"`
	Prize       string    `json:"prize"`
	HostID      string    `json:"host_id,omitempty"`
}
