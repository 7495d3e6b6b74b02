package domain

import "time"

// MissionType - mission rotation period
type MissionType string

const (
	MissionDaily  MissionType = "daily"
	MissionWeekly MissionType = "weekly"
)

// Mission action ids that chat handlers report progress for.
const (
	MissionActionSendMessage = "send_message"
	MissionActionPurchase    = "make_purchase"
	MissionActionInvite      = "invite_member"
)

// Mission is a user's currently assigned daily or weekly objective.
type Mission struct {
	ID          string      `json:"id"`
	Type        MissionType `json:"type"`
	Description string      `json:"description"`
	Target      int         `json:"target"`
	Progress    int         `json:"progress"`
	RewardXP    int64       `json:"reward_xp"`
	Completed   bool        `json:"completed"`
	AssignedAt  time.Time   `json:"assigned_at"`
}

// Advance adds amount to the progress and reports whether this call completed the mission.
func (m *Mission) Advance(amount int) bool {
	if m == nil || m.Completed || amount <= 0 {
		return false
	}
	m.Progress += amount
	if m.Progress >= m.Target {
		m.Completed = true
		return true
	}
	return false
}

// Percent returns progress in percent (0-100)
func (m *Mission) Percent() int {
	if m == nil || m.Target <= 0 {
		return 100
	}
	p := (m.Progress * 100) / m.Target
	if p > 100 {
		return 100
	}
	return p
}
