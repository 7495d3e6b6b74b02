package handlers

import (
	"net/http"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type leaderboardEntry struct {
	Rank        int             `json:"rank"`
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name,omitempty"`
	Value       decimal.Decimal `json:"value"`
}

// Leaderboard returns the top members of ?category= (default xp).
func (h *Handler) Leaderboard(c *gin.Context) {
	category := c.DefaultQuery("category", "xp")
	field, ok := service.LeaderboardField(category)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "unknown category",
			"categories": service.LeaderboardCategories(),
		})
		return
	}
	top, err := h.svc.Leaderboard.Top(c.Request.Context(), category, limitParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	entries := make([]leaderboardEntry, 0, len(top))
	for i, u := range top {
		v, _ := u.Value(field)
		entries = append(entries, leaderboardEntry{Rank: i + 1, UserID: u.ID, DisplayName: u.DisplayName, Value: v})
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "entries": entries})
}

type guildView struct {
	Rank     int       `json:"rank,omitempty"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	OwnerID  string    `json:"owner_id"`
	Members  int       `json:"members"`
	WeeklyXP int64     `json:"weekly_xp"`
	Created  time.Time `json:"created_at"`
}

// GuildLeaderboard returns guilds ranked by weekly XP.
func (h *Handler) GuildLeaderboard(c *gin.Context) {
	top, err := h.svc.Leaderboard.TopGuilds(c.Request.Context(), limitParam(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]guildView, 0, len(top))
	for i, g := range top {
		out = append(out, guildView{
			Rank: i + 1, ID: g.ID, Name: g.Name, Color: g.Color, OwnerID: g.OwnerID,
			Members: len(g.Members), WeeklyXP: g.WeeklyXP, Created: g.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"guilds": out})
}

// Guild returns one guild with its member ids.
func (h *Handler) Guild(c *gin.Context) {
	g, err := h.store.Guild(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guild": guildView{
			ID: g.ID, Name: g.Name, Color: g.Color, OwnerID: g.OwnerID,
			Members: len(g.Members), WeeklyXP: g.WeeklyXP, Created: g.CreatedAt,
		},
		"member_ids": g.Members,
	})
}

// profileView is the public part of a member's record.
type profileView struct {
	UserID        string     `json:"user_id"`
	DisplayName   string     `json:"display_name,omitempty"`
	Level         int64      `json:"level"`
	XP            int64      `json:"xp"`
	WeeklyXP      int64      `json:"weekly_xp"`
	NextLevelXP   int64      `json:"next_level_xp"`
	XPBoost       float64    `json:"xp_boost"`
	ReferralCount int64      `json:"referral_count"`
	Achievements  []string   `json:"achievements"`
	VIPActive     bool       `json:"vip_active"`
	VIPUntil      *time.Time `json:"vip_until,omitempty"`
	Guild         string     `json:"guild,omitempty"`
}

// Profile returns a member's public standing. Unknown ids get a default record.
func (h *Handler) Profile(c *gin.Context) {
	p, err := h.svc.Leaderboard.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	u := p.User
	view := profileView{
		UserID:        u.ID,
		DisplayName:   u.DisplayName,
		Level:         u.Level,
		XP:            u.XP,
		WeeklyXP:      u.WeeklyXP,
		NextLevelXP:   p.NextLevelXP,
		XPBoost:       p.XPBoost,
		ReferralCount: u.ReferralCount,
		Achievements:  u.Achievements,
		VIPActive:     p.VIPActive,
	}
	if view.Achievements == nil {
		view.Achievements = []string{}
	}
	if p.VIPActive {
		until := u.VIP.ExpiresAt
		view.VIPUntil = &until
	}
	if p.Guild != nil {
		view.Guild = p.Guild.Name
	}
	c.JSON(http.StatusOK, view)
}

// Events lists running events and the combined modifiers.
func (h *Handler) Events(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"events":           h.svc.Events.Active(),
		"xp_multiplier":    h.svc.Events.XPMultiplier(),
		"commission_bonus": h.svc.Events.CommissionBonus(),
	})
}

// Lottery returns the current round's fill state.
func (h *Handler) Lottery(c *gin.Context) {
	pot, err := h.svc.Lottery.Pot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":     h.rules.Lottery.Enabled,
		"round":       pot.Round,
		"tickets":     len(pot.Tickets),
		"size":        h.rules.Lottery.PlayersPerRound,
		"ticket_cost": h.rules.Lottery.TicketCost,
	})
}
