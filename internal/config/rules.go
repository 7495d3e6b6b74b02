package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Rules is the typed form of the static rules document. Defaults come from
// DefaultRules; the document only overrides what it names.
type Rules struct {
	AdminUserIDs []string `yaml:"admin_user_ids" validate:"required,min=1,dive,required"`

	Channels       Channels            `yaml:"channels"`
	Roles          Roles               `yaml:"roles"`
	XP             XPRules             `yaml:"xp"`
	Level          LevelRules          `yaml:"level"`
	VIP            VIPRules            `yaml:"vip"`
	Affiliate      AffiliateRules      `yaml:"affiliate"`
	Cashout        CashoutRules        `yaml:"cashout"`
	Missions       MissionRules        `yaml:"missions"`
	Guilds         GuildRules          `yaml:"guilds"`
	Lottery        LotteryRules        `yaml:"lottery"`
	Events         EventRules          `yaml:"events"`
	Moderation     ModerationRules     `yaml:"moderation"`
	AI             AIRules             `yaml:"ai"`
	TransactionLog TransactionLogRules `yaml:"transaction_log"`
	Tickets        TicketRules         `yaml:"tickets"`
	Promos         PromoRules          `yaml:"promos"`
	Schedule       ScheduleRules       `yaml:"schedule"`
}

// Channels are resolved by name (or id) on the platform.
type Channels struct {
	Announcements      string `yaml:"announcements" validate:"required"`
	LevelUp            string `yaml:"level_up"`
	WeeklyLeaderboard  string `yaml:"weekly_leaderboard"`
	GuildLeaderboard   string `yaml:"guild_leaderboard"`
	Lottery            string `yaml:"lottery"`
	Giveaways          string `yaml:"giveaways"`
	CashoutRequests    string `yaml:"cashout_requests"`
	PublicTransactions string `yaml:"public_transactions"`
	ModAlerts          string `yaml:"mod_alerts"`
	PublicPromo        string `yaml:"public_promo"`
	Marketplace        string `yaml:"marketplace"`
	PromoFlash         string `yaml:"promo_flash"`
}

// PromoChannels are exempt from AI moderation.
func (c Channels) PromoChannels() []string {
	var out []string
	for _, name := range []string{c.PublicPromo, c.Marketplace, c.PromoFlash} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

type Roles struct {
	Unverified     string   `yaml:"unverified"`
	Verified       string   `yaml:"verified"`
	VIPPremium     string   `yaml:"vip_premium"`
	Staff          []string `yaml:"staff"`
	LeaderboardTop []string `yaml:"leaderboard_top" validate:"max=3"`
}

type XPRules struct {
	Enabled                 bool    `yaml:"enabled"`
	MessageMin              int64   `yaml:"message_min" validate:"gte=0"`
	MessageMax              int64   `yaml:"message_max" validate:"gtefield=MessageMin"`
	CooldownSeconds         int     `yaml:"cooldown_seconds" validate:"gte=0"`
	AntiFarmMinWords        int     `yaml:"anti_farm_min_words" validate:"gte=0"`
	PerEuroSpent            float64 `yaml:"per_euro_spent" validate:"gte=0"`
	PerVerifiedInvite       int64   `yaml:"per_verified_invite" validate:"gte=0"`
	ReferralLevel5Bonus     int64   `yaml:"referral_level5_bonus" validate:"gte=0"`
	ReferralLevel5DaysLimit int     `yaml:"referral_level5_days_limit" validate:"gte=0"`
	CostPerXPInCredits      float64 `yaml:"cost_per_xp_in_credits" validate:"gt=0"`
}

// Cooldown is the minimum spacing between XP-earning messages.
func (x XPRules) Cooldown() time.Duration {
	return time.Duration(x.CooldownSeconds) * time.Second
}

type LevelRules struct {
	BaseXP     float64 `yaml:"base_xp" validate:"gt=0"`
	Multiplier float64 `yaml:"multiplier" validate:"gt=1"`
}

type XPBoostTier struct {
	ConsecutiveMonths int     `yaml:"consecutive_months" validate:"gte=0"`
	Boost             float64 `yaml:"boost" validate:"gte=0"`
}

type CommissionBonusTier struct {
	ConsecutiveMonths int     `yaml:"consecutive_months" validate:"gte=0"`
	Bonus             float64 `yaml:"bonus" validate:"gte=0"`
}

type VIPRules struct {
	DurationDays         int                   `yaml:"duration_days" validate:"gt=0"`
	XPBoostTiers         []XPBoostTier         `yaml:"xp_boost_tiers" validate:"dive"`
	CommissionBonusTiers []CommissionBonusTier `yaml:"commission_bonus_tiers" validate:"dive"`
}

type CommissionTier struct {
	Level int     `yaml:"level" validate:"gte=0"`
	Rate  float64 `yaml:"rate" validate:"gte=0,lte=1"`
}

type AffiliateRules struct {
	CommissionTiers  []CommissionTier `yaml:"commission_tiers" validate:"dive"`
	LoyaltyBonusRate float64          `yaml:"loyalty_bonus_rate" validate:"gte=0"`
	CashoutBaseRate  float64          `yaml:"cashout_base_rate" validate:"gte=0,lte=1"`
	CashoutVIPRate   float64          `yaml:"cashout_vip_rate" validate:"gte=0,lte=1"`
}

type WithdrawalThreshold struct {
	Level     int     `yaml:"level" validate:"gte=0"`
	Threshold float64 `yaml:"threshold" validate:"gte=0"`
}

type CashoutRules struct {
	MinimumLevel          int64                 `yaml:"minimum_level" validate:"gte=0"`
	MinimumAccountAgeDays int                   `yaml:"minimum_account_age_days" validate:"gte=0"`
	Thresholds            []WithdrawalThreshold `yaml:"withdrawal_thresholds" validate:"dive"`
	DefaultThreshold      float64               `yaml:"default_threshold" validate:"gte=0"`
	CreditToEURRate       float64               `yaml:"credit_to_eur_rate" validate:"gt=0"`
}

type MissionRules struct {
	Enabled       bool   `yaml:"enabled"`
	OptInDefault  bool   `yaml:"opt_in_default"`
	WeeklyWeekday string `yaml:"weekly_weekday" validate:"weekday"`
}

type GuildReward struct {
	CommissionRate        float64 `yaml:"commission_rate" validate:"gte=0,lte=1"`
	CommissionBoost       float64 `yaml:"commission_boost" validate:"gte=0"`
	MaxCommissionRate     float64 `yaml:"max_commission_rate" validate:"gte=0,lte=1"`
	CashoutCommissionRate float64 `yaml:"cashout_commission_rate" validate:"gte=0,lte=1"`
}

type GuildRules struct {
	Enabled       bool          `yaml:"enabled"`
	CreationCost  float64       `yaml:"creation_cost" validate:"gte=0"`
	MaxMembers    int           `yaml:"max_members" validate:"gte=1"`
	CategoryName  string        `yaml:"category_name" validate:"required"`
	NameMaxLength int           `yaml:"name_max_length" validate:"gte=3"`
	WeeklyRewards []GuildReward `yaml:"weekly_rewards" validate:"max=3,dive"`
}

// RewardFor returns the weekly reward for a 1-based rank.
func (g GuildRules) RewardFor(rank int) (GuildReward, bool) {
	if rank < 1 || rank > len(g.WeeklyRewards) {
		return GuildReward{}, false
	}
	return g.WeeklyRewards[rank-1], true
}

type LotteryRules struct {
	Enabled             bool    `yaml:"enabled"`
	TicketCost          float64 `yaml:"ticket_cost" validate:"gt=0"`
	PlayersPerRound     int     `yaml:"players_per_round" validate:"gte=2"`
	WinnerPrizeFraction float64 `yaml:"winner_prize_fraction" validate:"gt=0,lte=1"`
}

type EventDefinition struct {
	ID         string  `yaml:"id" validate:"required"`
	Name       string  `yaml:"name" validate:"required"`
	Multiplier float64 `yaml:"multiplier" validate:"gte=0"`
	Bonus      float64 `yaml:"bonus" validate:"gte=0"`
}

type EventRules struct {
	Available []EventDefinition `yaml:"available" validate:"dive"`
}

// Find returns the definition for id.
func (e EventRules) Find(id string) (EventDefinition, bool) {
	for _, d := range e.Available {
		if d.ID == id {
			return d, true
		}
	}
	return EventDefinition{}, false
}

type ModerationRules struct {
	Enabled bool `yaml:"enabled"`
}

type AIRules struct {
	ModerationPrompt string `yaml:"moderation_prompt"`
	PromoPrompt      string `yaml:"promo_prompt"`
	CoachPrompt      string `yaml:"coach_prompt"`
	CoachMinWeeklyXP int64  `yaml:"coach_min_weekly_xp" validate:"gte=0"`
}

type TransactionLogRules struct {
	MaxUserLogSize int `yaml:"max_user_log_size" validate:"gte=1"`
}

type TicketType struct {
	Label       string `yaml:"label" validate:"required"`
	Description string `yaml:"description"`
}

type TicketRules struct {
	CategoryName string       `yaml:"category_name" validate:"required"`
	Types        []TicketType `yaml:"types" validate:"dive"`
}

type PromoRules struct {
	DurationHours int `yaml:"duration_hours" validate:"gt=0"`
}

type ScheduleRules struct {
	EventSweep     time.Duration `yaml:"event_sweep" validate:"gt=0"`
	GiveawaySweep  time.Duration `yaml:"giveaway_sweep" validate:"gt=0"`
	VIPSweep       time.Duration `yaml:"vip_sweep" validate:"gt=0"`
	MissionHourUTC int           `yaml:"mission_hour_utc" validate:"gte=0,lte=23"`
	WeeklyWeekday  string        `yaml:"weekly_weekday" validate:"weekday"`
	WeeklyHourUTC  int           `yaml:"weekly_hour_utc" validate:"gte=0,lte=23"`
}

// DefaultRules mirrors the production defaults of the bot.
func DefaultRules() Rules {
	return Rules{
		Channels: Channels{
			Announcements: "annonces",
		},
		XP: XPRules{
			Enabled:                 true,
			MessageMin:              10,
			MessageMax:              20,
			CooldownSeconds:         60,
			AntiFarmMinWords:        3,
			PerEuroSpent:            20,
			PerVerifiedInvite:       100,
			ReferralLevel5Bonus:     2000,
			ReferralLevel5DaysLimit: 7,
			CostPerXPInCredits:      0.01,
		},
		Level: LevelRules{BaseXP: 150, Multiplier: 1.6},
		VIP:   VIPRules{DurationDays: 7},
		Affiliate: AffiliateRules{
			CashoutBaseRate: 0.05,
			CashoutVIPRate:  0.10,
		},
		Cashout: CashoutRules{
			MinimumLevel:          999,
			MinimumAccountAgeDays: 999,
			DefaultThreshold:      1000,
			CreditToEURRate:       1.0,
		},
		Missions: MissionRules{
			OptInDefault:  true,
			WeeklyWeekday: "monday",
		},
		Guilds: GuildRules{
			CreationCost:  3,
			MaxMembers:    10,
			CategoryName:  "Guildes",
			NameMaxLength: 32,
			WeeklyRewards: []GuildReward{
				{CommissionRate: 0.90, CashoutCommissionRate: 0.10},
				{CommissionBoost: 0.10, MaxCommissionRate: 0.80, CashoutCommissionRate: 0.10},
				{CommissionBoost: 0.05, MaxCommissionRate: 0.70, CashoutCommissionRate: 0.10},
			},
		},
		Lottery: LotteryRules{
			TicketCost:          0.25,
			PlayersPerRound:     3,
			WinnerPrizeFraction: 0.9,
		},
		Events: EventRules{
			Available: []EventDefinition{
				{ID: "double_xp", Name: "Double XP", Multiplier: 2.0},
				{ID: "commission_boost_10", Name: "Bonus Commission (+10%)", Bonus: 0.10},
			},
		},
		AI:             AIRules{CoachMinWeeklyXP: 10},
		TransactionLog: TransactionLogRules{MaxUserLogSize: 50},
		Tickets:        TicketRules{CategoryName: "Tickets"},
		Promos:         PromoRules{DurationHours: 24},
		Schedule: ScheduleRules{
			EventSweep:     time.Minute,
			GiveawaySweep:  15 * time.Second,
			VIPSweep:       time.Hour,
			MissionHourUTC: 0,
			WeeklyWeekday:  "monday",
			WeeklyHourUTC:  0,
		},
	}
}

// ParseWeekday accepts english weekday names, case-insensitive.
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := ParseWeekday(fl.Field().String())
		return err == nil
	})
	return v
}

// LoadRules reads a YAML (or JSON) rules document over DefaultRules and validates it.
func LoadRules(path string) (*Rules, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(b)
}

// ParseRules decodes and validates a rules document.
func ParseRules(b []byte) (*Rules, error) {
	r := DefaultRules()
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate runs struct tags plus the checks tags cannot express.
func (r *Rules) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	var errs []error
	seen := map[string]bool{}
	for _, e := range r.Events.Available {
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("duplicate event id %q", e.ID))
		}
		seen[e.ID] = true
	}
	if r.Moderation.Enabled && r.AI.ModerationPrompt == "" {
		errs = append(errs, errors.New("moderation enabled without ai.moderation_prompt"))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether userID may run admin commands.
func (r *Rules) IsAdmin(userID string) bool {
	return slices.Contains(r.AdminUserIDs, userID)
}

// HasStaffRole reports whether any of roleNames is a staff role.
func (r *Rules) HasStaffRole(roleNames []string) bool {
	for _, name := range roleNames {
		if slices.Contains(r.Roles.Staff, name) {
			return true
		}
	}
	return false
}
