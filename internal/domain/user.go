package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownField = errors.New("unknown ledger field")

// Field names a numeric counter on the user record that the ledger may mutate.
type Field string

const (
	FieldXP                      Field = "xp"
	FieldWeeklyXP                Field = "weekly_xp"
	FieldLevel                   Field = "level"
	FieldStoreCredit             Field = "store_credit"
	FieldMessageCount            Field = "message_count"
	FieldPurchaseCount           Field = "purchase_count"
	FieldPurchaseTotalValue      Field = "purchase_total_value"
	FieldWarnings                Field = "warnings"
	FieldReferralCount           Field = "referral_count"
	FieldAffiliateSaleCount      Field = "affiliate_sale_count"
	FieldAffiliateEarnings       Field = "affiliate_earnings"
	FieldWeeklyAffiliateEarnings Field = "weekly_affiliate_earnings"
	FieldAffiliateBooster        Field = "affiliate_booster"
	FieldCashoutCount            Field = "cashout_count"
)

// integer counters; everything else is a decimal amount
var integerFields = map[Field]bool{
	FieldXP:                 true,
	FieldWeeklyXP:           true,
	FieldLevel:              true,
	FieldMessageCount:       true,
	FieldPurchaseCount:      true,
	FieldWarnings:           true,
	FieldReferralCount:      true,
	FieldAffiliateSaleCount: true,
	FieldCashoutCount:       true,
}

var decimalFields = map[Field]bool{
	FieldStoreCredit:             true,
	FieldPurchaseTotalValue:      true,
	FieldAffiliateEarnings:       true,
	FieldWeeklyAffiliateEarnings: true,
	FieldAffiliateBooster:        true,
}

// ParseField validates a counter name coming from configuration or commands.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if integerFields[f] || decimalFields[f] {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// IsInteger reports whether the counter only holds whole numbers.
func (f Field) IsInteger() bool {
	return integerFields[f]
}

// Booster kinds sold in the credit shop.
type BoosterKind string

const (
	BoosterXP         BoosterKind = "xp_booster"
	BoosterCommission BoosterKind = "commission_booster"
)

// Booster is a time-boxed purchased effect.
type Booster struct {
	Kind       BoosterKind `json:"kind"`
	ExpiresAt  time.Time   `json:"expires_at"`
	Multiplier float64     `json:"multiplier,omitempty"`
	Bonus      float64     `json:"bonus,omitempty"`
}

func (b Booster) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}

// VIPStatus is the premium subscription state.
type VIPStatus struct {
	StartsAt          time.Time `json:"starts_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	ConsecutiveMonths int       `json:"consecutive_months"`
}

func (v *VIPStatus) Active(now time.Time) bool {
	return v != nil && now.Before(v.ExpiresAt)
}

// Guild ranking bonus types handed out by the weekly reset.
const (
	GuildBonusTop1 = "top1"
	GuildBonusTop2 = "top2"
	GuildBonusTop3 = "top3"
)

// GuildBonus is the transient weekly reward a member gets when their guild ranks top 3.
type GuildBonus struct {
	Type                  string  `json:"type"`
	CommissionRate        float64 `json:"commission_rate,omitempty"`
	CommissionBoost       float64 `json:"commission_boost,omitempty"`
	MaxCommissionRate     float64 `json:"max_commission_rate,omitempty"`
	CashoutCommissionRate float64 `json:"cashout_commission_rate,omitempty"`
}

func (g *GuildBonus) IsTop1() bool {
	return g != nil && g.Type == GuildBonusTop1
}

// IsRunnerUp reports a top-2 or top-3 ranking.
func (g *GuildBonus) IsRunnerUp() bool {
	return g != nil && (g.Type == GuildBonusTop2 || g.Type == GuildBonusTop3)
}

func (g *GuildBonus) IsRanked() bool {
	return g.IsTop1() || g.IsRunnerUp()
}

// User is the per-member ledger document.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`

	XP           int64 `json:"xp"`
	WeeklyXP     int64 `json:"weekly_xp"`
	Level        int64 `json:"level"`
	MessageCount int64 `json:"message_count"`

	PurchaseCount      int64           `json:"purchase_count"`
	PurchaseTotalValue decimal.Decimal `json:"purchase_total_value"`
	StoreCredit        decimal.Decimal `json:"store_credit"`
	Warnings           int64           `json:"warnings"`

	ReferralCount           int64           `json:"referral_count"`
	AffiliateSaleCount      int64           `json:"affiliate_sale_count"`
	AffiliateEarnings       decimal.Decimal `json:"affiliate_earnings"`
	WeeklyAffiliateEarnings decimal.Decimal `json:"weekly_affiliate_earnings"`
	AffiliateBooster        decimal.Decimal `json:"affiliate_booster"`
	PermanentAffiliateBonus bool            `json:"permanent_affiliate_bonus"`
	CashoutCount            int64           `json:"cashout_count"`

	Achievements        []string `json:"achievements"`
	CompletedChallenges []string `json:"completed_challenges"`

	XPGated       bool       `json:"xp_gated"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	JoinedAt      time.Time  `json:"joined_at"`

	ActiveBoosters map[string]Booster `json:"active_boosters"`
	VIP            *VIPStatus         `json:"vip_premium,omitempty"`

	MissionsOptIn bool     `json:"missions_opt_in"`
	DailyMission  *Mission `json:"current_daily_mission,omitempty"`
	WeeklyMission *Mission `json:"current_weekly_mission,omitempty"`

	GuildID    string      `json:"guild_id,omitempty"`
	GuildBonus *GuildBonus `json:"guild_bonus,omitempty"`

	ReferrerID            string `json:"referrer,omitempty"`
	Lvl5MilestoneRewarded bool   `json:"lvl5_milestone_rewarded"`

	TransactionLog []LedgerEntry `json:"transaction_log"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser returns the default record for a member seen for the first time.
func NewUser(id string, now time.Time, missionsOptIn bool) *User {
	return &User{
		ID:                  id,
		Level:               1,
		Achievements:        []string{},
		CompletedChallenges: []string{},
		JoinedAt:            now,
		ActiveBoosters:      map[string]Booster{},
		MissionsOptIn:       missionsOptIn,
		TransactionLog:      []LedgerEntry{},
		UpdatedAt:           now,
	}
}

// Value reads the counter named by f.
func (u *User) Value(f Field) (decimal.Decimal, error) {
	switch f {
	case FieldXP:
		return decimal.NewFromInt(u.XP), nil
	case FieldWeeklyXP:
		return decimal.NewFromInt(u.WeeklyXP), nil
	case FieldLevel:
		return decimal.NewFromInt(u.Level), nil
	case FieldStoreCredit:
		return u.StoreCredit, nil
	case FieldMessageCount:
		return decimal.NewFromInt(u.MessageCount), nil
	case FieldPurchaseCount:
		return decimal.NewFromInt(u.PurchaseCount), nil
	case FieldPurchaseTotalValue:
		return u.PurchaseTotalValue, nil
	case FieldWarnings:
		return decimal.NewFromInt(u.Warnings), nil
	case FieldReferralCount:
		return decimal.NewFromInt(u.ReferralCount), nil
	case FieldAffiliateSaleCount:
		return decimal.NewFromInt(u.AffiliateSaleCount), nil
	case FieldAffiliateEarnings:
		return u.AffiliateEarnings, nil
	case FieldWeeklyAffiliateEarnings:
		return u.WeeklyAffiliateEarnings, nil
	case FieldAffiliateBooster:
		return u.AffiliateBooster, nil
	case FieldCashoutCount:
		return decimal.NewFromInt(u.CashoutCount), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

// SetValue writes the counter named by f. Integer counters reject fractional values.
func (u *User) SetValue(f Field, v decimal.Decimal) error {
	if f.IsInteger() && !v.IsInteger() {
		return fmt.Errorf("field %s requires an integer value, got %s", f, v)
	}
	n := v.IntPart()
	switch f {
	case FieldXP:
		u.XP = n
	case FieldWeeklyXP:
		u.WeeklyXP = n
	case FieldLevel:
		u.Level = n
	case FieldStoreCredit:
		u.StoreCredit = v
	case FieldMessageCount:
		u.MessageCount = n
	case FieldPurchaseCount:
		u.PurchaseCount = n
	case FieldPurchaseTotalValue:
		u.PurchaseTotalValue = v
	case FieldWarnings:
		u.Warnings = n
	case FieldReferralCount:
		u.ReferralCount = n
	case FieldAffiliateSaleCount:
		u.AffiliateSaleCount = n
	case FieldAffiliateEarnings:
		u.AffiliateEarnings = v
	case FieldWeeklyAffiliateEarnings:
		u.WeeklyAffiliateEarnings = v
	case FieldAffiliateBooster:
		u.AffiliateBooster = v
	case FieldCashoutCount:
		u.CashoutCount = n
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

// HasAchievement reports whether id was already granted.
func (u *User) HasAchievement(id string) bool {
	for _, a := range u.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// AddAchievement records id once. It returns false when already present.
func (u *User) AddAchievement(id string) bool {
	if u.HasAchievement(id) {
		return false
	}
	u.Achievements = append(u.Achievements, id)
	return true
}
