package domain

import "time"

// AuditLog records a staff or system action for later review.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	ActorID   string                 `db:"actor_id" json:"actor_id"`
	TargetID  string                 `db:"target_id" json:"target_id,omitempty"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryEconomy = "economy"
	AuditCategoryCashout = "cashout"
	AuditCategoryEvent   = "event"
	AuditCategoryAdmin   = "admin"
	AuditCategoryGuild   = "guild"
	AuditCategoryMod     = "moderation"
)

// Audit actions
const (
	AuditActionPurchaseRecorded = "purchase_recorded"
	AuditActionXPPurchase       = "xp_purchase"
	AuditActionShopPurchase     = "shop_purchase"

	AuditActionCashoutRequest = "cashout_request"
	AuditActionCashoutApprove = "cashout_approve"
	AuditActionCashoutDeny    = "cashout_deny"

	AuditActionEventStart = "event_start"
	AuditActionEventStop  = "event_stop"

	AuditActionAdminGrantXP = "admin_grant_xp"
	AuditActionAdminXPGate  = "admin_xp_gate"
	AuditActionAdminToken   = "admin_token_issued"

	AuditActionGuildCreate   = "guild_create"
	AuditActionGuildDissolve = "guild_dissolve"

	AuditActionWarn = "warn"
)
