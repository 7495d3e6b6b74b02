package service

import (
	"errors"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ledger"
)

// User input.
var (
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrInvalidAmount      = ledger.ErrInvalidAmount
	ErrInvalidColor       = errors.New("invalid hex color")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidWinnerCount = errors.New("winner count must be between 1 and 25")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrUnknownItem        = errors.New("unknown shop item")
	ErrUnknownProduct     = errors.New("unknown product")
	ErrUnknownTicketType  = errors.New("unknown ticket type")
	ErrUnknownCategory    = errors.New("unknown leaderboard category")
)

// Eligibility.
var (
	ErrInsufficientFunds  = ledger.ErrInsufficientFunds
	ErrLevelTooLow        = errors.New("level too low")
	ErrAccountTooYoung    = errors.New("account too young")
	ErrBelowThreshold     = errors.New("amount below withdrawal threshold")
	ErrAlreadyInGuild     = errors.New("already in a guild")
	ErrNotInGuild         = errors.New("not in a guild")
	ErrGuildFull          = errors.New("guild is full")
	ErrNotGuildOwner      = errors.New("not the guild owner")
	ErrOwnerCannotLeave   = errors.New("guild owner cannot leave")
	ErrNameTaken          = errors.New("guild name already taken")
	ErrSelfInvite         = errors.New("cannot invite yourself or a bot")
	ErrAlreadyParticipant = errors.New("already participating")
	ErrEventActive        = errors.New("event already active")
	ErrEventNotActive     = errors.New("event not active")
	ErrFeatureDisabled    = errors.New("feature disabled")
	ErrNotAdmin           = errors.New("admin only")
	ErrAlreadyVerified    = errors.New("already verified")
	ErrNoParticipants     = errors.New("no participants")
)

// Lookups and plumbing.
var (
	ErrCashoutNotFound      = errors.New("cashout request not found or already handled")
	ErrGuildNotFound        = errors.New("guild not found")
	ErrGiveawayNotFound     = errors.New("giveaway not found")
	ErrChannelNotConfigured = errors.New("channel not configured")
	ErrRoleNotConfigured    = errors.New("role not configured")
	ErrDMFailed             = errors.New("direct message could not be delivered")
)
