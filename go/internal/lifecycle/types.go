package lifecycle

import (
	"time"

	"github.com/mcdev12/gamefloor/go/internal/settlement"
	"github.com/shopspring/decimal"
)

// StartRequest is an operator's choice of game and pricing for a machine.
type StartRequest struct {
	MachineID int64 `json:"machine_id"`
	GameID    int64 `json:"game_id"`
	PricingID int64 `json:"pricing_id"`
}

// StopTrigger records who asked for a stop. Both go through the same path.
type StopTrigger string

const (
	StopTriggerOperator StopTrigger = "operator"
	StopTriggerAuto     StopTrigger = "auto"
)

// StopRequest stops the active session of a machine. A non-zero SessionID
// pins the session instance the caller saw; a different active session makes
// the request a conflict.
type StopRequest struct {
	MachineID int64       `json:"machine_id"`
	SessionID int64       `json:"session_id,omitempty"`
	Trigger   StopTrigger `json:"trigger,omitempty"`
}

// StopOutcome is either a settlement (the session is stopped) or a pending
// match-count collection (per_match sessions, not stopped yet).
type StopOutcome struct {
	Settlement         *settlement.Settlement `json:"settlement,omitempty"`
	AwaitingMatchCount *MatchCountRequest     `json:"awaiting_match_count,omitempty"`
}

// MatchCountRequest is a per_match session waiting for the operator to
// report how many matches were played.
type MatchCountRequest struct {
	SessionID     int64           `json:"session_id"`
	MachineID     int64           `json:"machine_id"`
	MachineName   string          `json:"machine_name"`
	GameName      string          `json:"game_name"`
	PricePerMatch decimal.Decimal `json:"price_per_match"`
	RequestedAt   time.Time       `json:"requested_at"`
}

// ExtendRequest buys another duration block for a machine's fixed session.
type ExtendRequest struct {
	MachineID int64 `json:"machine_id"`
	PricingID int64 `json:"pricing_id"`
}

// ExtendResult is the session's new cumulative purchase.
type ExtendResult struct {
	SessionID       int64           `json:"session_id"`
	AddedMinutes    int             `json:"added_minutes"`
	DurationMinutes int             `json:"duration_minutes"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
}
