package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event payload types shared by the lifecycle controller, the settlement
// manager and anything consuming the floor event stream.

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	MachineName     string          `json:"machine_name"`
	GameID          int64           `json:"game_id"`
	PricingID       int64           `json:"pricing_id"`
	PricingMode     string          `json:"pricing_mode"`
	DurationMinutes int             `json:"duration_minutes,omitempty"`
	Price           decimal.Decimal `json:"price"`
}

// SessionExtendedPayload is the payload for a SessionExtended event
type SessionExtendedPayload struct {
	PricingID       int64           `json:"pricing_id"`
	AddedMinutes    int             `json:"added_minutes"`
	DurationMinutes int             `json:"duration_minutes"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
}

// SessionStoppedPayload is the payload for a SessionStopped event
type SessionStoppedPayload struct {
	MachineName   string          `json:"machine_name"`
	PricingMode   string          `json:"pricing_mode"`
	Price         decimal.Decimal `json:"price"`
	DurationUsed  string          `json:"duration_used"`
	MatchesPlayed int             `json:"matches_played,omitempty"`
}

// AutoStopFiredPayload is the payload for an AutoStopFired event
type AutoStopFiredPayload struct {
	ExpiredAt time.Time `json:"expired_at"`
}

// PaymentConfirmedPayload is the payload for a PaymentConfirmed event
type PaymentConfirmedPayload struct {
	SettlementID string          `json:"settlement_id"`
	Amount       decimal.Decimal `json:"amount"`
	AmountGiven  decimal.Decimal `json:"amount_given"`
	Change       decimal.Decimal `json:"change"`
}

// SettlementCancelledPayload is the payload for a SettlementCancelled event
type SettlementCancelledPayload struct {
	SettlementID string          `json:"settlement_id"`
	Price        decimal.Decimal `json:"price"`
}
