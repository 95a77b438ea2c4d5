package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StopResult is what the floor service returns once a session is stopped
// and its price finalized.
type StopResult struct {
	Session       Session         `json:"session"`
	MachineName   string          `json:"machine_name"`
	Price         decimal.Decimal `json:"price"`
	DurationUsed  string          `json:"duration_used"`
	MatchesPlayed int             `json:"matches_played,omitempty"`
}

// SessionStatus is the billing status the floor service reports for a
// running session.
type SessionStatus struct {
	PricingMode   PricingMode     `json:"pricing_mode"`
	PricePerMatch decimal.Decimal `json:"price_per_match"`
	MachineName   string          `json:"machine_name"`
}

// Receipt is the proof of a confirmed payment.
type Receipt struct {
	SessionID   int64           `json:"session_id"`
	Amount      decimal.Decimal `json:"amount"`
	AmountGiven decimal.Decimal `json:"amount_given"`
	Change      decimal.Decimal `json:"change"`
	PaidAt      time.Time       `json:"paid_at"`
}
