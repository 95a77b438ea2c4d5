package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingMode defines how a session is billed.
type PricingMode string

const (
	PricingModeFixed    PricingMode = "fixed"
	PricingModePerMatch PricingMode = "per_match"
)

// Session is a rental of one machine.
type Session struct {
	ID          int64       `json:"id"`
	MachineID   int64       `json:"machine_id"`
	GameID      int64       `json:"game_id"`
	GameName    string      `json:"game_name"`
	PricingMode PricingMode `json:"pricing_mode,omitempty"`
	StartTime   time.Time   `json:"start_time"`

	// fixed: purchased minutes including every extension
	DurationMinutes int             `json:"duration_minutes,omitempty"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	Extensions      int             `json:"extensions,omitempty"`

	// per_match
	PricePerMatch decimal.Decimal `json:"price_per_match"`
}

// Synced reports whether the session carries a server-assigned ID.
func (s Session) Synced() bool {
	return s.ID != 0
}
