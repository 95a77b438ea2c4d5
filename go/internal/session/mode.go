package session

import "github.com/mcdev12/gamefloor/go/internal/models"

// ResolveMode classifies a session for billing. A session without a pricing
// mode is treated as fixed; the floor service has historically omitted the
// field for timed rentals.
func ResolveMode(s *models.Session) models.PricingMode {
	if s == nil || s.PricingMode == "" {
		return models.PricingModeFixed
	}
	return s.PricingMode
}

// Affordances lists what the operator surface may offer for a session.
type Affordances struct {
	ShowsRemaining  bool `json:"shows_remaining"`
	CanExtend       bool `json:"can_extend"`
	NeedsMatchCount bool `json:"needs_match_count"`
	AutoStops       bool `json:"auto_stops"`
}

// AffordancesFor derives the affordances from the resolved mode.
func AffordancesFor(mode models.PricingMode) Affordances {
	fixed := mode != models.PricingModePerMatch
	return Affordances{
		ShowsRemaining:  fixed,
		CanExtend:       fixed,
		NeedsMatchCount: !fixed,
		AutoStops:       fixed,
	}
}
