package models

import "github.com/shopspring/decimal"

// GamePricing is one purchasable block from the catalog: either a duration
// block (fixed) or a bundle of matches (per_match).
type GamePricing struct {
	ID              int64           `json:"id"`
	GameID          int64           `json:"game_id"`
	PricingMode     PricingMode     `json:"pricing_mode"`
	DurationMinutes int             `json:"duration_minutes,omitempty"`
	MatchesCount    int             `json:"matches_count,omitempty"`
	Price           decimal.Decimal `json:"price"`
}

// Mode returns the pricing mode, defaulting to fixed.
func (p GamePricing) Mode() PricingMode {
	if p.PricingMode == "" {
		return PricingModeFixed
	}
	return p.PricingMode
}

// PricePerMatch is the unit price of a match bundle.
func (p GamePricing) PricePerMatch() decimal.Decimal {
	if p.MatchesCount <= 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromInt(int64(p.MatchesCount)))
}

// Game is a catalog title with its price list.
type Game struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Pricings []GamePricing `json:"pricings"`
}

// Pricing finds the pricing entry with the given ID.
func (g Game) Pricing(id int64) (GamePricing, bool) {
	for _, p := range g.Pricings {
		if p.ID == id {
			if p.GameID == 0 {
				p.GameID = g.ID
			}
			return p, true
		}
	}
	return GamePricing{}, false
}
