// Package billing holds the price arithmetic shared by the lifecycle
// controller and the settlement manager. All amounts are decimals.
package billing

import (
	"sort"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/shopspring/decimal"
)

// FixedTotal sums the catalog prices of every purchased block, the initial
// block plus each extension.
func FixedTotal(blocks ...models.GamePricing) (minutes int, total decimal.Decimal) {
	total = decimal.Zero
	for _, b := range blocks {
		minutes += b.DurationMinutes
		total = total.Add(b.Price)
	}
	return minutes, total
}

// Extend returns s after buying block p on top of what it already holds.
// The start time is left untouched so the running timer keeps counting from
// the original start.
func Extend(s models.Session, p models.GamePricing) models.Session {
	held := models.GamePricing{
		PricingMode:     models.PricingModeFixed,
		DurationMinutes: s.DurationMinutes,
		Price:           s.TotalPaid,
	}
	s.DurationMinutes, s.TotalPaid = FixedTotal(held, p)
	s.Extensions++
	return s
}

// MatchTotal is matches × price per match.
func MatchTotal(matches int, pricePerMatch decimal.Decimal) decimal.Decimal {
	if matches <= 0 {
		return decimal.Zero
	}
	return pricePerMatch.Mul(decimal.NewFromInt(int64(matches)))
}

// Change computes amountGiven − price. It fails with a validation error when
// the tender does not cover the price.
func Change(price, amountGiven decimal.Decimal) (decimal.Decimal, error) {
	if amountGiven.IsNegative() {
		return decimal.Zero, floorerr.Invalid("amount_given", "must not be negative")
	}
	if amountGiven.LessThan(price) {
		return decimal.Zero, floorerr.Invalid("amount_given",
			"insufficient: "+amountGiven.String()+" given for "+price.String())
	}
	return amountGiven.Sub(price), nil
}

// DefaultDenominations are the notes and coins tender suggestions round to.
var DefaultDenominations = []decimal.Decimal{
	decimal.NewFromInt(5),
	decimal.NewFromInt(10),
	decimal.NewFromInt(20),
	decimal.NewFromInt(50),
	decimal.NewFromInt(100),
	decimal.NewFromInt(200),
}

const maxSuggestions = 5

// SuggestedTenders offers the exact price followed by the price rounded up
// to each denomination, ascending and without duplicates.
func SuggestedTenders(price decimal.Decimal, denominations []decimal.Decimal) []decimal.Decimal {
	if price.IsNegative() {
		return nil
	}
	if len(denominations) == 0 {
		denominations = DefaultDenominations
	}

	seen := map[string]bool{}
	var out []decimal.Decimal
	add := func(d decimal.Decimal) {
		key := d.String()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, d)
	}

	add(price)
	for _, d := range denominations {
		if !d.IsPositive() {
			continue
		}
		add(roundUpTo(price, d))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func roundUpTo(price, step decimal.Decimal) decimal.Decimal {
	q := price.Div(step).Ceil()
	if q.IsZero() {
		q = decimal.NewFromInt(1)
	}
	return q.Mul(step)
}
