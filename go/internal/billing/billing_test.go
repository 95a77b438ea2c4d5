package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestFixedTotalSumsInitialBlockAndExtensions(t *testing.T) {
	initial := models.GamePricing{DurationMinutes: 30, Price: dec("20")}
	extension := models.GamePricing{DurationMinutes: 15, Price: dec("12.50")}

	minutes, total := FixedTotal(initial, extension)
	assert.Equal(t, 45, minutes)
	assert.True(t, total.Equal(dec("32.50")), "total = %s", total)
}

func TestFixedTotalEmpty(t *testing.T) {
	minutes, total := FixedTotal()
	assert.Zero(t, minutes)
	assert.True(t, total.IsZero())
}

func TestExtendAccumulatesBlocks(t *testing.T) {
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	s := models.Session{ID: 7, StartTime: start, DurationMinutes: 30, TotalPaid: dec("20")}
	block := models.GamePricing{PricingMode: models.PricingModeFixed, DurationMinutes: 15, Price: dec("10")}

	s = Extend(s, block)
	assert.Equal(t, 45, s.DurationMinutes)
	assert.True(t, s.TotalPaid.Equal(dec("30")), "total = %s", s.TotalPaid)
	assert.Equal(t, 1, s.Extensions)
	assert.Equal(t, start, s.StartTime)

	s = Extend(s, block)
	assert.Equal(t, 60, s.DurationMinutes)
	assert.True(t, s.TotalPaid.Equal(dec("40")))
	assert.Equal(t, 2, s.Extensions)
}

func TestMatchTotal(t *testing.T) {
	assert.True(t, MatchTotal(4, dec("6")).Equal(dec("24")))
	assert.True(t, MatchTotal(3, dec("2.5")).Equal(dec("7.5")))
	assert.True(t, MatchTotal(0, dec("6")).IsZero())
	assert.True(t, MatchTotal(-2, dec("6")).IsZero())
}

func TestChange(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		given   string
		change  string
		wantErr bool
	}{
		{name: "exact", price: "20", given: "20", change: "0"},
		{name: "overpaid", price: "20", given: "25", change: "5"},
		{name: "fractional", price: "12.50", given: "20", change: "7.5"},
		{name: "insufficient", price: "20", given: "15", wantErr: true},
		{name: "negative", price: "0", given: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change, err := Change(dec(tt.price), dec(tt.given))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, floorerr.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, change.Equal(dec(tt.change)), "change = %s", change)
		})
	}
}

func TestSuggestedTendersStartWithExactPrice(t *testing.T) {
	got := SuggestedTenders(dec("23"), nil)
	require.Len(t, got, 5)

	want := []string{"23", "25", "30", "40", "50"}
	for i, w := range want {
		assert.True(t, got[i].Equal(dec(w)), "tender %d = %s, want %s", i, got[i], w)
	}
}

func TestSuggestedTendersDeduplicate(t *testing.T) {
	got := SuggestedTenders(dec("20"), nil)

	want := []string{"20", "50", "100", "200"}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.True(t, got[i].Equal(dec(w)), "tender %d = %s, want %s", i, got[i], w)
	}
}

func TestSuggestedTendersCustomDenominations(t *testing.T) {
	got := SuggestedTenders(dec("7"), []decimal.Decimal{dec("0"), dec("2")})

	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(dec("7")))
	assert.True(t, got[1].Equal(dec("8")))
}

func TestSuggestedTendersNegativePrice(t *testing.T) {
	assert.Nil(t, SuggestedTenders(dec("-1"), nil))
}
