package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/shopspring/decimal"
)

// Settlement is a stopped session waiting for payment.
type Settlement struct {
	ID               uuid.UUID          `json:"id"`
	SessionID        int64              `json:"session_id"`
	MachineID        int64              `json:"machine_id"`
	MachineName      string             `json:"machine_name"`
	GameName         string             `json:"game_name"`
	PricingMode      models.PricingMode `json:"pricing_mode"`
	Price            decimal.Decimal    `json:"price"`
	Summary          string             `json:"summary"`
	SuggestedTenders []decimal.Decimal  `json:"suggested_tenders"`
	OpenedAt         time.Time          `json:"opened_at"`
}
