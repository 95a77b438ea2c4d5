package floor

import (
	"time"

	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/shopspring/decimal"
)

// MachineView is what the display shows for one machine at one tick.
type MachineView struct {
	ID     int64                `json:"id"`
	Name   string               `json:"name"`
	Status models.MachineStatus `json:"status"`

	SessionID       int64                `json:"session_id,omitempty"`
	GameName        string               `json:"game_name,omitempty"`
	PricingMode     models.PricingMode   `json:"pricing_mode,omitempty"`
	StartTime       *time.Time           `json:"start_time,omitempty"`
	DurationMinutes int                  `json:"duration_minutes,omitempty"`
	TotalPaid       *decimal.Decimal     `json:"total_paid,omitempty"`
	Elapsed         string               `json:"elapsed,omitempty"`
	ElapsedSeconds  int64                `json:"elapsed_seconds,omitempty"`
	Remaining       *string              `json:"remaining,omitempty"`
	RemainingSecs   *int64               `json:"remaining_seconds,omitempty"`
	Expired         bool                 `json:"expired"`
	Affordances     *session.Affordances `json:"affordances,omitempty"`
}

// Snapshot is the whole floor at one tick.
type Snapshot struct {
	At       time.Time     `json:"at"`
	Machines []MachineView `json:"machines"`
}

func viewOf(m models.Machine, r session.Reading, ok bool) MachineView {
	v := MachineView{ID: m.ID, Name: m.Name, Status: m.Status}
	if !ok {
		return v
	}

	s := m.ActiveSession
	start := s.StartTime
	aff := session.AffordancesFor(r.Mode)
	v.SessionID = s.ID
	v.GameName = s.GameName
	v.PricingMode = r.Mode
	v.StartTime = &start
	v.Elapsed = session.FormatDuration(r.Elapsed)
	v.ElapsedSeconds = int64(r.Elapsed / time.Second)
	v.Expired = r.Expired
	v.Affordances = &aff

	if r.Remaining != nil {
		rem := session.FormatDuration(*r.Remaining)
		secs := int64(*r.Remaining / time.Second)
		paid := s.TotalPaid
		v.Remaining = &rem
		v.RemainingSecs = &secs
		v.DurationMinutes = s.DurationMinutes
		v.TotalPaid = &paid
	}
	return v
}
