// Package session derives what a running session looks like at a given
// instant: elapsed time, remaining time and whether it has expired.
//
// Every value is computed from now − start_time; nothing is accumulated, so a
// process that was suspended for minutes picks up exactly where the wall
// clock says it should.
package session

import (
	"time"

	"github.com/mcdev12/gamefloor/go/internal/models"
)

// Reading is one sample of a session's timer.
type Reading struct {
	Mode    models.PricingMode
	Elapsed time.Duration
	// Remaining is nil for per_match sessions, which have no time cap.
	Remaining *time.Duration
	Expired   bool
}

// Sample computes the timer reading of the machine's active session at now.
// It returns false when the machine has no active session.
func Sample(m models.Machine, now time.Time) (Reading, bool) {
	s := m.ActiveSession
	if s == nil {
		return Reading{}, false
	}

	r := Reading{
		Mode:    ResolveMode(s),
		Elapsed: Elapsed(s.StartTime, now),
	}
	if r.Mode == models.PricingModeFixed {
		rem := Remaining(s.DurationMinutes, r.Elapsed)
		r.Remaining = &rem
		r.Expired = rem == 0 && m.Status == models.MachineStatusInSession
	}
	return r, true
}

// Elapsed is now − start truncated to whole seconds, clamped at zero when
// the local clock lags the server's start time.
func Elapsed(start, now time.Time) time.Duration {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

// Remaining is max(0, durationMinutes·60s − elapsed).
func Remaining(durationMinutes int, elapsed time.Duration) time.Duration {
	rem := time.Duration(durationMinutes)*time.Minute - elapsed
	if rem < 0 {
		return 0
	}
	return rem.Truncate(time.Second)
}
