// Package floor runs the one-second cadence that recomputes every machine's
// timer, feeds expiries to the auto-stop trigger and publishes the resulting
// view to whoever displays it.
package floor

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is the timer recomputation cadence.
const DefaultTickInterval = time.Second

// Source provides the current roster snapshot.
type Source interface {
	Snapshot() []models.Machine
}

// ExpiryObserver receives every timer reading; the auto-stop trigger
// implements it.
type ExpiryObserver interface {
	Observe(ctx context.Context, m models.Machine, r session.Reading, ok bool)
	Prune(present map[int64]bool)
}

// Floor ties the roster, the timers and the auto-stop trigger together.
type Floor struct {
	clock    clockwork.Clock
	source   Source
	observer ExpiryObserver
	interval time.Duration

	nudge chan struct{}

	mu    sync.RWMutex
	last  Snapshot
	sinks []func(Snapshot)
}

// New creates a floor loop. A nil observer disables auto-stop.
func New(clock clockwork.Clock, source Source, observer ExpiryObserver, interval time.Duration) *Floor {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Floor{
		clock:    clock,
		source:   source,
		observer: observer,
		interval: interval,
		nudge:    make(chan struct{}, 1),
	}
}

// Nudge asks Run for an early tick, typically after a roster change. Nudges
// that arrive while one is pending coalesce.
func (f *Floor) Nudge() {
	select {
	case f.nudge <- struct{}{}:
	default:
	}
}

// OnTick registers fn to receive every snapshot.
func (f *Floor) OnTick(fn func(Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, fn)
}

// Current returns the last computed snapshot.
func (f *Floor) Current() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last
}

// Tick recomputes the floor once.
func (f *Floor) Tick(ctx context.Context) Snapshot {
	now := f.clock.Now()
	machines := f.source.Snapshot()

	snap := Snapshot{At: now, Machines: make([]MachineView, 0, len(machines))}
	present := make(map[int64]bool, len(machines))
	for _, m := range machines {
		present[m.ID] = true
		r, ok := session.Sample(m, now)
		if f.observer != nil {
			f.observer.Observe(ctx, m, r, ok)
		}
		snap.Machines = append(snap.Machines, viewOf(m, r, ok))
	}
	if f.observer != nil {
		f.observer.Prune(present)
	}

	f.mu.Lock()
	f.last = snap
	sinks := f.sinks
	f.mu.Unlock()

	for _, fn := range sinks {
		fn(snap)
	}
	return snap
}

// Run ticks until ctx is done.
func (f *Floor) Run(ctx context.Context) error {
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", f.interval).Msg("floor ticker started")
	f.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("floor ticker stopped")
			return nil
		case <-ticker.Chan():
			f.Tick(ctx)
		case <-f.nudge:
			f.Tick(ctx)
		}
	}
}
