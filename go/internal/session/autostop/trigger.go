// Package autostop ends fixed sessions whose purchased time has run out.
//
// Each watched session moves Running → Expired → StopRequested. The move to
// StopRequested happens at most once per session instance, a grace delay
// after the timer first reads zero, and issues the same stop an operator
// would. A different session showing up on the machine starts a new watch.
package autostop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/rs/zerolog/log"
)

// DefaultGrace is the delay between expiry and the stop request.
const DefaultGrace = 5 * time.Second

// State of a watched session.
type State int

const (
	StateRunning State = iota
	StateExpired
	StateStopRequested
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExpired:
		return "expired"
	case StateStopRequested:
		return "stop_requested"
	default:
		return "unknown"
	}
}

// Stopper issues a stop for a specific session on a machine. The lifecycle
// controller implements it with the operator stop path.
type Stopper interface {
	StopSession(ctx context.Context, machineID, sessionID int64) error
}

type watch struct {
	sessionID int64
	state     State
	timer     clockwork.Timer
}

// Trigger watches the timers of fixed sessions.
type Trigger struct {
	clock   clockwork.Clock
	grace   time.Duration
	stopper Stopper

	mu      sync.Mutex
	watches map[int64]*watch // by machine ID
}

// NewTrigger creates a trigger. A zero grace uses DefaultGrace.
func NewTrigger(clock clockwork.Clock, stopper Stopper, grace time.Duration) *Trigger {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Trigger{
		clock:   clock,
		grace:   grace,
		stopper: stopper,
		watches: make(map[int64]*watch),
	}
}

// Observe feeds one timer reading for machine m. ok is false when the
// machine has no active session.
func (t *Trigger) Observe(ctx context.Context, m models.Machine, r session.Reading, ok bool) {
	if !ok || r.Mode != models.PricingModeFixed || !m.ActiveSession.Synced() {
		t.Forget(m.ID)
		return
	}
	sessionID := m.ActiveSession.ID

	t.mu.Lock()
	defer t.mu.Unlock()

	w, exists := t.watches[m.ID]
	if !exists || w.sessionID != sessionID {
		if exists {
			stopAndDrainTimer(w.timer)
		}
		w = &watch{sessionID: sessionID, state: StateRunning}
		t.watches[m.ID] = w
	}

	if w.state != StateRunning || !r.Expired {
		return
	}

	w.state = StateExpired
	machineID := m.ID
	w.timer = t.clock.AfterFunc(t.grace, func() {
		t.fire(ctx, machineID, sessionID)
	})

	log.Info().
		Int64("machine_id", machineID).
		Int64("session_id", sessionID).
		Dur("grace", t.grace).
		Msg("session time exhausted, stop scheduled")
}

func (t *Trigger) fire(ctx context.Context, machineID, sessionID int64) {
	if ctx.Err() != nil {
		return
	}

	t.mu.Lock()
	w, exists := t.watches[machineID]
	if !exists || w.sessionID != sessionID || w.state != StateExpired {
		t.mu.Unlock()
		return
	}
	w.state = StateStopRequested
	w.timer = nil
	t.mu.Unlock()

	log.Info().
		Int64("machine_id", machineID).
		Int64("session_id", sessionID).
		Msg("auto-stop firing")

	if err := t.stopper.StopSession(ctx, machineID, sessionID); err != nil {
		if errors.Is(err, floorerr.ErrStateConflict) {
			// A manual stop landed first.
			log.Debug().Err(err).Int64("session_id", sessionID).Msg("auto-stop superseded")
			return
		}
		log.Warn().Err(err).
			Int64("machine_id", machineID).
			Int64("session_id", sessionID).
			Msg("auto-stop request failed, waiting for server reconciliation")
	}
}

// Forget drops the watch for a machine and cancels any pending stop.
func (t *Trigger) Forget(machineID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, exists := t.watches[machineID]; exists {
		stopAndDrainTimer(w.timer)
		delete(t.watches, machineID)
	}
}

// Prune forgets every machine not in present.
func (t *Trigger) Prune(present map[int64]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, w := range t.watches {
		if !present[id] {
			stopAndDrainTimer(w.timer)
			delete(t.watches, id)
		}
	}
}

// State reports the watch state of a machine's session.
func (t *Trigger) State(machineID int64) (sessionID int64, state State, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, exists := t.watches[machineID]
	if !exists {
		return 0, StateRunning, false
	}
	return w.sessionID, w.state, true
}

// Close cancels every pending stop.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, w := range t.watches {
		stopAndDrainTimer(w.timer)
		delete(t.watches, id)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
