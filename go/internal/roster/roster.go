// Package roster keeps the shared snapshot of every machine on the floor and
// its active session.
//
// Only two writers exist: Refresh, which replaces the snapshot with the floor
// service's view, and Patch, which the lifecycle controller uses to apply the
// outcome of a successful action before the next refresh confirms it.
package roster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Source defines what the roster needs from the floor service
type Source interface {
	ListMachines(ctx context.Context) ([]models.Machine, error)
	CheckAutoStop(ctx context.Context) error
}

// Roster is the machine snapshot.
type Roster struct {
	source Source
	clock  clockwork.Clock

	mu           sync.RWMutex
	machines     map[int64]models.Machine
	version      uint64
	patchVersion map[int64]uint64
	refreshedAt  time.Time
	listeners    []func([]models.Machine)
}

// New creates an empty roster.
func New(source Source, clock clockwork.Clock) *Roster {
	return &Roster{
		source:       source,
		clock:        clock,
		machines:     make(map[int64]models.Machine),
		patchVersion: make(map[int64]uint64),
	}
}

// OnChange registers fn to receive the snapshot after every write.
func (r *Roster) OnChange(fn func([]models.Machine)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot returns a copy of every machine ordered by name, then ID.
func (r *Roster) Snapshot() []models.Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Roster) snapshotLocked() []models.Machine {
	out := make([]models.Machine, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, cloneMachine(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Machine returns a copy of one machine.
func (r *Roster) Machine(id int64) (models.Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[id]
	if !ok {
		return models.Machine{}, false
	}
	return cloneMachine(m), true
}

// MachineBySession finds the machine currently running sessionID.
func (r *Roster) MachineBySession(sessionID int64) (models.Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.machines {
		if m.ActiveSession != nil && m.ActiveSession.ID == sessionID {
			return cloneMachine(m), true
		}
	}
	return models.Machine{}, false
}

// RefreshedAt is the time of the last successful refresh.
func (r *Roster) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}

// Refresh replaces the snapshot with the floor service's current view.
// Machines patched while the request was in flight keep their patched state;
// the following refresh settles them.
func (r *Roster) Refresh(ctx context.Context) error {
	r.mu.RLock()
	startVersion := r.version
	r.mu.RUnlock()

	machines, err := r.source.ListMachines(ctx)
	if err != nil {
		return fmt.Errorf("failed to list machines: %w", err)
	}

	next := make(map[int64]models.Machine, len(machines))
	for _, m := range machines {
		next[m.ID] = normalize(m)
	}

	r.mu.Lock()
	for id, v := range r.patchVersion {
		if v > startVersion {
			if patched, ok := r.machines[id]; ok {
				next[id] = patched
			}
			continue
		}
		delete(r.patchVersion, id)
	}
	r.machines = next
	r.version++
	r.refreshedAt = r.clock.Now()
	snap, listeners := r.snapshotLocked(), r.listeners
	r.mu.Unlock()

	notify(listeners, snap)
	return nil
}

// Patch applies the local outcome of a successful action to one machine.
func (r *Roster) Patch(m models.Machine) {
	r.mu.Lock()
	r.version++
	r.machines[m.ID] = normalize(m)
	r.patchVersion[m.ID] = r.version
	snap, listeners := r.snapshotLocked(), r.listeners
	r.mu.Unlock()

	log.Debug().
		Int64("machine_id", m.ID).
		Str("status", string(m.Status)).
		Msg("roster patched")

	notify(listeners, snap)
}

func notify(listeners []func([]models.Machine), snap []models.Machine) {
	for _, fn := range listeners {
		fn(snap)
	}
}

// normalize enforces status = in_session exactly when a session is attached.
func normalize(m models.Machine) models.Machine {
	if !m.Consistent() {
		log.Warn().
			Int64("machine_id", m.ID).
			Str("status", string(m.Status)).
			Bool("has_session", m.ActiveSession != nil).
			Msg("inconsistent machine state from floor service, deriving status from session")
	}
	return m.Normalize()
}

func cloneMachine(m models.Machine) models.Machine {
	if m.ActiveSession != nil {
		s := *m.ActiveSession
		m.ActiveSession = &s
	}
	return m
}
