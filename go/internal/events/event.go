// Package events describes floor lifecycle events and publishes them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a floor event.
type EventType string

const (
	EventTypeSessionStarted      EventType = "SessionStarted"
	EventTypeSessionExtended     EventType = "SessionExtended"
	EventTypeSessionStopped      EventType = "SessionStopped"
	EventTypeAutoStopFired       EventType = "AutoStopFired"
	EventTypePaymentConfirmed    EventType = "PaymentConfirmed"
	EventTypeSettlementCancelled EventType = "SettlementCancelled"
)

// Event is one floor transition.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	MachineID  int64     `json:"machine_id"`
	SessionID  int64     `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New stamps an event with a fresh ID.
func New(t EventType, machineID, sessionID int64, at time.Time, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		MachineID:  machineID,
		SessionID:  sessionID,
		OccurredAt: at.UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan Event
}

// NewRecorder creates a recorder buffering up to size events.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	select {
	case r.ch <- event:
	default:
	}
	return nil
}

// Drain returns every event recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
