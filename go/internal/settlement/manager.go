// Package settlement collects payment for stopped sessions.
//
// Any number of settlements may be open at once, one per stopped and unpaid
// session. Each is confirmed or cancelled on its own; neither touches the
// others.
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/billing"
	"github.com/mcdev12/gamefloor/go/internal/events"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Remote defines what the manager needs from the floor service
type Remote interface {
	ConfirmPayment(ctx context.Context, sessionID int64, amountGiven decimal.Decimal) (*models.Receipt, error)
}

// Refresher reloads the machine roster after a payment lands.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Manager holds the open settlements in the order they were opened.
type Manager struct {
	remote        Remote
	refresher     Refresher
	publisher     events.Publisher
	clock         clockwork.Clock
	denominations []decimal.Decimal

	mu         sync.Mutex
	open       []*Settlement
	confirming map[uuid.UUID]bool
	paid       map[int64]bool
}

// NewManager creates a manager. A nil publisher discards events and nil
// denominations use billing.DefaultDenominations.
func NewManager(remote Remote, refresher Refresher, publisher events.Publisher, clock clockwork.Clock, denominations []decimal.Decimal) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		remote:        remote,
		refresher:     refresher,
		publisher:     publisher,
		clock:         clock,
		denominations: denominations,
		confirming:    make(map[uuid.UUID]bool),
		paid:          make(map[int64]bool),
	}
}

// Open adds a settlement for a stopped session. Opening the same session
// twice returns the settlement already open.
func (m *Manager) Open(res models.StopResult) (Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID := res.Session.ID
	if m.paid[sessionID] {
		return Settlement{}, floorerr.Conflict("session %d is already paid", sessionID)
	}
	for _, s := range m.open {
		if s.SessionID == sessionID {
			return *s, nil
		}
	}

	s := &Settlement{
		ID:               uuid.New(),
		SessionID:        sessionID,
		MachineID:        res.Session.MachineID,
		MachineName:      res.MachineName,
		GameName:         res.Session.GameName,
		PricingMode:      session.ResolveMode(&res.Session),
		Price:            res.Price,
		Summary:          summarize(res),
		SuggestedTenders: billing.SuggestedTenders(res.Price, m.denominations),
		OpenedAt:         m.clock.Now(),
	}
	m.open = append(m.open, s)

	log.Info().
		Str("settlement_id", s.ID.String()).
		Int64("session_id", sessionID).
		Str("price", s.Price.String()).
		Int("open_settlements", len(m.open)).
		Msg("settlement opened")

	return *s, nil
}

// List returns the open settlements, oldest first.
func (m *Manager) List() []Settlement {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Settlement, 0, len(m.open))
	for _, s := range m.open {
		out = append(out, *s)
	}
	return out
}

// Get returns one open settlement.
func (m *Manager) Get(id uuid.UUID) (Settlement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return *m.open[i], true
	}
	return Settlement{}, false
}

// Confirm takes payment for a settlement. The tender must cover the price.
// On success the settlement closes and the roster is refreshed; on failure
// it stays open.
func (m *Manager) Confirm(ctx context.Context, id uuid.UUID, amountGiven decimal.Decimal) (*models.Receipt, error) {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return nil, floorerr.Conflict("settlement %s is not open", id)
	}
	if m.confirming[id] {
		m.mu.Unlock()
		return nil, floorerr.Conflict("payment for settlement %s already in progress", id)
	}
	s := *m.open[i]
	change, err := billing.Change(s.Price, amountGiven)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.confirming[id] = true
	m.mu.Unlock()

	receipt, err := m.remote.ConfirmPayment(ctx, s.SessionID, amountGiven)

	m.mu.Lock()
	delete(m.confirming, id)
	if err != nil {
		m.mu.Unlock()
		log.Warn().Err(err).
			Str("settlement_id", id.String()).
			Int64("session_id", s.SessionID).
			Msg("payment confirmation failed, settlement stays open")
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	if j := m.indexLocked(id); j >= 0 {
		m.open = append(m.open[:j], m.open[j+1:]...)
	}
	m.paid[s.SessionID] = true
	m.mu.Unlock()

	if receipt == nil {
		receipt = &models.Receipt{SessionID: s.SessionID}
	}
	if receipt.Amount.IsZero() {
		receipt.Amount = s.Price
	}
	if receipt.Change.IsZero() {
		receipt.Change = change
	}
	receipt.AmountGiven = amountGiven
	receipt.PaidAt = m.clock.Now()

	log.Info().
		Str("settlement_id", id.String()).
		Int64("session_id", s.SessionID).
		Str("amount", receipt.Amount.String()).
		Str("change", receipt.Change.String()).
		Msg("payment confirmed")

	m.publish(ctx, events.New(events.EventTypePaymentConfirmed, s.MachineID, s.SessionID, receipt.PaidAt,
		events.PaymentConfirmedPayload{
			SettlementID: id.String(),
			Amount:       receipt.Amount,
			AmountGiven:  amountGiven,
			Change:       receipt.Change,
		}))

	if m.refresher != nil {
		if err := m.refresher.Refresh(ctx); err != nil {
			log.Debug().Err(err).Msg("roster refresh after payment failed")
		}
	}

	return receipt, nil
}

// Cancel dismisses a settlement without billing. The session stays stopped;
// reconciling the unpaid session is left to the operator.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return floorerr.Conflict("settlement %s is not open", id)
	}
	if m.confirming[id] {
		m.mu.Unlock()
		return floorerr.Conflict("payment for settlement %s already in progress", id)
	}
	s := *m.open[i]
	m.open = append(m.open[:i], m.open[i+1:]...)
	m.mu.Unlock()

	log.Warn().
		Str("settlement_id", id.String()).
		Int64("session_id", s.SessionID).
		Str("price", s.Price.String()).
		Msg("settlement cancelled without payment")

	m.publish(ctx, events.New(events.EventTypeSettlementCancelled, s.MachineID, s.SessionID, m.clock.Now(),
		events.SettlementCancelledPayload{SettlementID: id.String(), Price: s.Price}))
	return nil
}

func (m *Manager) indexLocked(id uuid.UUID) int {
	for i, s := range m.open {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if err := m.publisher.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish event")
	}
}

func summarize(res models.StopResult) string {
	if session.ResolveMode(&res.Session) == models.PricingModePerMatch {
		word := "matches"
		if res.MatchesPlayed == 1 {
			word = "match"
		}
		if res.DurationUsed == "" {
			return fmt.Sprintf("%d %s", res.MatchesPlayed, word)
		}
		return fmt.Sprintf("%d %s in %s", res.MatchesPlayed, word, res.DurationUsed)
	}
	if res.DurationUsed == "" {
		return fmt.Sprintf("%d min", res.Session.DurationMinutes)
	}
	return fmt.Sprintf("%s of %d min", res.DurationUsed, res.Session.DurationMinutes)
}
