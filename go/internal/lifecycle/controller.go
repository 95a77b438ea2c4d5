// Package lifecycle starts, extends and stops rental sessions against the
// floor service and hands stopped sessions to the settlement manager.
//
// The floor service decides; the controller only applies a successful
// response to the local roster. A failed call leaves local state untouched
// and the next roster refresh re-synchronizes.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/billing"
	"github.com/mcdev12/gamefloor/go/internal/events"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/mcdev12/gamefloor/go/internal/settlement"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Remote defines what the controller needs from the floor service
type Remote interface {
	StartSession(ctx context.Context, machineID, gameID, pricingID int64) (*models.Session, error)
	GetSessionStatus(ctx context.Context, sessionID int64) (*models.SessionStatus, error)
	StopSession(ctx context.Context, sessionID int64, matchesPlayed *int) (*models.StopResult, error)
	ExtendSession(ctx context.Context, sessionID, pricingID int64) (decimal.Decimal, error)
}

// Roster defines what the controller needs from the machine roster
type Roster interface {
	Machine(id int64) (models.Machine, bool)
	Patch(m models.Machine)
	Refresh(ctx context.Context) error
}

// Catalog resolves an operator's game and pricing selection.
type Catalog interface {
	Resolve(ctx context.Context, gameID, pricingID int64) (models.Game, models.GamePricing, error)
}

// Settlements receives every stopped session.
type Settlements interface {
	Open(res models.StopResult) (settlement.Settlement, error)
}

// Controller orchestrates session actions.
type Controller struct {
	remote      Remote
	roster      Roster
	catalog     Catalog
	settlements Settlements
	publisher   events.Publisher
	clock       clockwork.Clock

	mu       sync.Mutex
	inFlight map[int64]bool // by machine ID
	dialogs  map[int64]bool // open start dialogs by machine ID
	awaiting map[int64]*MatchCountRequest
}

// NewController creates a controller. A nil publisher discards events.
func NewController(remote Remote, roster Roster, catalog Catalog, settlements Settlements, publisher events.Publisher, clock clockwork.Clock) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Controller{
		remote:      remote,
		roster:      roster,
		catalog:     catalog,
		settlements: settlements,
		publisher:   publisher,
		clock:       clock,
		inFlight:    make(map[int64]bool),
		dialogs:     make(map[int64]bool),
		awaiting:    make(map[int64]*MatchCountRequest),
	}
}

// Start opens a session on an available machine.
func (c *Controller) Start(ctx context.Context, req StartRequest) (models.Machine, error) {
	if req.MachineID == 0 {
		return models.Machine{}, floorerr.Invalid("machine", "select a machine")
	}
	game, pricing, err := c.catalog.Resolve(ctx, req.GameID, req.PricingID)
	if err != nil {
		return models.Machine{}, err
	}

	m, ok := c.roster.Machine(req.MachineID)
	if !ok {
		return models.Machine{}, floorerr.Invalid("machine", "unknown machine")
	}
	if m.Status == models.MachineStatusInSession {
		return models.Machine{}, floorerr.Conflict("machine %s is already in session", m.Name)
	}

	if err := c.begin(m.ID); err != nil {
		return models.Machine{}, err
	}
	defer c.end(m.ID)

	started, err := c.remote.StartSession(ctx, m.ID, game.ID, pricing.ID)
	if err != nil {
		log.Warn().Err(err).Int64("machine_id", m.ID).Msg("start session failed")
		return models.Machine{}, fmt.Errorf("failed to start session: %w", err)
	}

	var occupied models.Machine
	switch {
	case started != nil:
		s := *started
		if s.MachineID == 0 {
			s.MachineID = m.ID
		}
		occupied = m.WithSession(s)
		c.roster.Patch(occupied)
	default:
		occupied = c.resync(ctx, m, game, pricing)
	}

	c.CloseStartDialog(m.ID)

	s := occupied.ActiveSession
	log.Info().
		Int64("machine_id", m.ID).
		Int64("session_id", s.ID).
		Str("game", game.Name).
		Str("pricing_mode", string(pricing.Mode())).
		Msg("session started")

	c.publish(ctx, events.New(events.EventTypeSessionStarted, m.ID, s.ID, c.clock.Now(),
		events.SessionStartedPayload{
			MachineName:     m.Name,
			GameID:          game.ID,
			PricingID:       pricing.ID,
			PricingMode:     string(pricing.Mode()),
			DurationMinutes: pricing.DurationMinutes,
			Price:           pricing.Price,
		}))

	return occupied, nil
}

// resync learns the created session from the floor service. When that is not
// possible the machine gets a provisional session the next refresh replaces.
func (c *Controller) resync(ctx context.Context, m models.Machine, game models.Game, pricing models.GamePricing) models.Machine {
	if err := c.roster.Refresh(ctx); err == nil {
		if fresh, ok := c.roster.Machine(m.ID); ok && fresh.ActiveSession != nil {
			return fresh
		}
	} else {
		log.Debug().Err(err).Int64("machine_id", m.ID).Msg("refresh after start failed")
	}

	s := models.Session{
		MachineID:   m.ID,
		GameID:      game.ID,
		GameName:    game.Name,
		PricingMode: pricing.Mode(),
		StartTime:   c.clock.Now(),
		TotalPaid:   decimal.Zero,
	}
	if pricing.Mode() == models.PricingModeFixed {
		s.DurationMinutes = pricing.DurationMinutes
		s.TotalPaid = pricing.Price
	} else {
		s.PricePerMatch = pricing.PricePerMatch()
	}
	occupied := m.WithSession(s)
	c.roster.Patch(occupied)
	return occupied
}

// OpenStartDialog reserves the start dialog for an available machine. A
// second dialog for the same machine is refused.
func (c *Controller) OpenStartDialog(machineID int64) error {
	m, ok := c.roster.Machine(machineID)
	if !ok {
		return floorerr.Invalid("machine", "unknown machine")
	}
	if m.Status == models.MachineStatusInSession {
		return floorerr.Conflict("machine %s is already in session", m.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialogs[machineID] {
		return floorerr.Conflict("a start dialog is already open for machine %s", m.Name)
	}
	c.dialogs[machineID] = true
	return nil
}

// CloseStartDialog drops the pending choice. A request already sent is not
// affected.
func (c *Controller) CloseStartDialog(machineID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dialogs, machineID)
}

// Extend buys another duration block for a running fixed session. The start
// time and the running timer are untouched.
func (c *Controller) Extend(ctx context.Context, req ExtendRequest) (*ExtendResult, error) {
	if req.PricingID == 0 {
		return nil, floorerr.Invalid("pricing", "select a pricing option")
	}
	m, s, err := c.activeSession(req.MachineID, 0)
	if err != nil {
		return nil, err
	}
	if resolveMode(s) != models.PricingModeFixed {
		return nil, floorerr.Invalid("session", "per-match sessions cannot be extended")
	}
	if r, ok := session.Sample(m, c.clock.Now()); ok && r.Expired {
		// The auto-stop is already pending and cannot be called off.
		return nil, floorerr.Conflict("session on machine %s has run out and is being stopped", m.Name)
	}

	_, pricing, err := c.catalog.Resolve(ctx, s.GameID, req.PricingID)
	if err != nil {
		return nil, err
	}
	if pricing.Mode() != models.PricingModeFixed || pricing.DurationMinutes <= 0 {
		return nil, floorerr.Invalid("pricing", "extensions need a time block")
	}

	if err := c.begin(m.ID); err != nil {
		return nil, err
	}
	defer c.end(m.ID)

	totalPaid, err := c.remote.ExtendSession(ctx, s.ID, pricing.ID)
	if err != nil {
		log.Warn().Err(err).Int64("session_id", s.ID).Msg("extend session failed")
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}

	extended := billing.Extend(s, pricing)
	if current, ok := c.roster.Machine(m.ID); ok && current.ActiveSession != nil && current.ActiveSession.ID == s.ID {
		// A refresh may already carry the extension.
		if current.ActiveSession.DurationMinutes > s.DurationMinutes {
			extended = *current.ActiveSession
		}
		m = current
	}
	if totalPaid.IsPositive() {
		extended.TotalPaid = totalPaid
	}
	c.roster.Patch(m.WithSession(extended))

	result := &ExtendResult{
		SessionID:       s.ID,
		AddedMinutes:    pricing.DurationMinutes,
		DurationMinutes: extended.DurationMinutes,
		TotalPaid:       extended.TotalPaid,
	}

	log.Info().
		Int64("session_id", s.ID).
		Int("added_minutes", result.AddedMinutes).
		Int("duration_minutes", result.DurationMinutes).
		Str("total_paid", result.TotalPaid.String()).
		Msg("session extended")

	c.publish(ctx, events.New(events.EventTypeSessionExtended, m.ID, s.ID, c.clock.Now(),
		events.SessionExtendedPayload{
			PricingID:       pricing.ID,
			AddedMinutes:    result.AddedMinutes,
			DurationMinutes: result.DurationMinutes,
			TotalPaid:       result.TotalPaid,
		}))

	return result, nil
}

// Stop ends a machine's session. Fixed sessions stop at once and open a
// settlement. Per-match sessions are confirmed with the floor service and
// then wait in AwaitingMatchCount until SubmitMatchCount supplies the count.
func (c *Controller) Stop(ctx context.Context, req StopRequest) (*StopOutcome, error) {
	m, s, err := c.activeSession(req.MachineID, req.SessionID)
	if err != nil {
		return nil, err
	}

	if pending, ok := c.pendingMatchCount(s.ID); ok {
		return &StopOutcome{AwaitingMatchCount: &pending}, nil
	}

	if err := c.begin(m.ID); err != nil {
		return nil, err
	}
	defer c.end(m.ID)

	if resolveMode(s) == models.PricingModeFixed {
		return c.stopNow(ctx, m, s, nil, req.Trigger)
	}

	status, err := c.remote.GetSessionStatus(ctx, s.ID)
	if err != nil {
		log.Warn().Err(err).Int64("session_id", s.ID).Msg("session status check failed")
		return nil, fmt.Errorf("failed to check session status: %w", err)
	}
	if status.PricingMode == models.PricingModeFixed {
		log.Warn().Int64("session_id", s.ID).Msg("floor service bills session as fixed, stopping without match count")
		return c.stopNow(ctx, m, s, nil, req.Trigger)
	}

	pending := MatchCountRequest{
		SessionID:     s.ID,
		MachineID:     m.ID,
		MachineName:   firstNonEmpty(status.MachineName, m.Name),
		GameName:      s.GameName,
		PricePerMatch: s.PricePerMatch,
		RequestedAt:   c.clock.Now(),
	}
	if status.PricePerMatch.IsPositive() {
		pending.PricePerMatch = status.PricePerMatch
	}

	c.mu.Lock()
	c.awaiting[s.ID] = &pending
	c.mu.Unlock()

	log.Info().
		Int64("session_id", s.ID).
		Str("price_per_match", pending.PricePerMatch.String()).
		Msg("awaiting match count")

	return &StopOutcome{AwaitingMatchCount: &pending}, nil
}

// StopSession is the auto-stop entry point: a stop for one specific session,
// identical to an operator stop.
func (c *Controller) StopSession(ctx context.Context, machineID, sessionID int64) error {
	c.publish(ctx, events.New(events.EventTypeAutoStopFired, machineID, sessionID, c.clock.Now(),
		events.AutoStopFiredPayload{ExpiredAt: c.clock.Now()}))

	_, err := c.Stop(ctx, StopRequest{MachineID: machineID, SessionID: sessionID, Trigger: StopTriggerAuto})
	return err
}

func (c *Controller) stopNow(ctx context.Context, m models.Machine, s models.Session, matches *int, trigger StopTrigger) (*StopOutcome, error) {
	res, err := c.remote.StopSession(ctx, s.ID, matches)
	if err != nil {
		log.Warn().Err(err).Int64("session_id", s.ID).Msg("stop session failed")
		return nil, fmt.Errorf("failed to stop session: %w", err)
	}

	if res.Session.ID == 0 {
		res.Session = s
	}
	if res.Session.MachineID == 0 {
		res.Session.MachineID = m.ID
	}
	if res.MachineName == "" {
		res.MachineName = m.Name
	}
	if res.Price.IsZero() {
		res.Price = localPrice(s, matches)
	}

	if current, ok := c.roster.Machine(m.ID); ok && current.ActiveSession != nil && current.ActiveSession.ID == s.ID {
		c.roster.Patch(current.Released())
	}

	if trigger == "" {
		trigger = StopTriggerOperator
	}
	log.Info().
		Int64("machine_id", m.ID).
		Int64("session_id", s.ID).
		Str("trigger", string(trigger)).
		Str("price", res.Price.String()).
		Msg("session stopped")

	c.publish(ctx, events.New(events.EventTypeSessionStopped, m.ID, s.ID, c.clock.Now(),
		events.SessionStoppedPayload{
			MachineName:   res.MachineName,
			PricingMode:   string(resolveMode(s)),
			Price:         res.Price,
			DurationUsed:  res.DurationUsed,
			MatchesPlayed: res.MatchesPlayed,
		}))

	opened, err := c.settlements.Open(*res)
	if err != nil {
		return nil, fmt.Errorf("failed to open settlement: %w", err)
	}
	return &StopOutcome{Settlement: &opened}, nil
}

// activeSession returns the machine and its synced active session.
func (c *Controller) activeSession(machineID, sessionID int64) (models.Machine, models.Session, error) {
	if machineID == 0 {
		return models.Machine{}, models.Session{}, floorerr.Invalid("machine", "select a machine")
	}
	m, ok := c.roster.Machine(machineID)
	if !ok {
		return models.Machine{}, models.Session{}, floorerr.Invalid("machine", "unknown machine")
	}
	if m.ActiveSession == nil {
		return models.Machine{}, models.Session{}, floorerr.Conflict("machine %s has no active session", m.Name)
	}
	s := *m.ActiveSession
	if sessionID != 0 && s.ID != sessionID {
		return models.Machine{}, models.Session{}, floorerr.Conflict("session %d is no longer active on machine %s", sessionID, m.Name)
	}
	if !s.Synced() {
		return models.Machine{}, models.Session{}, floorerr.Conflict("session on machine %s is not synchronized yet", m.Name)
	}
	return m, s, nil
}

// begin marks a machine busy; actions on one machine never overlap.
func (c *Controller) begin(machineID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[machineID] {
		return floorerr.Conflict("another action on machine %d is in progress", machineID)
	}
	c.inFlight[machineID] = true
	return nil
}

func (c *Controller) end(machineID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, machineID)
}

func (c *Controller) publish(ctx context.Context, e events.Event) {
	if err := c.publisher.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Msg("failed to publish event")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
