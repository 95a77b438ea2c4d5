// Package fakefloor is an in-memory floor service for tests. It implements
// the client interfaces the roster, catalog, lifecycle controller and
// settlement manager depend on, and can serve the same behavior over HTTP.
package fakefloor

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/billing"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/shopspring/decimal"
)

// Op names a floor service operation for failure injection and call counts.
type Op string

const (
	OpListMachines  Op = "list machines"
	OpListGames     Op = "list games"
	OpCheckAutoStop Op = "check auto-stop"
	OpStart         Op = "start session"
	OpStatus        Op = "get session status"
	OpStop          Op = "stop session"
	OpExtend        Op = "extend session"
	OpPayment       Op = "confirm payment"
)

type failure struct {
	err   error
	times int // remaining; negative fails forever
}

type stopped struct {
	session models.Session
	price   decimal.Decimal
	paid    bool
}

// Floor is the fake service state.
type Floor struct {
	clock clockwork.Clock

	mu            sync.Mutex
	machines      map[int64]*models.Machine
	games         []models.Game
	stopped       map[int64]*stopped
	nextMachineID int64
	nextGameID    int64
	nextPricingID int64
	nextSessionID int64
	echoSessions  bool
	failures      map[Op]*failure
	calls         map[Op]int
}

// New creates an empty floor that echoes created sessions.
func New(clock clockwork.Clock) *Floor {
	return &Floor{
		clock:         clock,
		machines:      make(map[int64]*models.Machine),
		stopped:       make(map[int64]*stopped),
		nextSessionID: 100,
		echoSessions:  true,
		failures:      make(map[Op]*failure),
		calls:         make(map[Op]int),
	}
}

// AddMachine registers an available machine and returns its ID.
func (f *Floor) AddMachine(name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMachineID++
	f.machines[f.nextMachineID] = &models.Machine{ID: f.nextMachineID, Name: name, Status: models.MachineStatusAvailable}
	return f.nextMachineID
}

// AddGame registers a game with its pricings and returns it with IDs filled.
func (f *Floor) AddGame(name string, pricings ...models.GamePricing) models.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextGameID++
	g := models.Game{ID: f.nextGameID, Name: name}
	for _, p := range pricings {
		f.nextPricingID++
		p.ID = f.nextPricingID
		p.GameID = g.ID
		g.Pricings = append(g.Pricings, p)
	}
	f.games = append(f.games, g)
	return g
}

// Fixed builds a duration block pricing.
func Fixed(minutes int, price int64) models.GamePricing {
	return models.GamePricing{PricingMode: models.PricingModeFixed, DurationMinutes: minutes, Price: decimal.NewFromInt(price)}
}

// PerMatch builds a match bundle pricing.
func PerMatch(matches int, price int64) models.GamePricing {
	return models.GamePricing{PricingMode: models.PricingModePerMatch, MatchesCount: matches, Price: decimal.NewFromInt(price)}
}

// SetEchoSessions controls whether StartSession returns the created session.
func (f *Floor) SetEchoSessions(echo bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echoSessions = echo
}

// Fail makes the next times calls of op return err. Negative times fails
// until Recover.
func (f *Floor) Fail(op Op, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = &failure{err: err, times: times}
}

// Recover clears injected failures for op.
func (f *Floor) Recover(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, op)
}

// Calls returns how many times op was invoked, failed calls included.
func (f *Floor) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Machine returns a copy of a machine's server-side state.
func (f *Floor) Machine(id int64) (models.Machine, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.machines[id]
	if !ok {
		return models.Machine{}, false
	}
	return copyMachine(*m), true
}

// Paid reports whether a stopped session has been settled.
func (f *Floor) Paid(sessionID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stopped[sessionID]
	return ok && st.paid
}

// enter counts the call and returns an injected failure. Callers hold mu.
func (f *Floor) enter(op Op) error {
	f.calls[op]++
	fl, ok := f.failures[op]
	if !ok {
		return nil
	}
	if fl.times > 0 {
		fl.times--
		if fl.times == 0 {
			delete(f.failures, op)
		}
	}
	return fl.err
}

// ListMachines implements the roster source.
func (f *Floor) ListMachines(_ context.Context) ([]models.Machine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpListMachines); err != nil {
		return nil, err
	}
	out := make([]models.Machine, 0, len(f.machines))
	for _, m := range f.machines {
		out = append(out, copyMachine(*m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListGames implements the catalog source.
func (f *Floor) ListGames(_ context.Context) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpListGames); err != nil {
		return nil, err
	}
	out := make([]models.Game, len(f.games))
	for i, g := range f.games {
		g.Pricings = append([]models.GamePricing(nil), g.Pricings...)
		out[i] = g
	}
	return out, nil
}

// CheckAutoStop stops every fixed session whose purchased time is used up.
func (f *Floor) CheckAutoStop(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpCheckAutoStop); err != nil {
		return err
	}
	now := f.clock.Now()
	for _, m := range f.machines {
		s := m.ActiveSession
		if s == nil || s.PricingMode != models.PricingModeFixed {
			continue
		}
		if session.Remaining(s.DurationMinutes, session.Elapsed(s.StartTime, now)) == 0 {
			f.stopLocked(m, nil)
		}
	}
	return nil
}

// StartSession opens a session on an available machine.
func (f *Floor) StartSession(_ context.Context, machineID, gameID, pricingID int64) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpStart); err != nil {
		return nil, err
	}

	m, ok := f.machines[machineID]
	if !ok {
		return nil, floorerr.Invalid("machine_id", "unknown machine")
	}
	if m.ActiveSession != nil {
		return nil, floorerr.Conflict("machine %s is already in session", m.Name)
	}
	g, p, ok := f.pricingLocked(gameID, pricingID)
	if !ok {
		return nil, floorerr.Invalid("pricing_id", "unknown pricing")
	}

	f.nextSessionID++
	s := models.Session{
		ID:          f.nextSessionID,
		MachineID:   machineID,
		GameID:      g.ID,
		GameName:    g.Name,
		PricingMode: p.Mode(),
		StartTime:   f.clock.Now(),
	}
	if s.PricingMode == models.PricingModeFixed {
		s.DurationMinutes = p.DurationMinutes
		s.TotalPaid = p.Price
	} else {
		s.PricePerMatch = p.PricePerMatch()
	}
	*m = m.WithSession(s)

	if !f.echoSessions {
		return nil, nil
	}
	return &s, nil
}

// GetSessionStatus reports how an active session is billed.
func (f *Floor) GetSessionStatus(_ context.Context, sessionID int64) (*models.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpStatus); err != nil {
		return nil, err
	}
	m, ok := f.activeLocked(sessionID)
	if !ok {
		return nil, &floorerr.RemoteError{Operation: string(OpStatus), Status: 404, Body: "session not found"}
	}
	s := m.ActiveSession
	return &models.SessionStatus{PricingMode: s.PricingMode, PricePerMatch: s.PricePerMatch, MachineName: m.Name}, nil
}

// StopSession ends an active session and prices it.
func (f *Floor) StopSession(_ context.Context, sessionID int64, matchesPlayed *int) (*models.StopResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpStop); err != nil {
		return nil, err
	}
	m, ok := f.activeLocked(sessionID)
	if !ok {
		return nil, floorerr.Conflict("session %d is not active", sessionID)
	}
	if m.ActiveSession.PricingMode == models.PricingModePerMatch && (matchesPlayed == nil || *matchesPlayed < 1) {
		return nil, floorerr.Invalid("matches_played", "required for per-match sessions")
	}
	return f.stopLocked(m, matchesPlayed), nil
}

func (f *Floor) stopLocked(m *models.Machine, matchesPlayed *int) *models.StopResult {
	s := *m.ActiveSession
	res := &models.StopResult{
		Session:      s,
		MachineName:  m.Name,
		DurationUsed: session.FormatDuration(session.Elapsed(s.StartTime, f.clock.Now())),
	}
	if s.PricingMode == models.PricingModePerMatch && matchesPlayed != nil {
		res.MatchesPlayed = *matchesPlayed
		res.Price = s.PricePerMatch.Mul(decimal.NewFromInt(int64(*matchesPlayed)))
	} else {
		res.Price = s.TotalPaid
	}
	f.stopped[s.ID] = &stopped{session: s, price: res.Price}
	*m = m.Released()
	return res
}

// ExtendSession adds a fixed block to an active fixed session.
func (f *Floor) ExtendSession(_ context.Context, sessionID, pricingID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpExtend); err != nil {
		return decimal.Zero, err
	}
	m, ok := f.activeLocked(sessionID)
	if !ok {
		return decimal.Zero, floorerr.Conflict("session %d is not active", sessionID)
	}
	s := *m.ActiveSession
	if s.PricingMode != models.PricingModeFixed {
		return decimal.Zero, floorerr.Invalid("session", "per-match sessions cannot be extended")
	}
	_, p, ok := f.pricingLocked(s.GameID, pricingID)
	if !ok || p.Mode() != models.PricingModeFixed {
		return decimal.Zero, floorerr.Invalid("pricing_id", "not a duration block of this game")
	}
	s = billing.Extend(s, p)
	*m = m.WithSession(s)
	return s.TotalPaid, nil
}

// ConfirmPayment settles a stopped session.
func (f *Floor) ConfirmPayment(_ context.Context, sessionID int64, amountGiven decimal.Decimal) (*models.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpPayment); err != nil {
		return nil, err
	}
	st, ok := f.stopped[sessionID]
	if !ok {
		return nil, floorerr.Conflict("session %d is not stopped", sessionID)
	}
	if st.paid {
		return nil, floorerr.Conflict("session %d is already paid", sessionID)
	}
	if amountGiven.LessThan(st.price) {
		return nil, floorerr.Invalid("amount_given", "less than the price")
	}
	st.paid = true
	return &models.Receipt{
		SessionID:   sessionID,
		Amount:      st.price,
		AmountGiven: amountGiven,
		Change:      amountGiven.Sub(st.price),
		PaidAt:      f.clock.Now(),
	}, nil
}

func (f *Floor) activeLocked(sessionID int64) (*models.Machine, bool) {
	for _, m := range f.machines {
		if m.ActiveSession != nil && m.ActiveSession.ID == sessionID {
			return m, true
		}
	}
	return nil, false
}

func (f *Floor) pricingLocked(gameID, pricingID int64) (models.Game, models.GamePricing, bool) {
	for _, g := range f.games {
		if g.ID != gameID {
			continue
		}
		p, ok := g.Pricing(pricingID)
		return g, p, ok
	}
	return models.Game{}, models.GamePricing{}, false
}

func copyMachine(m models.Machine) models.Machine {
	if m.ActiveSession != nil {
		s := *m.ActiveSession
		m.ActiveSession = &s
	}
	return m
}
