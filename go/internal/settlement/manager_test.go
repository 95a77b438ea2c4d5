package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/events"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/testutil/fakefloor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type countingRefresher struct {
	mu    sync.Mutex
	count int
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return r.err
}

func (r *countingRefresher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type fixture struct {
	clock     *clockwork.FakeClock
	floor     *fakefloor.Floor
	refresher *countingRefresher
	recorder  *events.Recorder
	manager   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	f := &fixture{
		clock:     clock,
		floor:     fakefloor.New(clock),
		refresher: &countingRefresher{},
		recorder:  events.NewRecorder(16),
	}
	f.manager = NewManager(f.floor, f.refresher, f.recorder, clock, nil)
	return f
}

// stopped runs a fixed session for minutes on a new machine and returns the
// floor service's stop result.
func (f *fixture) stopped(t *testing.T, name string, minutes int, price int64) models.StopResult {
	t.Helper()
	ctx := context.Background()
	machineID := f.floor.AddMachine(name)
	game := f.floor.AddGame("FIFA", fakefloor.Fixed(minutes, price))

	s, err := f.floor.StartSession(ctx, machineID, game.ID, game.Pricings[0].ID)
	require.NoError(t, err)
	f.clock.Advance(time.Duration(minutes) * time.Minute)

	res, err := f.floor.StopSession(ctx, s.ID, nil)
	require.NoError(t, err)
	return *res
}

func TestOpenBuildsSettlement(t *testing.T) {
	f := newFixture(t)
	res := f.stopped(t, "M1", 30, 20)

	s, err := f.manager.Open(res)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, "M1", s.MachineName)
	assert.Equal(t, "FIFA", s.GameName)
	assert.Equal(t, models.PricingModeFixed, s.PricingMode)
	assert.True(t, s.Price.Equal(dec("20")))
	assert.Equal(t, "30:00 of 30 min", s.Summary)
	require.NotEmpty(t, s.SuggestedTenders)
	assert.True(t, s.SuggestedTenders[0].Equal(dec("20")))

	again, err := f.manager.Open(res)
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID, "one settlement per session")
	assert.Len(t, f.manager.List(), 1)
}

func TestConfirmRejectsInsufficientTender(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Open(f.stopped(t, "M1", 30, 20))
	require.NoError(t, err)

	_, err = f.manager.Confirm(context.Background(), s.ID, dec("15"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, floorerr.ErrValidation))
	assert.Zero(t, f.floor.Calls(fakefloor.OpPayment), "rejected before any remote call")

	_, ok := f.manager.Get(s.ID)
	assert.True(t, ok, "settlement stays open")
}

func TestConfirmComputesChange(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Open(f.stopped(t, "M1", 30, 20))
	require.NoError(t, err)

	receipt, err := f.manager.Confirm(context.Background(), s.ID, dec("25"))
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(dec("20")))
	assert.True(t, receipt.AmountGiven.Equal(dec("25")))
	assert.True(t, receipt.Change.Equal(dec("5")))
	assert.Equal(t, s.SessionID, receipt.SessionID)

	assert.Empty(t, f.manager.List())
	assert.True(t, f.floor.Paid(s.SessionID))
	assert.Equal(t, 1, f.refresher.Count())

	evts := f.recorder.Drain()
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventTypePaymentConfirmed, evts[0].Type)

	_, err = f.manager.Confirm(context.Background(), s.ID, dec("25"))
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict), "closed settlements cannot be confirmed twice")

	_, err = f.manager.Open(models.StopResult{Session: models.Session{ID: s.SessionID}})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict), "paid sessions cannot be reopened")
}

func TestConfirmRemoteFailureKeepsSettlementOpen(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Open(f.stopped(t, "M1", 30, 20))
	require.NoError(t, err)

	f.floor.Fail(fakefloor.OpPayment, &floorerr.RemoteError{Operation: "confirm payment", Status: 503}, 1)
	_, err = f.manager.Confirm(context.Background(), s.ID, dec("20"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, floorerr.ErrRemote))
	assert.Len(t, f.manager.List(), 1)
	assert.Zero(t, f.refresher.Count())

	receipt, err := f.manager.Confirm(context.Background(), s.ID, dec("20"))
	require.NoError(t, err)
	assert.True(t, receipt.Change.IsZero())
}

func TestConfirmSucceedsWhenRefreshFails(t *testing.T) {
	f := newFixture(t)
	f.refresher.err = errors.New("floor service down")
	s, err := f.manager.Open(f.stopped(t, "M1", 30, 20))
	require.NoError(t, err)

	_, err = f.manager.Confirm(context.Background(), s.ID, dec("20"))
	require.NoError(t, err)
}

func TestSettlementsAreIndependent(t *testing.T) {
	f := newFixture(t)
	a, err := f.manager.Open(f.stopped(t, "A", 30, 20))
	require.NoError(t, err)
	b, err := f.manager.Open(f.stopped(t, "B", 60, 35))
	require.NoError(t, err)
	require.Len(t, f.manager.List(), 2)

	_, err = f.manager.Confirm(context.Background(), b.ID, dec("50"))
	require.NoError(t, err)

	open := f.manager.List()
	require.Len(t, open, 1)
	assert.Equal(t, a.ID, open[0].ID)
	assert.True(t, open[0].Price.Equal(dec("20")))

	receipt, err := f.manager.Confirm(context.Background(), a.ID, dec("20"))
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(dec("20")))
}

func TestConcurrentConfirmsOfOneSettlement(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Open(f.stopped(t, "M1", 30, 20))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Confirm(context.Background(), s.ID, dec("20"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, floorerr.ErrStateConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, conflicts)
	assert.Equal(t, 1, f.floor.Calls(fakefloor.OpPayment))
}

func TestCancelDismissesWithoutResuming(t *testing.T) {
	f := newFixture(t)
	res := f.stopped(t, "M1", 30, 20)
	s, err := f.manager.Open(res)
	require.NoError(t, err)

	require.NoError(t, f.manager.Cancel(context.Background(), s.ID))
	assert.Empty(t, f.manager.List())
	assert.False(t, f.floor.Paid(s.SessionID))

	m, ok := f.floor.Machine(res.Session.MachineID)
	require.True(t, ok)
	assert.Nil(t, m.ActiveSession, "the session stays stopped")

	evts := f.recorder.Drain()
	require.Len(t, evts, 1)
	assert.Equal(t, events.EventTypeSettlementCancelled, evts[0].Type)

	err = f.manager.Cancel(context.Background(), s.ID)
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
}

func TestSummarize(t *testing.T) {
	perMatch := models.Session{PricingMode: models.PricingModePerMatch}
	assert.Equal(t, "4 matches in 42:10", summarize(models.StopResult{Session: perMatch, MatchesPlayed: 4, DurationUsed: "42:10"}))
	assert.Equal(t, "1 match", summarize(models.StopResult{Session: perMatch, MatchesPlayed: 1}))

	fixed := models.Session{DurationMinutes: 45}
	assert.Equal(t, "45 min", summarize(models.StopResult{Session: fixed}))
	assert.Equal(t, "44:59 of 45 min", summarize(models.StopResult{Session: fixed, DurationUsed: "44:59"}))
}
