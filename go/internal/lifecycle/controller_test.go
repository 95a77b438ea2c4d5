package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/internal/catalog"
	"github.com/mcdev12/gamefloor/go/internal/events"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/roster"
	"github.com/mcdev12/gamefloor/go/internal/settlement"
	"github.com/mcdev12/gamefloor/go/internal/testutil/fakefloor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fixture struct {
	clock       *clockwork.FakeClock
	floor       *fakefloor.Floor
	roster      *roster.Roster
	settlements *settlement.Manager
	recorder    *events.Recorder
	controller  *Controller

	machineID int64
	game      models.Game
}

func (f *fixture) thirty() int64   { return f.game.Pricings[0].ID }
func (f *fixture) fifteen() int64  { return f.game.Pricings[1].ID }
func (f *fixture) perMatch() int64 { return f.game.Pricings[2].ID }

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith builds the controller on remote, or on the fake floor when
// remote is nil.
func newFixtureWith(t *testing.T, wrap func(*fakefloor.Floor) Remote) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	floor := fakefloor.New(clock)
	f := &fixture{
		clock:     clock,
		floor:     floor,
		recorder:  events.NewRecorder(64),
		machineID: floor.AddMachine("M1"),
		game:      floor.AddGame("FIFA", fakefloor.Fixed(30, 20), fakefloor.Fixed(15, 10), fakefloor.PerMatch(1, 6)),
	}
	f.roster = roster.New(floor, clock)
	require.NoError(t, f.roster.Refresh(context.Background()))
	f.settlements = settlement.NewManager(floor, f.roster, f.recorder, clock, nil)

	var remote Remote = floor
	if wrap != nil {
		remote = wrap(floor)
	}
	f.controller = NewController(remote, f.roster, catalog.New(floor), f.settlements, f.recorder, clock)
	return f
}

func (f *fixture) start(t *testing.T, pricingID int64) models.Session {
	t.Helper()
	m, err := f.controller.Start(context.Background(), StartRequest{MachineID: f.machineID, GameID: f.game.ID, PricingID: pricingID})
	require.NoError(t, err)
	require.NotNil(t, m.ActiveSession)
	return *m.ActiveSession
}

func (f *fixture) machine(t *testing.T) models.Machine {
	t.Helper()
	m, ok := f.roster.Machine(f.machineID)
	require.True(t, ok)
	return m
}

func eventTypes(evts []events.Event) []events.EventType {
	out := make([]events.EventType, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

func TestStartValidatesBeforeRemoteCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  StartRequest
	}{
		{name: "no machine", req: StartRequest{GameID: f.game.ID, PricingID: f.thirty()}},
		{name: "no game", req: StartRequest{MachineID: f.machineID, PricingID: f.thirty()}},
		{name: "no pricing", req: StartRequest{MachineID: f.machineID, GameID: f.game.ID}},
		{name: "unknown machine", req: StartRequest{MachineID: 99, GameID: f.game.ID, PricingID: f.thirty()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.controller.Start(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, floorerr.ErrValidation), "got %v", err)
		})
	}
	assert.Zero(t, f.floor.Calls(fakefloor.OpStart))
	assert.Equal(t, models.MachineStatusAvailable, f.machine(t).Status)
}

func TestStartOccupiesMachine(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())

	assert.NotZero(t, s.ID)
	assert.Equal(t, models.PricingModeFixed, s.PricingMode)
	assert.Equal(t, 30, s.DurationMinutes)
	assert.True(t, s.TotalPaid.Equal(dec("20")))
	assert.Equal(t, t0, s.StartTime)

	m := f.machine(t)
	assert.Equal(t, models.MachineStatusInSession, m.Status)
	assert.Equal(t, s.ID, m.ActiveSession.ID)
	assert.Equal(t, []events.EventType{events.EventTypeSessionStarted}, eventTypes(f.recorder.Drain()))
}

func TestStartOnOccupiedMachineConflicts(t *testing.T) {
	f := newFixture(t)
	f.start(t, f.thirty())

	_, err := f.controller.Start(context.Background(), StartRequest{MachineID: f.machineID, GameID: f.game.ID, PricingID: f.fifteen()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
	assert.Equal(t, 1, f.floor.Calls(fakefloor.OpStart))
}

func TestStartRemoteFailureLeavesMachineAvailable(t *testing.T) {
	f := newFixture(t)
	f.floor.Fail(fakefloor.OpStart, &floorerr.RemoteError{Operation: "start session", Status: 500}, 1)

	_, err := f.controller.Start(context.Background(), StartRequest{MachineID: f.machineID, GameID: f.game.ID, PricingID: f.thirty()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, floorerr.ErrRemote))

	m := f.machine(t)
	assert.Equal(t, models.MachineStatusAvailable, m.Status)
	assert.Nil(t, m.ActiveSession)
	assert.Empty(t, f.recorder.Drain())
}

func TestStartWithoutEchoResyncs(t *testing.T) {
	f := newFixture(t)
	f.floor.SetEchoSessions(false)

	s := f.start(t, f.thirty())
	assert.NotZero(t, s.ID, "session learned from the refresh")
	assert.True(t, s.Synced())
}

func TestStartWithoutEchoFallsBackToProvisionalSession(t *testing.T) {
	f := newFixture(t)
	f.floor.SetEchoSessions(false)
	f.floor.Fail(fakefloor.OpListMachines, errors.New("connection reset"), 1)

	s := f.start(t, f.thirty())
	assert.False(t, s.Synced())
	assert.Equal(t, 30, s.DurationMinutes)

	_, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict), "unsynced sessions cannot be stopped")

	require.NoError(t, f.roster.Refresh(context.Background()))
	assert.True(t, f.machine(t).ActiveSession.Synced())
}

func TestStartDialogGuard(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.OpenStartDialog(f.machineID))
	err := f.controller.OpenStartDialog(f.machineID)
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))

	f.controller.CloseStartDialog(f.machineID)
	require.NoError(t, f.controller.OpenStartDialog(f.machineID))

	f.start(t, f.thirty())
	err = f.controller.OpenStartDialog(f.machineID)
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict), "occupied machines get no dialog")

	err = f.controller.OpenStartDialog(42)
	assert.True(t, errors.Is(err, floorerr.ErrValidation))
}

func TestStopFixedOpensSettlement(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())
	f.clock.Advance(20 * time.Minute)

	out, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID, Trigger: StopTriggerOperator})
	require.NoError(t, err)
	require.NotNil(t, out.Settlement)
	assert.Nil(t, out.AwaitingMatchCount)
	assert.Equal(t, s.ID, out.Settlement.SessionID)
	assert.True(t, out.Settlement.Price.Equal(dec("20")))
	assert.Equal(t, "M1", out.Settlement.MachineName)

	m := f.machine(t)
	assert.Equal(t, models.MachineStatusAvailable, m.Status)
	assert.Nil(t, m.ActiveSession)
	assert.Len(t, f.settlements.List(), 1)
	assert.Equal(t,
		[]events.EventType{events.EventTypeSessionStarted, events.EventTypeSessionStopped},
		eventTypes(f.recorder.Drain()))
}

func TestStopRemoteFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())
	f.floor.Fail(fakefloor.OpStop, &floorerr.RemoteError{Operation: "stop session", Status: 502}, 1)

	_, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, floorerr.ErrRemote))

	m := f.machine(t)
	require.NotNil(t, m.ActiveSession)
	assert.Equal(t, s.ID, m.ActiveSession.ID)
	assert.Empty(t, f.settlements.List())
}

func TestStopWithoutSessionConflicts(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
}

func TestStopPinnedToStaleSessionConflicts(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())

	_, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID, SessionID: s.ID + 1})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
	assert.Zero(t, f.floor.Calls(fakefloor.OpStop))
}

func TestExtendAddsBlock(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())
	f.clock.Advance(25 * time.Minute)

	res, err := f.controller.Extend(context.Background(), ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	require.NoError(t, err)
	assert.Equal(t, 15, res.AddedMinutes)
	assert.Equal(t, 45, res.DurationMinutes)
	assert.True(t, res.TotalPaid.Equal(dec("30")))

	m := f.machine(t)
	assert.Equal(t, 45, m.ActiveSession.DurationMinutes)
	assert.Equal(t, 1, m.ActiveSession.Extensions)
	assert.Equal(t, s.StartTime, m.ActiveSession.StartTime, "the timer keeps counting from the original start")

	f.clock.Advance(20 * time.Minute)
	out, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID})
	require.NoError(t, err)
	assert.True(t, out.Settlement.Price.Equal(dec("30")))
}

func TestExtendRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.Extend(ctx, ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict), "nothing to extend")

	f.start(t, f.thirty())
	_, err = f.controller.Extend(ctx, ExtendRequest{MachineID: f.machineID})
	assert.True(t, errors.Is(err, floorerr.ErrValidation))

	_, err = f.controller.Extend(ctx, ExtendRequest{MachineID: f.machineID, PricingID: f.perMatch()})
	assert.True(t, errors.Is(err, floorerr.ErrValidation), "match bundles are not time blocks")
	assert.Zero(t, f.floor.Calls(fakefloor.OpExtend))
}

func TestExtendPerMatchSessionIsInvalid(t *testing.T) {
	f := newFixture(t)
	f.start(t, f.perMatch())

	_, err := f.controller.Extend(context.Background(), ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	assert.True(t, errors.Is(err, floorerr.ErrValidation))
	assert.Zero(t, f.floor.Calls(fakefloor.OpExtend))
}

func TestExtendAfterExpiryConflicts(t *testing.T) {
	f := newFixture(t)
	f.start(t, f.thirty())
	f.clock.Advance(30*time.Minute + 2*time.Second)

	_, err := f.controller.Extend(context.Background(), ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
	assert.Zero(t, f.floor.Calls(fakefloor.OpExtend))

	s := f.machine(t).ActiveSession
	assert.Equal(t, 30, s.DurationMinutes)
	assert.True(t, s.TotalPaid.Equal(dec("20")))
}

func TestExtendJustBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	f.start(t, f.thirty())
	f.clock.Advance(30*time.Minute - time.Second)

	res, err := f.controller.Extend(context.Background(), ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	require.NoError(t, err)
	assert.Equal(t, 45, res.DurationMinutes)
}

func TestExtendRemoteFailureKeepsDuration(t *testing.T) {
	f := newFixture(t)
	f.start(t, f.thirty())
	f.floor.Fail(fakefloor.OpExtend, &floorerr.RemoteError{Operation: "extend session", Status: 500}, 1)

	_, err := f.controller.Extend(context.Background(), ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	require.Error(t, err)
	assert.Equal(t, 30, f.machine(t).ActiveSession.DurationMinutes)
}

func TestAutoStopUsesOperatorPath(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())
	f.clock.Advance(30*time.Minute + 5*time.Second)

	require.NoError(t, f.controller.StopSession(context.Background(), f.machineID, s.ID))
	open := f.settlements.List()
	require.Len(t, open, 1)
	assert.True(t, open[0].Price.Equal(dec("20")))
	assert.Equal(t,
		[]events.EventType{events.EventTypeSessionStarted, events.EventTypeAutoStopFired, events.EventTypeSessionStopped},
		eventTypes(f.recorder.Drain()))
}

func TestAutoStopAfterManualStopConflicts(t *testing.T) {
	f := newFixture(t)
	s := f.start(t, f.thirty())
	f.clock.Advance(30 * time.Minute)

	_, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID})
	require.NoError(t, err)

	err = f.controller.StopSession(context.Background(), f.machineID, s.ID)
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
	assert.Len(t, f.settlements.List(), 1, "one settlement per session")
	assert.Equal(t, 1, f.floor.Calls(fakefloor.OpStop))
}

type blockingRemote struct {
	*fakefloor.Floor
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) StopSession(ctx context.Context, sessionID int64, matches *int) (*models.StopResult, error) {
	close(b.entered)
	<-b.release
	return b.Floor.StopSession(ctx, sessionID, matches)
}

func TestConcurrentActionsOnOneMachineConflict(t *testing.T) {
	blocking := &blockingRemote{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWith(t, func(floor *fakefloor.Floor) Remote {
		blocking.Floor = floor
		return blocking
	})
	s := f.start(t, f.thirty())

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Stop(context.Background(), StopRequest{MachineID: f.machineID})
		done <- err
	}()
	<-blocking.entered

	err := f.controller.StopSession(context.Background(), f.machineID, s.ID)
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))
	_, err = f.controller.Extend(context.Background(), ExtendRequest{MachineID: f.machineID, PricingID: f.fifteen()})
	assert.True(t, errors.Is(err, floorerr.ErrStateConflict))

	close(blocking.release)
	require.NoError(t, <-done)
	assert.Len(t, f.settlements.List(), 1)
}
