package lifecycle

import (
	"context"
	"sort"

	"github.com/mcdev12/gamefloor/go/internal/billing"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/session"
	"github.com/mcdev12/gamefloor/go/internal/settlement"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AwaitingMatchCount lists per_match sessions waiting for a match count,
// oldest first.
func (c *Controller) AwaitingMatchCount() []MatchCountRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]MatchCountRequest, 0, len(c.awaiting))
	for _, p := range c.awaiting {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// PreviewMatchPrice is what the session will cost for matches played.
func (c *Controller) PreviewMatchPrice(sessionID int64, matches int) (decimal.Decimal, error) {
	p, ok := c.pendingMatchCount(sessionID)
	if !ok {
		return decimal.Zero, floorerr.Conflict("session %d is not awaiting a match count", sessionID)
	}
	return billing.MatchTotal(matches, p.PricePerMatch), nil
}

// SubmitMatchCount completes the stop of a per_match session.
func (c *Controller) SubmitMatchCount(ctx context.Context, sessionID int64, matches int) (*settlement.Settlement, error) {
	if matches < 1 {
		return nil, floorerr.Invalid("matches_played", "enter the number of matches played")
	}
	p, ok := c.pendingMatchCount(sessionID)
	if !ok {
		return nil, floorerr.Conflict("session %d is not awaiting a match count", sessionID)
	}

	m, s, err := c.activeSession(p.MachineID, sessionID)
	if err != nil {
		c.dropMatchCount(sessionID)
		return nil, err
	}

	if err := c.begin(m.ID); err != nil {
		return nil, err
	}
	defer c.end(m.ID)

	if s.PricePerMatch.IsZero() {
		s.PricePerMatch = p.PricePerMatch
	}
	out, err := c.stopNow(ctx, m, s, &matches, StopTriggerOperator)
	if err != nil {
		return nil, err
	}
	c.dropMatchCount(sessionID)
	return out.Settlement, nil
}

// CancelMatchCount abandons the collection. No stop was issued, so the
// session keeps running.
func (c *Controller) CancelMatchCount(sessionID int64) error {
	if _, ok := c.pendingMatchCount(sessionID); !ok {
		return floorerr.Conflict("session %d is not awaiting a match count", sessionID)
	}
	c.dropMatchCount(sessionID)
	log.Info().Int64("session_id", sessionID).Msg("match count collection cancelled")
	return nil
}

// PruneMatchCounts drops requests whose session is no longer active on any
// machine in snapshot, such as one the floor service ended on its own.
func (c *Controller) PruneMatchCounts(snapshot []models.Machine) {
	active := make(map[int64]bool, len(snapshot))
	for _, m := range snapshot {
		if m.ActiveSession != nil {
			active[m.ActiveSession.ID] = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.awaiting {
		if !active[id] {
			delete(c.awaiting, id)
			log.Info().Int64("session_id", id).Msg("session ended elsewhere, match count request dropped")
		}
	}
}

func (c *Controller) pendingMatchCount(sessionID int64) (MatchCountRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.awaiting[sessionID]
	if !ok {
		return MatchCountRequest{}, false
	}
	return *p, true
}

func (c *Controller) dropMatchCount(sessionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.awaiting, sessionID)
}

func resolveMode(s models.Session) models.PricingMode {
	return session.ResolveMode(&s)
}

// localPrice is the client's own price when the floor service returns none.
func localPrice(s models.Session, matches *int) decimal.Decimal {
	if matches != nil {
		return billing.MatchTotal(*matches, s.PricePerMatch)
	}
	return s.TotalPaid
}
