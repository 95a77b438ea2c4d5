// Package catalog caches the game price list served by the floor service.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Source defines what the catalog needs from the floor service
type Source interface {
	ListGames(ctx context.Context) ([]models.Game, error)
}

// Catalog holds the last loaded list of games.
type Catalog struct {
	source Source

	mu    sync.RWMutex
	games map[int64]models.Game
	order []int64
}

// New creates an empty catalog.
func New(source Source) *Catalog {
	return &Catalog{
		source: source,
		games:  make(map[int64]models.Game),
	}
}

// Load replaces the cached catalog with a fresh copy.
func (c *Catalog) Load(ctx context.Context) error {
	games, err := c.source.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("failed to load games: %w", err)
	}

	byID := make(map[int64]models.Game, len(games))
	order := make([]int64, 0, len(games))
	for _, g := range games {
		byID[g.ID] = g
		order = append(order, g.ID)
	}

	c.mu.Lock()
	c.games = byID
	c.order = order
	c.mu.Unlock()

	log.Debug().Int("games", len(games)).Msg("catalog loaded")
	return nil
}

// Games returns the cached games in service order.
func (c *Catalog) Games() []models.Game {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Game, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.games[id])
	}
	return out
}

// Resolve returns the game and pricing entry an operator picked. A cold
// cache is loaded once before giving up.
func (c *Catalog) Resolve(ctx context.Context, gameID, pricingID int64) (models.Game, models.GamePricing, error) {
	if gameID == 0 {
		return models.Game{}, models.GamePricing{}, floorerr.Invalid("game", "select a game")
	}
	if pricingID == 0 {
		return models.Game{}, models.GamePricing{}, floorerr.Invalid("pricing", "select a pricing option")
	}

	g, ok := c.game(gameID)
	if !ok {
		if err := c.Load(ctx); err != nil {
			return models.Game{}, models.GamePricing{}, err
		}
		if g, ok = c.game(gameID); !ok {
			return models.Game{}, models.GamePricing{}, floorerr.Invalid("game", "unknown game")
		}
	}

	p, ok := g.Pricing(pricingID)
	if !ok {
		return models.Game{}, models.GamePricing{}, floorerr.Invalid("pricing", fmt.Sprintf("not offered for %s", g.Name))
	}
	return g, p, nil
}

func (c *Catalog) game(id int64) (models.Game, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.games[id]
	return g, ok
}
