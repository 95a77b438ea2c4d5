package floorapi

import (
	"context"
	"net/http"

	"github.com/mcdev12/gamefloor/go/internal/models"
)

// ListMachines returns every machine with its embedded active session.
func (c *FloorApiClient) ListMachines(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	if err := c.Do(ctx, "list machines", http.MethodGet, MachinesEndpoint, nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// ListGames returns the catalog with each game's pricing entries.
func (c *FloorApiClient) ListGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	if err := c.Do(ctx, "list games", http.MethodGet, GamesEndpoint, nil, &games); err != nil {
		return nil, err
	}
	for i := range games {
		for j := range games[i].Pricings {
			if games[i].Pricings[j].GameID == 0 {
				games[i].Pricings[j].GameID = games[i].ID
			}
		}
	}
	return games, nil
}

// CheckAutoStop asks the service to stop every session whose time is up.
func (c *FloorApiClient) CheckAutoStop(ctx context.Context) error {
	return c.Do(ctx, "check auto-stop", http.MethodPost, CheckAutoStopEndpoint, nil, nil)
}
