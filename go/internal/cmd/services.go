package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/gamefloor/go/clients/floorapi"
	"github.com/mcdev12/gamefloor/go/internal/apiconfig"
	"github.com/mcdev12/gamefloor/go/internal/catalog"
	"github.com/mcdev12/gamefloor/go/internal/events"
	"github.com/mcdev12/gamefloor/go/internal/floor"
	"github.com/mcdev12/gamefloor/go/internal/gateway"
	"github.com/mcdev12/gamefloor/go/internal/lifecycle"
	"github.com/mcdev12/gamefloor/go/internal/metrics"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/roster"
	"github.com/mcdev12/gamefloor/go/internal/session/autostop"
	"github.com/mcdev12/gamefloor/go/internal/settlement"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Roster      *roster.Roster
	Catalog     *catalog.Catalog
	Settlements *settlement.Manager
	Lifecycle   *lifecycle.Controller
	AutoStop    *autostop.Trigger
	Floor       *floor.Floor
	Hub         *gateway.Hub
	Publisher   events.Publisher

	closers []func() error
}

func setupServices(ctx context.Context, config *Config, apiConfig apiconfig.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Floor client → roster/catalog → settlements → lifecycle → auto-stop → floor ticker → hub
	clock := clockwork.NewRealClock()

	client := floorapi.NewFloorApiClient(apiConfig.BaseURL, apiConfig.Token)
	client.SetTimeout(apiConfig.Timeout)

	services := &Services{Publisher: events.Nop{}}
	if config.Events.Enabled {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = getEnv("NATS_URL", jsConfig.URL)
		if config.Events.StreamName != "" {
			jsConfig.StreamName = config.Events.StreamName
		}
		if config.Events.Subject != "" {
			jsConfig.SubjectPrefix = config.Events.Subject
		}
		publisher, err := events.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event publisher: %w", err)
		}
		services.Publisher = publisher
		services.closers = append(services.closers, publisher.Close)
	}

	services.Publisher = events.NewMetricPublisher(services.Publisher, metrics.Collector{})

	denominations, err := config.denominations()
	if err != nil {
		return nil, err
	}

	services.Roster = roster.New(client, clock)
	services.Catalog = catalog.New(client)
	services.Settlements = settlement.NewManager(client, services.Roster, services.Publisher, clock, denominations)
	services.Lifecycle = lifecycle.NewController(client, services.Roster, services.Catalog, services.Settlements, services.Publisher, clock)
	services.AutoStop = autostop.NewTrigger(clock, services.Lifecycle, config.Floor.AutoStopGrace)
	services.Floor = floor.New(clock, services.Roster, services.AutoStop, config.Floor.TickInterval)
	services.Hub = gateway.NewHub(gateway.DefaultHubConfig())
	services.Floor.OnTick(services.Hub.Broadcast)
	services.Roster.OnChange(func(snapshot []models.Machine) {
		metrics.SetMachines(snapshot)
		services.Lifecycle.PruneMatchCounts(snapshot)
		services.Floor.Nudge()
	})
	services.closers = append(services.closers, func() error {
		services.AutoStop.Close()
		return nil
	})

	// The catalog loads lazily on first use when the floor service is down
	if err := services.Catalog.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to preload game catalog")
	}

	return services, nil
}

func (c *Config) pollConfig() roster.PollConfig {
	return roster.PollConfig{
		RefreshInterval:  c.Floor.RefreshInterval,
		AutoStopInterval: c.Floor.AutoStopInterval,
	}
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close service")
		}
	}
}
