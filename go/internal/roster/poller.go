package roster

import (
	"context"
	"time"

	"github.com/mcdev12/gamefloor/go/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRefreshInterval  = 10 * time.Second
	DefaultAutoStopInterval = 30 * time.Second
)

// PollConfig sets the two background poll cadences.
type PollConfig struct {
	RefreshInterval  time.Duration
	AutoStopInterval time.Duration
}

// DefaultPollConfig returns the standard cadences.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		RefreshInterval:  DefaultRefreshInterval,
		AutoStopInterval: DefaultAutoStopInterval,
	}
}

// Run polls the machine list and the server-side auto-stop reconciliation
// until ctx is done. The two polls run independently and their failures are
// only logged: the floor shows stale data rather than an error.
func (r *Roster) Run(ctx context.Context, cfg PollConfig) error {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.AutoStopInterval <= 0 {
		cfg.AutoStopInterval = DefaultAutoStopInterval
	}

	log.Info().
		Dur("refresh_interval", cfg.RefreshInterval).
		Dur("auto_stop_interval", cfg.AutoStopInterval).
		Msg("roster polling started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.refreshQuietly(ctx)
		r.every(ctx, cfg.RefreshInterval, r.refreshQuietly)
		return nil
	})
	g.Go(func() error {
		r.every(ctx, cfg.AutoStopInterval, r.checkAutoStopQuietly)
		return nil
	})
	err := g.Wait()

	log.Info().Msg("roster polling stopped")
	return err
}

func (r *Roster) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			fn(ctx)
		}
	}
}

func (r *Roster) refreshQuietly(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		metrics.RecordPollFailure("refresh")
		log.Debug().Err(err).Msg("roster refresh failed, keeping stale snapshot")
	}
}

func (r *Roster) checkAutoStopQuietly(ctx context.Context) {
	if err := r.source.CheckAutoStop(ctx); err != nil && ctx.Err() == nil {
		metrics.RecordPollFailure("auto_stop")
		log.Debug().Err(err).Msg("auto-stop reconciliation failed")
	}
}
