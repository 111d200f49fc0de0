package flow

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SweepRunner periodically deletes expired flows. A missed sweep is safe:
// readers treat a flow past expires_at as invalid regardless.
type SweepRunner struct {
	engine   *Engine
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweepRunner(engine *Engine, interval time.Duration, logger zerolog.Logger) *SweepRunner {
	return &SweepRunner{
		engine:   engine,
		interval: interval,
		logger:   logger.With().Str("component", "flow-sweeper").Logger(),
	}
}

// Run sweeps on the configured interval until the context ends.
func (r *SweepRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.engine.ExpireSweep(ctx); err != nil {
				r.logger.Error().Err(err).Msg("expire sweep failed")
			}
		}
	}
}
