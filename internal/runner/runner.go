// Package runner fans a batch of backtest configs out across goroutines,
// each with its own isolated Driver and stores, sharing only the
// read-only price repository.
package runner

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pi5trading/backtestengine/internal/backtest"
)

// Coordinator runs many backtest configs concurrently against one shared
// repository.
type Coordinator struct {
	repo     backtest.PriceRepository
	strategy func(backtest.Config) (backtest.Strategy, error)
	logger   zerolog.Logger
	maxPar   int
}

// New builds a Coordinator. strategyFor constructs a fresh Strategy
// instance per config — strategies are not assumed safe to share across
// concurrent runs. maxParallel <= 0 defaults to GOMAXPROCS.
func New(repo backtest.PriceRepository, strategyFor func(backtest.Config) (backtest.Strategy, error), logger zerolog.Logger, maxParallel int) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0)
	}
	return &Coordinator{repo: repo, strategy: strategyFor, logger: logger.With().Str("component", "runner").Logger(), maxPar: maxParallel}
}

// RunMany runs every config, bounded to maxParallel concurrent Drivers.
// Results are returned in the same order as configs. ctx cancellation
// propagates to every in-flight Driver. A per-run error (from building
// its strategy) fails the whole batch: it cancels the runs still in
// flight and RunMany returns that error with no results.
func (c *Coordinator) RunMany(ctx context.Context, configs []backtest.Config) ([]*backtest.Result, error) {
	results := make([]*backtest.Result, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxPar)

	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			strategy, err := c.strategy(cfg)
			if err != nil {
				return err
			}

			driver := backtest.NewDriver(cfg, c.repo, strategy, c.logger)
			results[i] = driver.Run(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
