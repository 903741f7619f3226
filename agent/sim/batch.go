package sim

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	goalx "github.com/tanpawarit/drivethru-sim/agent/goal"
)

type BatchConfig struct {
	Runs    int
	Workers int
	Level   goalx.Level
	// Seed, when non-zero, gives run i the seed Seed+i.
	Seed uint64
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Average   time.Duration
	Reports   []Report
}

// RunBatch fans runs out over a bounded worker pool. A failed run is counted
// and the rest carry on.
func (r *Runner) RunBatch(ctx context.Context, cfg BatchConfig) Summary {
	runs := max(cfg.Runs, 1)
	workers := cfg.Workers
	if workers <= 0 || workers > runs {
		workers = runs
	}

	started := r.now()
	reports := make([]Report, runs)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range runs {
		seed := uint64(0)
		if cfg.Seed != 0 {
			seed = cfg.Seed + uint64(i)
		}
		g.Go(func() error {
			reports[i] = r.Run(ctx, cfg.Level, seed)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{
		Total:   runs,
		Elapsed: r.now().Sub(started),
		Reports: reports,
	}
	for _, rep := range reports {
		if rep.Success() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	sum.Average = sum.Elapsed / time.Duration(runs)

	zerolog.Ctx(ctx).Info().
		Int("total", sum.Total).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Dur("elapsed", sum.Elapsed).
		Dur("average", sum.Average).
		Msg("batch finished")
	return sum
}
