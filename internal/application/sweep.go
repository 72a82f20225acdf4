package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-nbload/internal/ctxlog"
	"github.com/ahrav/go-nbload/internal/domain"
)

// SweepOptions bounds how a sweep runs its invocations.
type SweepOptions struct {
	// Parallelism is the maximum number of concurrent invocations.
	// Values below 1 mean 1.
	Parallelism int
	// RatePerSecond paces invocation starts. Zero disables pacing.
	RatePerSecond float64
	// Burst is the number of invocations that may start back to back when
	// pacing is enabled. Values below 1 mean 1.
	Burst int
}

// SweepResult is the outcome of one invocation of a sweep.
type SweepResult struct {
	// Overrides are the parameter values the invocation ran with.
	Overrides map[string]any
	// Module is the executed module. It is nil when Err is set.
	Module *domain.Module
	// Err is a fatal error of the invocation, such as an unknown parameter.
	Err error
}

// Sweep calls the template once per entry of grid and returns the results
// in grid order. Invocations run concurrently up to opts.Parallelism, each
// in its own namespace. A fatal error of one invocation is kept in its
// result and does not stop the others. Sweep returns an error only when ctx
// ends before every invocation has started.
func (t *Template) Sweep(ctx context.Context, grid []map[string]any, opts SweepOptions) ([]SweepResult, error) {
	results := make([]SweepResult, len(grid))

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(1, opts.Burst))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Parallelism))

	logger := ctxlog.FromContext(ctx)
	for i, overrides := range grid {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				_ = g.Wait()
				return results, fmt.Errorf("sweep stopped before invocation %d: %w", i, err)
			}
		}

		g.Go(func() error {
			mod, err := t.Call(gctx, overrides)
			results[i] = SweepResult{Overrides: overrides, Module: mod, Err: err}
			if err != nil {
				logger.Warn("sweep invocation failed", "index", i, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("sweep interrupted: %w", err)
	}
	return results, nil
}
