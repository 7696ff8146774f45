// Package parallel runs independent work items on a bounded set of workers.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PoolConfig configures the worker pool behavior.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent workers.
	// Default: min(runtime.NumCPU(), 8)
	MaxWorkers int
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{MaxWorkers: workers}
}

// WithWorkers returns a new config with the specified number of workers.
// Values below 1 select the default.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	if n < 1 {
		n = DefaultPoolConfig().MaxWorkers
	}
	c.MaxWorkers = n
	return c
}

// Map applies fn to every item and returns the results in input order.
// The first error cancels the context passed to the remaining calls and
// is returned; items not yet started are skipped.
func Map[T any, R any](ctx context.Context, items []T, config PoolConfig, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	workers := config.MaxWorkers
	if workers <= 0 {
		workers = DefaultPoolConfig().MaxWorkers
	}

	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, len(items)))

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// parent canceled between the last check and Wait
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForEach calls fn for every item. It stops at the first error.
func ForEach[T any](ctx context.Context, items []T, config PoolConfig, fn func(ctx context.Context, item T) error) error {
	_, err := Map(ctx, items, config, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}
