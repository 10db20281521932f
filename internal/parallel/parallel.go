// Package parallel provides the fork-join helpers the updater's block-list
// pass uses to spread per-block work across a worker pool (the carver and
// the propagation sweep run sequentially and do not use it),
// grounded on viamrobotics-rdk's utils/parallel.go but built on
// golang.org/x/sync/errgroup rather than hand-rolled WaitGroup bookkeeping,
// since the work here is naturally cancel-on-first-error (spec §4.3's
// "no partial failure").
package parallel

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Factor controls how many concurrent workers ForEachIndex and ForEach use.
// Tests may lower it to make scheduling deterministic.
var Factor = runtime.GOMAXPROCS(0)

func factor() int {
	if Factor <= 0 {
		return 1
	}
	return Factor
}

// ForEachIndex runs work(i) for i in [0, n) across a worker pool. If any
// worker fails, it returns the errors of every worker that failed,
// combined with multierr, rather than only the first; errgroup's
// cancel-on-error semantics cancel the context passed to the remaining
// workers. It blocks until every started worker has returned.
func ForEachIndex(ctx context.Context, n int, work func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(factor())

	var errsMu sync.Mutex
	var errs error
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			err := work(gctx, i)
			if err != nil {
				errsMu.Lock()
				errs = multierr.Append(errs, err)
				errsMu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return errs
	}
	return nil
}

// ForEach runs work(item) for every item in items across a worker pool.
func ForEach[T any](ctx context.Context, items []T, work func(ctx context.Context, item T) error) error {
	return ForEachIndex(ctx, len(items), func(ctx context.Context, i int) error {
		return work(ctx, items[i])
	})
}
