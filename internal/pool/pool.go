package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool executes independent tasks using at most a fixed number of
// goroutines. Task errors do not cancel sibling tasks: each task records its
// own outcome and the pool only reports context cancellation.
type Pool struct {
	workers int
}

// New returns a pool running at most workers tasks at once. Values below one
// run tasks sequentially on the calling goroutine.
func New(workers int) *Pool {
	return &Pool{workers: workers}
}

// Run calls fn for every index in [0, n) and waits for all calls to return.
// Tasks not yet started when ctx is canceled are skipped, and ctx.Err() is
// returned.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	if p.workers <= 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i)
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(ctx, i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
