package grouper

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Grouped is the per-encounter outcome of GroupAll: a result or an error,
// never both.
type Grouped struct {
	Result Result
	Err    error
}

// GroupAll classifies encounters concurrently and returns one Grouped per
// input, in input order. Per-encounter errors are recorded, not returned; the
// only error is ctx's when it is cancelled before every encounter is grouped.
func (e *Engine) GroupAll(ctx context.Context, encs []Encounter, workers int) ([]Grouped, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Grouped, len(encs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range encs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Group(encs[i])
			out[i] = Grouped{Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
