// Package parallel provides fan-out/fan-in helpers for node apply bodies.
//
// The helpers only read their input slice and return one combined result,
// so a node may use them without touching any state outside its own
// computation. Partial results are combined in chunk order, which keeps
// results deterministic for associative combine functions.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultMinChunk is the smallest chunk handed to a worker. Inputs below
// it run on the calling goroutine.
const DefaultMinChunk = 1024

// Options tunes the fan-out.
type Options struct {
	// Workers bounds concurrent goroutines. Zero means GOMAXPROCS.
	Workers int

	// MinChunk is the smallest chunk a worker receives. Zero means
	// DefaultMinChunk.
	MinChunk int
}

func (o Options) normalize() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.MinChunk <= 0 {
		o.MinChunk = DefaultMinChunk
	}
	return o
}

// chunks splits n items into at most workers contiguous ranges of at least
// minChunk items each.
func chunks(n int, o Options) [][2]int {
	if n == 0 {
		return nil
	}
	count := min(o.Workers, max(1, n/o.MinChunk))
	size := (n + count - 1) / count
	out := make([][2]int, 0, count)
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}
	return out
}

// Reduce folds items into one result. Each chunk is folded from identity
// on its own goroutine, then partials are combined left to right.
//
// fold may return an error to abort; the first error cancels the context
// passed to the remaining chunks and is returned.
func Reduce[T, R any](
	ctx context.Context,
	items []T,
	identity R,
	fold func(ctx context.Context, acc R, item T) (R, error),
	combine func(a, b R) R,
	opts Options,
) (R, error) {
	ranges := chunks(len(items), opts.normalize())
	if len(ranges) == 0 {
		return identity, nil
	}
	partials := make([]R, len(ranges))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.normalize().Workers)
	for i, r := range ranges {
		g.Go(func() error {
			acc := identity
			for _, item := range items[r[0]:r[1]] {
				if err := gCtx.Err(); err != nil {
					return err
				}
				var err error
				acc, err = fold(gCtx, acc, item)
				if err != nil {
					return err
				}
			}
			partials[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var zero R
		return zero, err
	}

	result := partials[0]
	for _, p := range partials[1:] {
		result = combine(result, p)
	}
	return result, nil
}

// Map applies fn to every item concurrently and returns results in input
// order.
func Map[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), opts Options) ([]R, error) {
	out := make([]R, len(items))
	ranges := chunks(len(items), opts.normalize())

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.normalize().Workers)
	for _, r := range ranges {
		g.Go(func() error {
			for i := r[0]; i < r[1]; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				v, err := fn(gCtx, items[i])
				if err != nil {
					return err
				}
				out[i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
