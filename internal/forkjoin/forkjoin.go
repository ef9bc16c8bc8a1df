// Package forkjoin runs data-parallel regions on a bounded set of workers.
//
// Every region starts exactly one goroutine per worker and partitions work
// statically, so for a fixed worker count each worker always processes the
// same indices and draws from the same PRNG slot. That keeps runs reproducible.
package forkjoin

import (
	"golang.org/x/sync/errgroup"

	"github.com/psychicsniffle/sniffle/internal/prng"
)

// Func is the body of a region for one worker
type Func func(worker int, r *prng.Stream) error

// Run executes fn once per slot of state and waits for every worker.
// Each worker's stream is acquired before fn and released when fn returns,
// including on error. The first error encountered is returned.
func Run(state *prng.State, fn Func) error {
	workers := state.Slots()

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			r := state.Acquire(w)
			defer r.Release()
			return fn(w, r)
		})
	}
	return g.Wait()
}

// Each splits [0, n) across workers goroutines and calls fn with each chunk.
// Empty chunks are skipped.
func Each(workers, n int, fn func(lo, hi int) error) error {
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		lo, hi := Chunk(0, n, w, workers)
		if lo == hi {
			continue
		}
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// Chunk returns the part-th of parts contiguous sub-ranges of [lo, hi).
// Sizes differ by at most one and earlier parts receive the remainder.
func Chunk(lo, hi, part, parts int) (int, int) {
	n := hi - lo
	if n <= 0 {
		return lo, lo
	}
	size, rem := n/parts, n%parts
	start := lo + part*size + min(part, rem)
	end := start + size
	if part < rem {
		end++
	}
	return start, end
}
