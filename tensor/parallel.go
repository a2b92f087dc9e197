package tensor

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor runs fn(0) .. fn(n-1) on up to runtime.NumCPU() goroutines and returns the
// first error. fn must only write to data owned by its index.
func ParallelFor(n int, fn func(i int) error) error {
	if n == 1 {
		return fn(0)
	}
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}
