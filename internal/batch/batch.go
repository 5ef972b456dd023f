// internal/batch/batch.go
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ItemError pairs a failed item's input index with its error.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string { return e.Err.Error() }

func (e ItemError) Unwrap() error { return e.Err }

// Outcome collects the settled results of a batch. For every input item
// exactly one entry lands in either Results or Errors; relative order
// against the input is not guaranteed.
type Outcome[R any] struct {
	Results []R
	Errors  []ItemError
}

// Process runs worker over every item with at most concurrency simultaneous
// invocations. No item's failure blocks or cancels the others.
func Process[T, R any](ctx context.Context, items []T, concurrency int, worker func(context.Context, T) (R, error)) Outcome[R] {
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu      sync.Mutex
		outcome Outcome[R]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		g.Go(func() error {
			r, err := worker(gctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Errors = append(outcome.Errors, ItemError{Index: i, Err: err})
			} else {
				outcome.Results = append(outcome.Results, r)
			}
			return nil
		})
	}

	_ = g.Wait()
	return outcome
}
