package workflow

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RunLimited executes independent tasks with at most limit in flight at
// once, admitting the next task as soon as one completes. Results are
// returned in task order. Used for fan-out across distinct agent instances;
// within one workflow the scheduler's round ordering applies instead.
func RunLimited(ctx context.Context, limit int64, tasks []func(context.Context) error) []error {
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, task func(context.Context) error) {
			defer wg.Done()
			defer sem.Release(1)
			errs[i] = task(ctx)
		}(i, task)
	}
	wg.Wait()
	return errs
}
