// Package workerpool provides simple concurrent processing utilities.
package workerpool

import (
	"context"
	"sync"
)

// Map runs a worker pool over the provided items and collects one result per
// item, in input order. A per-item failure is expected to be encoded in its
// result value; it does not stop the other items. Only context cancellation
// stops the pool early, in which case results for undispatched items are left
// as zero values and the context error is returned.
func Map[T, R any](ctx context.Context, workerCount int, items []T, process func(context.Context, T) R) ([]R, error) {
	if workerCount < 1 {
		workerCount = 1
	}

	results := make([]R, len(items))
	tasks := make(chan int, workerCount)

	wg := sync.WaitGroup{}
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-tasks:
					if !ok {
						return
					}
					results[idx] = process(ctx, items[idx])
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i := range items {
			select {
			case <-ctx.Done():
				return
			case tasks <- i:
			}
		}
	}()

	wg.Wait()
	return results, ctx.Err()
}
