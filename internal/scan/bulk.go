package scan

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultBulkWorkers is the worker count used when a bulk request does
// not ask for one.
const DefaultBulkWorkers = 3

// BulkTask processes one domain during a bulk run.
type BulkTask func(ctx context.Context, domain string) error

// BulkRunner executes a per-domain task across many domains under a
// bounded worker count. Abort is cooperative: a worker always finishes
// its in-flight task and only then re-checks the predicate, so an
// aborted run may still complete already-dispatched work.
type BulkRunner struct {
	Workers int
	Logger  *zap.Logger
}

// Run spawns min(Workers, len(domains)) workers over a shared queue and
// blocks until the queue drains or every worker has observed the abort.
// Task failures are isolated per domain; one bad domain never stops the
// others.
func (r *BulkRunner) Run(ctx context.Context, domains []string, task BulkTask, aborted func() bool) {
	if len(domains) == 0 {
		return
	}
	workers := r.Workers
	if workers < 1 {
		workers = DefaultBulkWorkers
	}
	if workers > len(domains) {
		workers = len(domains)
	}
	if aborted == nil {
		aborted = func() bool { return false }
	}

	// A pre-filled closed channel makes the pop-and-remove a single
	// atomic step for the racing workers.
	queue := make(chan string, len(domains))
	for _, d := range domains {
		queue <- d
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range queue {
				if aborted() || ctx.Err() != nil {
					return
				}
				if err := task(ctx, d); err != nil {
					r.Logger.Warn("bulk task failed", zap.String("domain", d), zap.Error(err))
				}
			}
		}()
	}
	wg.Wait()
}
