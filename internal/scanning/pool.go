package scanning

import (
	"context"
	"sync"

	"github.com/anstrom/netsweep/internal/logging"
)

// DefaultMaxWorkers is the worker count used when the caller does not set one.
const DefaultMaxWorkers = 5

// UnitRunner executes one work unit and returns its result. The production
// implementation is ProcessRunner; tests substitute fakes.
type UnitRunner interface {
	Run(ctx context.Context, unit WorkUnit) ScanResult
}

// RunUnits executes work units across a bounded worker pool and returns the
// results of the units that ran to completion. The pool size is the smaller
// of maxWorkers and the unit count, so small scans never idle workers.
//
// When ctx is cancelled, workers stop picking up queued units and in-flight
// units are interrupted by the runner; their results come back marked
// canceled and are dropped here, so a cancelled scan yields exactly the
// units that finished before cancellation.
func RunUnits(ctx context.Context, units []WorkUnit, runner UnitRunner, maxWorkers int) []ScanResult {
	if len(units) == 0 {
		return nil
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if maxWorkers > len(units) {
		maxWorkers = len(units)
	}

	log := logging.Default().WithComponent("pool")
	log.Debug("Starting worker pool", "workers", maxWorkers, "units", len(units))

	jobs := make(chan WorkUnit, len(units))
	for _, u := range units {
		jobs <- u
	}
	close(jobs)

	// Buffered to the unit count so workers never block on send.
	resultCh := make(chan ScanResult, len(units))

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(ctx, jobs, resultCh, runner)
		}()
	}
	wg.Wait()
	close(resultCh)

	results := make([]ScanResult, 0, len(units))
	dropped := 0
	for res := range resultCh {
		if res.Canceled {
			dropped++
			continue
		}
		results = append(results, res)
	}
	if dropped > 0 {
		log.Debug("Dropped canceled unit results", "count", dropped)
	}
	return results
}

// runWorker drains the job queue until it is empty or the context ends.
// Cancellation is checked both while waiting for work and again before
// spawning, so a cancel between dequeue and spawn never starts a process.
func runWorker(ctx context.Context, jobs <-chan WorkUnit, results chan<- ScanResult, runner UnitRunner) {
	for {
		select {
		case <-ctx.Done():
			return
		case unit, ok := <-jobs:
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			results <- runner.Run(ctx, unit)
		}
	}
}
