// Package runner provides the execution engine for loadmix.
//
// A [Runner] drains a pre-built work plan with a fixed pool of worker
// goroutines:
//   - The plan is loaded into a buffered channel that is closed before any
//     worker starts, so completion is simply "channel drained".
//   - Each worker pulls one [plan.WorkItem], runs it through the [Executor]
//     and sends the resulting outcome to a single collector goroutine.
//   - The collector owns the outcome slice and notifies every [Observer].
//
// # Basic Usage
//
//	r := runner.New(runner.Options{
//		Concurrency: 100,
//		Executor:    dispatcher,
//		Observers:   []runner.Observer{collector},
//	})
//	result := r.Run(ctx, items)
//
// # Failure Handling
//
// Executors fold transport and status failures into the outcome itself. A
// panic raised while executing an item is recovered and recorded as an
// ERROR outcome, and the worker continues with the next item.
//
// # Pacing
//
// RatePerSecond applies a fixed token-bucket limit shared by all workers.
// Zero means unlimited.
package runner
