package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loadmix/loadmix/internal/outcome"
	"github.com/loadmix/loadmix/internal/plan"
)

// Result captures a finished run.
type Result struct {
	Outcomes []outcome.Outcome
	Planned  int
	Duration time.Duration
}

// Aborted reports whether the run ended before every item was recorded.
func (r Result) Aborted() bool {
	return len(r.Outcomes) < r.Planned
}

// Runner drains a work plan with a fixed pool of workers.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run executes every item exactly once and returns when all outcomes are
// recorded. Cancelling ctx stops workers at their next pull; items already in
// flight still finish and are recorded.
func (r *Runner) Run(ctx context.Context, items []plan.WorkItem) Result {
	start := time.Now()

	// The queue is fully loaded and closed before any worker starts, so a
	// worker only blocks on the results channel, never on an empty queue.
	queue := make(chan plan.WorkItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	results := make(chan outcome.Outcome, r.opt.Concurrency)
	collected := make(chan []outcome.Outcome, 1)
	go r.collect(results, len(items), collected)

	limiter := r.opt.LimiterFactory(r.opt.RatePerSecond)

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for i := 0; i < r.opt.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for item := range queue {
				if ctx.Err() != nil {
					return
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				results <- r.execute(ctx, item)
			}
		}()
	}
	wg.Wait()
	close(results)

	outcomes := <-collected
	return Result{
		Outcomes: outcomes,
		Planned:  len(items),
		Duration: time.Since(start),
	}
}

// collect is the only writer of the outcome slice.
func (r *Runner) collect(results <-chan outcome.Outcome, capacity int, done chan<- []outcome.Outcome) {
	outcomes := make([]outcome.Outcome, 0, capacity)
	for o := range results {
		outcomes = append(outcomes, o)
		for _, obs := range r.opt.Observers {
			obs.Observe(o)
		}
	}
	done <- outcomes
}

// execute shields the worker from executor panics so the item still yields
// an outcome.
func (r *Runner) execute(ctx context.Context, item plan.WorkItem) (o outcome.Outcome) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			o = failedOutcome(item, started, fmt.Errorf("panic: %v", rec))
		}
	}()
	if r.opt.Executor == nil {
		return failedOutcome(item, started, fmt.Errorf("executor is not configured"))
	}
	return r.opt.Executor.Execute(ctx, item)
}

func failedOutcome(item plan.WorkItem, started time.Time, err error) outcome.Outcome {
	o := outcome.Outcome{
		Timestamp: started,
		RequestID: item.ID,
		Status:    outcome.StatusError,
		Latency:   time.Since(started),
		Response:  outcome.Truncate(err.Error()),
	}
	if item.Op != nil {
		o.Operation = item.Op.Name
		o.Method = item.Op.Method
		o.Endpoint = item.Op.Path
	}
	return o
}
