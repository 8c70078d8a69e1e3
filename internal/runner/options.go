package runner

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/loadmix/loadmix/internal/outcome"
	"github.com/loadmix/loadmix/internal/plan"
)

// Executor turns one work item into an outcome.
// Implementations record failures in the outcome instead of returning errors.
type Executor interface {
	Execute(ctx context.Context, item plan.WorkItem) outcome.Outcome
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, item plan.WorkItem) outcome.Outcome

func (f ExecutorFunc) Execute(ctx context.Context, item plan.WorkItem) outcome.Outcome {
	return f(ctx, item)
}

// Observer is notified of every recorded outcome. Observers are called from a
// single collector goroutine.
type Observer interface {
	Observe(o outcome.Outcome)
}

// Options configure the Runner.
type Options struct {
	Concurrency    int                         // number of worker goroutines
	RatePerSecond  int                         // dispatch pacing (0 means unlimited)
	Executor       Executor                    // request executor (required)
	Observers      []Observer                  // live consumers of outcomes
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
