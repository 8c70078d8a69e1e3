// Package metrics aggregates request outcomes into run statistics.
//
// The central [Collector] type records outcomes as they arrive and can be
// sampled at any time:
//
//	collector := metrics.NewCollector()
//	collector.Observe(o) // called by the runner's collector goroutine
//	stats := collector.Stats(elapsed)
//
// [Summarize] computes the same [Stats] from a finished outcome set.
//
// # Statistics
//
// The [Stats] type provides:
//   - Outcome counts (total, successes, failures, errors, skipped)
//   - Latency percentiles (P50, P90, P95, P99) over responses received
//   - Requests per second
//   - Per-operation breakdowns
//   - Non-2xx status buckets per operation
//
// # Thread Safety
//
// The Collector guards its state with a mutex. Observe and Stats may be called
// from different goroutines.
package metrics
