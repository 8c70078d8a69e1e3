package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/loadmix/loadmix/internal/outcome"
)

// Collector records per-request outcomes in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	all        *latencyTracker
	successes  int64
	failures   int64
	errors     int64
	skipped    int64
	operations map[string]*operationTracker
	// operation -> status label -> count, for anything other than 2xx
	statuses     map[string]map[string]int
	errorsByKind map[string]int64
}

// RunSummary is the top-level result of a run.
type RunSummary struct {
	Total          int64         `json:"total" yaml:"total"`
	Duration       time.Duration `json:"-" yaml:"-"`
	DurationMs     float64       `json:"duration_ms" yaml:"duration_ms"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
}

// LatencyStats describes the latency distribution of responses received.
type LatencyStats struct {
	MinLatency  time.Duration `json:"-" yaml:"-"`
	MaxLatency  time.Duration `json:"-" yaml:"-"`
	MeanLatency time.Duration `json:"-" yaml:"-"`
	P50Latency  time.Duration `json:"-" yaml:"-"`
	P90Latency  time.Duration `json:"-" yaml:"-"`
	P95Latency  time.Duration `json:"-" yaml:"-"`
	P99Latency  time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
}

// OperationStats is the breakdown for one catalog operation.
type OperationStats struct {
	Total          int64   `json:"total" yaml:"total"`
	Successes      int64   `json:"successes" yaml:"successes"`
	Failures       int64   `json:"failures" yaml:"failures"`
	Errors         int64   `json:"errors" yaml:"errors"`
	Skipped        int64   `json:"skipped" yaml:"skipped"`
	RequestsPerSec float64 `json:"requests_per_sec" yaml:"requests_per_sec"`
	LatencyStats   `yaml:",inline"`
}

// Stats represents aggregated metrics.
type Stats struct {
	RunSummary   `yaml:",inline"`
	LatencyStats `yaml:",inline"`

	// Successes are 2xx responses, Failures are other HTTP responses.
	Successes int64 `json:"successes" yaml:"successes"`
	Failures  int64 `json:"failures" yaml:"failures"`
	Errors    int64 `json:"errors" yaml:"errors"`
	Skipped   int64 `json:"skipped" yaml:"skipped"`

	Operations    map[string]OperationStats `json:"operations,omitempty" yaml:"operations,omitempty"`
	StatusBuckets []StatusBucket            `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
	ErrorKinds    map[string]int            `json:"error_kinds,omitempty" yaml:"error_kinds,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		all:          newLatencyTracker(),
		operations:   make(map[string]*operationTracker),
		statuses:     make(map[string]map[string]int),
		errorsByKind: make(map[string]int64),
	}
}

// Observe records one outcome. It satisfies runner.Observer.
func (c *Collector) Observe(o outcome.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := c.operations[o.Operation]
	if op == nil {
		op = &operationTracker{latency: newLatencyTracker()}
		c.operations[o.Operation] = op
	}
	op.total++

	switch {
	case o.Status.Success():
		c.successes++
		op.successes++
	case o.Status.IsHTTP():
		c.failures++
		op.failures++
	case o.Status == outcome.StatusSkipped:
		c.skipped++
		op.skipped++
	default:
		c.errors++
		op.errors++
		c.errorsByKind[ClassifyError(o.Response)]++
	}

	if o.Status.IsHTTP() {
		c.all.record(o.Latency)
		op.latency.record(o.Latency)
	}

	if !o.Status.Success() {
		codes := c.statuses[o.Operation]
		if codes == nil {
			codes = make(map[string]int)
			c.statuses[o.Operation] = codes
		}
		codes[o.Status.String()]++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures + c.errors + c.skipped
	stats := Stats{
		RunSummary:   newRunSummary(total, elapsed),
		LatencyStats: c.all.stats(),
		Successes:    c.successes,
		Failures:     c.failures,
		Errors:       c.errors,
		Skipped:      c.skipped,
	}

	if len(c.operations) > 0 {
		stats.Operations = make(map[string]OperationStats, len(c.operations))
		for name, op := range c.operations {
			opStats := OperationStats{
				Total:        op.total,
				Successes:    op.successes,
				Failures:     op.failures,
				Errors:       op.errors,
				Skipped:      op.skipped,
				LatencyStats: op.latency.stats(),
			}
			if elapsed > 0 {
				opStats.RequestsPerSec = float64(op.total) / elapsed.Seconds()
			}
			stats.Operations[name] = opStats
		}
	}

	stats.StatusBuckets = FlattenStatusBuckets(c.statuses)

	if len(c.errorsByKind) > 0 {
		stats.ErrorKinds = make(map[string]int, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			stats.ErrorKinds[k] = int(v)
		}
	}

	return stats
}

// Summarize folds a complete outcome set into Stats. It holds no state, so
// the same outcomes and elapsed time always give the same result.
func Summarize(outcomes []outcome.Outcome, elapsed time.Duration) Stats {
	c := NewCollector()
	for _, o := range outcomes {
		c.Observe(o)
	}
	return c.Stats(elapsed)
}

func newRunSummary(total int64, elapsed time.Duration) RunSummary {
	s := RunSummary{
		Total:      total,
		Duration:   elapsed,
		DurationMs: toMs(elapsed),
	}
	if elapsed > 0 && total > 0 {
		s.RequestsPerSec = float64(total) / elapsed.Seconds()
	}
	return s
}

type operationTracker struct {
	total     int64
	successes int64
	failures  int64
	errors    int64
	skipped   int64
	latency   *latencyTracker
}

type latencyTracker struct {
	hist  *hdrhistogram.Histogram
	count int64
	min   time.Duration
	max   time.Duration
	sum   time.Duration
}

func newLatencyTracker() *latencyTracker {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &latencyTracker{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

func (t *latencyTracker) record(latency time.Duration) {
	us := latency.Microseconds()
	if us < t.hist.LowestTrackableValue() {
		us = t.hist.LowestTrackableValue()
	}
	if us > t.hist.HighestTrackableValue() {
		us = t.hist.HighestTrackableValue()
	}
	_ = t.hist.RecordValue(us)

	if t.count == 0 || latency < t.min {
		t.min = latency
	}
	if latency > t.max {
		t.max = latency
	}
	t.sum += latency
	t.count++
}

func (t *latencyTracker) stats() LatencyStats {
	var s LatencyStats
	if t.count == 0 {
		return s
	}
	s.MinLatency = t.min
	s.MaxLatency = t.max
	s.MeanLatency = time.Duration(int64(t.sum) / t.count)
	s.P50Latency = time.Duration(t.hist.ValueAtQuantile(50)) * time.Microsecond
	s.P90Latency = time.Duration(t.hist.ValueAtQuantile(90)) * time.Microsecond
	s.P95Latency = time.Duration(t.hist.ValueAtQuantile(95)) * time.Microsecond
	s.P99Latency = time.Duration(t.hist.ValueAtQuantile(99)) * time.Microsecond

	s.MinLatencyMs = toMs(s.MinLatency)
	s.MaxLatencyMs = toMs(s.MaxLatency)
	s.MeanLatencyMs = toMs(s.MeanLatency)
	s.P50LatencyMs = toMs(s.P50Latency)
	s.P90LatencyMs = toMs(s.P90Latency)
	s.P95LatencyMs = toMs(s.P95Latency)
	s.P99LatencyMs = toMs(s.P99Latency)
	return s
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
