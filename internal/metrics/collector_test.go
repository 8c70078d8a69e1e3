package metrics_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmix/loadmix/internal/metrics"
	"github.com/loadmix/loadmix/internal/outcome"
)

func ok(op string, latency time.Duration) outcome.Outcome {
	return outcome.Outcome{Operation: op, Status: 201, Latency: latency}
}

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	// Record deterministic latencies.
	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.Observe(ok("create_user", time.Duration(ms)*time.Millisecond))
	}

	stats := c.Stats(0)

	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
	if stats.Successes != 5 {
		t.Errorf("expected successes 5, got %d", stats.Successes)
	}
	if stats.Failures != 0 {
		t.Errorf("expected failures 0, got %d", stats.Failures)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 50*time.Millisecond {
		t.Errorf("expected max 50ms, got %s", stats.MaxLatency)
	}
	if stats.MeanLatency != 30*time.Millisecond {
		t.Errorf("expected mean 30ms, got %s", stats.MeanLatency)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.Observe(ok("search_users", time.Duration(i)*time.Millisecond))
	}

	stats := c.Stats(0)

	if stats.P50Latency < 49*time.Millisecond || stats.P50Latency > 51*time.Millisecond {
		t.Errorf("expected P50 ~50ms, got %s", stats.P50Latency)
	}
	if stats.P90Latency < 89*time.Millisecond || stats.P90Latency > 91*time.Millisecond {
		t.Errorf("expected P90 ~90ms, got %s", stats.P90Latency)
	}
	if stats.P95Latency < 94*time.Millisecond || stats.P95Latency > 96*time.Millisecond {
		t.Errorf("expected P95 ~95ms, got %s", stats.P95Latency)
	}
	if stats.P99Latency < 98*time.Millisecond || stats.P99Latency > 100*time.Millisecond {
		t.Errorf("expected P99 ~99ms, got %s", stats.P99Latency)
	}
}

func TestOutcomeClassification(t *testing.T) {
	outcomes := []outcome.Outcome{
		ok("create_user", 5*time.Millisecond),
		{Operation: "create_user", Status: 500, Latency: 7 * time.Millisecond},
		{Operation: "create_order", Status: outcome.StatusSkipped},
		{Operation: "create_order", Status: outcome.StatusSkipped},
		{Operation: "create_log", Status: outcome.StatusError, Latency: time.Second, Response: "context deadline exceeded"},
	}
	stats := metrics.Summarize(outcomes, time.Second)

	assert.EqualValues(t, 5, stats.Total)
	assert.EqualValues(t, 1, stats.Successes)
	assert.EqualValues(t, 1, stats.Failures)
	assert.EqualValues(t, 2, stats.Skipped)
	assert.EqualValues(t, 1, stats.Errors)
	assert.Equal(t, stats.Total, stats.Successes+stats.Failures+stats.Skipped+stats.Errors)

	// Latency covers responses only.
	assert.Equal(t, 5*time.Millisecond, stats.MinLatency)
	assert.Equal(t, 7*time.Millisecond, stats.MaxLatency)

	require.Contains(t, stats.Operations, "create_order")
	assert.EqualValues(t, 2, stats.Operations["create_order"].Skipped)
	assert.Zero(t, stats.Operations["create_order"].MeanLatencyMs)
	assert.Equal(t, map[string]int{"Request timeout": 1}, stats.ErrorKinds)

	require.Len(t, stats.StatusBuckets, 3)
	assert.Equal(t, metrics.StatusBucket{Operation: "create_order", Status: "SKIPPED", Count: 2}, stats.StatusBuckets[0])
}

func TestSummarizeIsIdempotent(t *testing.T) {
	outcomes := make([]outcome.Outcome, 0, 300)
	for i := 0; i < 300; i++ {
		status := outcome.Status(200)
		switch i % 7 {
		case 0:
			status = 503
		case 3:
			status = outcome.StatusError
		case 5:
			status = outcome.StatusSkipped
		}
		outcomes = append(outcomes, outcome.Outcome{
			Operation: []string{"create_user", "search_users", "create_order"}[i%3],
			Status:    status,
			Latency:   time.Duration(i+1) * 137 * time.Microsecond,
			Response:  "connection refused",
		})
	}

	first := metrics.Summarize(outcomes, 3*time.Second)
	second := metrics.Summarize(outcomes, 3*time.Second)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 300, first.Total)
	assert.InDelta(t, 100.0, first.RequestsPerSec, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := metrics.Summarize(nil, 0)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.RequestsPerSec)
	assert.Nil(t, stats.Operations)
	assert.Nil(t, stats.StatusBuckets)
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.Observe(ok("create_user", 15*time.Millisecond))
	c.Observe(outcome.Outcome{Operation: "create_user", Status: 500, Latency: 25 * time.Millisecond})

	stats := c.Stats(100 * time.Millisecond)

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	requiredFields := []string{"total", "successes", "failures", "errors", "skipped", "min_latency_ms", "max_latency_ms", "mean_latency_ms", "p50_latency_ms", "p90_latency_ms", "p95_latency_ms", "p99_latency_ms", "duration_ms", "requests_per_sec", "operations", "status_buckets"}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	workers := 10
	recordsPerWorker := 100

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerWorker; j++ {
				c.Observe(ok("create_log", time.Millisecond))
				_ = c.Stats(time.Second)
			}
		}()
	}
	wg.Wait()

	stats := c.Stats(0)
	expected := workers * recordsPerWorker
	if stats.Total != int64(expected) {
		t.Errorf("expected total %d, got %d", expected, stats.Total)
	}
}

func TestOperationBreakdown(t *testing.T) {
	c := metrics.NewCollector()
	c.Observe(ok("create_user", 10*time.Millisecond))
	c.Observe(ok("create_user", 20*time.Millisecond))
	c.Observe(ok("search_products", 15*time.Millisecond))

	stats := c.Stats(2 * time.Second)
	if len(stats.Operations) != 2 {
		t.Fatalf("expected 2 operation stats, got %d", len(stats.Operations))
	}
	users := stats.Operations["create_user"]
	if users.Total != 2 {
		t.Fatalf("expected create_user total 2, got %d", users.Total)
	}
	if users.P50LatencyMs == 0 {
		t.Fatalf("expected percentile calculations for create_user")
	}
	if users.RequestsPerSec <= 0 {
		t.Fatalf("expected create_user RPS to be > 0")
	}
}
