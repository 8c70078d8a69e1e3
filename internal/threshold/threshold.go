// Package threshold checks run statistics against pass/fail assertions such as
// "http_req_failed:rate < 0.01" or, scoped to one operation,
// "http_req_duration{operation=create_order}:p95 < 250".
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/loadmix/loadmix/internal/catalog"
	"github.com/loadmix/loadmix/internal/metrics"
)

// Threshold is one parsed assertion.
type Threshold struct {
	Metric    string
	Operation string // empty means the whole run
	Aggregate string
	Operator  string
	Value     float64
	Raw       string
}

// Result is the evaluation of one Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

var thresholdPattern = regexp.MustCompile(
	`^([a-z_]+)(?:\{operation=([a-z_]+)\})?:([a-z0-9]+)\s*(<=|>=|==|<|>)\s*([0-9]*\.?[0-9]+)$`)

// sample is the slice of Stats a threshold reads, for the run or one operation.
type sample struct {
	total, failed, skipped int64
	perSec                 float64
	latency                metrics.LatencyStats
}

func ratio(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Failed counts non-2xx responses and ERROR outcomes; SKIPPED has its own metric.
var metricTable = map[string]map[string]func(sample) float64{
	"http_req_duration": {
		"p50": func(s sample) float64 { return s.latency.P50LatencyMs },
		"p90": func(s sample) float64 { return s.latency.P90LatencyMs },
		"p95": func(s sample) float64 { return s.latency.P95LatencyMs },
		"p99": func(s sample) float64 { return s.latency.P99LatencyMs },
		"avg": func(s sample) float64 { return s.latency.MeanLatencyMs },
		"min": func(s sample) float64 { return s.latency.MinLatencyMs },
		"max": func(s sample) float64 { return s.latency.MaxLatencyMs },
	},
	"http_req_failed": {
		"count": func(s sample) float64 { return float64(s.failed) },
		"rate":  func(s sample) float64 { return ratio(s.failed, s.total) },
	},
	"http_req_skipped": {
		"count": func(s sample) float64 { return float64(s.skipped) },
		"rate":  func(s sample) float64 { return ratio(s.skipped, s.total) },
	},
	"http_requests": {
		"count": func(s sample) float64 { return float64(s.total) },
		"rate":  func(s sample) float64 { return s.perSec },
	},
}

const epsilon = 1e-9

var operators = map[string]func(actual, want float64) bool{
	"<":  func(a, w float64) bool { return a < w },
	"<=": func(a, w float64) bool { return a < w || math.Abs(a-w) < epsilon },
	">":  func(a, w float64) bool { return a > w },
	">=": func(a, w float64) bool { return a > w || math.Abs(a-w) < epsilon },
	"==": func(a, w float64) bool { return math.Abs(a-w) < epsilon },
}

func sortedKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// Parse reads "metric[{operation=name}]:aggregate op value".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold")
	}
	m := thresholdPattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q (want metric[{operation=name}]:aggregate op value, e.g. 'http_req_duration:p95 < 500')", s)
	}
	t := Threshold{Metric: m[1], Operation: m[2], Aggregate: m[3], Operator: m[4], Raw: s}

	aggregates, ok := metricTable[t.Metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", t.Metric, sortedKeys(metricTable))
	}
	if _, ok := aggregates[t.Aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", t.Aggregate, t.Metric, sortedKeys(aggregates))
	}
	if t.Operation != "" {
		if _, ok := catalog.Lookup(t.Operation); !ok {
			return Threshold{}, fmt.Errorf("unknown operation %q (known: %s)", t.Operation, strings.Join(catalog.Names(), ", "))
		}
	}
	value, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("threshold value %q: %w", m[5], err)
	}
	t.Value = value
	return t, nil
}

// ParseMultiple parses every entry and reports all malformed ones together.
func ParseMultiple(raw []string) ([]Threshold, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Threshold, 0, len(raw))
	var problems []string
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

// Evaluator checks a fixed set of thresholds.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate returns one Result per threshold, in declaration order.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluate(t, stats))
	}
	return results
}

func evaluate(t Threshold, stats metrics.Stats) Result {
	extract, ok := metricTable[t.Metric][t.Aggregate]
	compare, okOp := operators[t.Operator]
	if !ok || !okOp {
		return Result{Threshold: t, Message: fmt.Sprintf("✗ %s: unsupported threshold", t.Raw)}
	}

	actual := extract(sampleOf(stats, t.Operation))
	pass := compare(actual, t.Value)
	mark := "✓"
	if !pass {
		mark = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", mark, t.Raw, actual, t.Operator, t.Value),
	}
}

// sampleOf selects run-wide or per-operation figures. An operation that
// produced no outcomes reads as zero.
func sampleOf(stats metrics.Stats, operation string) sample {
	if operation == "" {
		return sample{
			total:   stats.Total,
			failed:  stats.Failures + stats.Errors,
			skipped: stats.Skipped,
			perSec:  stats.RequestsPerSec,
			latency: stats.LatencyStats,
		}
	}
	op := stats.Operations[operation]
	return sample{
		total:   op.Total,
		failed:  op.Failures + op.Errors,
		skipped: op.Skipped,
		perSec:  op.RequestsPerSec,
		latency: op.LatencyStats,
	}
}
