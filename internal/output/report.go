package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/loadmix/loadmix/internal/metrics"
	"github.com/loadmix/loadmix/internal/threshold"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Errors:            %d\n", stats.Errors)
	fmt.Fprintf(w, "Skipped:           %d\n", stats.Skipped)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		for _, row := range stats.StatusBuckets {
			fmt.Fprintf(w, "  %s %s: %d\n", row.Operation, row.Status, row.Count)
		}
	}

	if len(stats.ErrorKinds) > 0 {
		fmt.Fprintln(w, "\nErrors by Kind:")
		kinds := make([]string, 0, len(stats.ErrorKinds))
		for kind := range stats.ErrorKinds {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if stats.ErrorKinds[kinds[i]] == stats.ErrorKinds[kinds[j]] {
				return kinds[i] < kinds[j]
			}
			return stats.ErrorKinds[kinds[i]] > stats.ErrorKinds[kinds[j]]
		})
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, stats.ErrorKinds[kind])
		}
	}

	if len(stats.Operations) > 0 {
		fmt.Fprintln(w, "\nOperation Breakdown:")
		for _, name := range operationsByVolume(stats) {
			op := stats.Operations[name]
			share := 0.0
			if stats.Total > 0 {
				share = (float64(op.Total) / float64(stats.Total)) * 100
			}

			fmt.Fprintf(
				w,
				"  - %s: total=%d (%.1f%%), successes=%d, failures=%d, errors=%d, skipped=%d, rps=%.2f, p99=%s\n",
				name,
				op.Total,
				share,
				op.Successes,
				op.Failures,
				op.Errors,
				op.Skipped,
				op.RequestsPerSec,
				op.P99Latency,
			)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, stats metrics.Stats) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(stats); err != nil {
		return err
	}
	return enc.Close()
}

// PrintThresholdResults lists each threshold with its pass/fail mark and
// returns the number of failures.
func PrintThresholdResults(w io.Writer, results []threshold.Result) int {
	if len(results) == 0 {
		return 0
	}
	failed := 0
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		if !r.Pass {
			failed++
		}
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	fmt.Fprintf(w, "  %d/%d passed\n", len(results)-failed, len(results))
	return failed
}

// operationsByVolume orders operation names by descending total, then name.
func operationsByVolume(stats metrics.Stats) []string {
	names := make([]string, 0, len(stats.Operations))
	for name := range stats.Operations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stats.Operations[names[i]].Total, stats.Operations[names[j]].Total
		if a == b {
			return names[i] < names[j]
		}
		return a > b
	})
	return names
}
