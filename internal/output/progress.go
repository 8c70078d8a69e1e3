package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/loadmix/loadmix/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	planned   int
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
// planned is the plan size shown as the denominator.
func NewProgressReporter(collector *metrics.Collector, planned int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		planned:   planned,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+p.line(time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line(elapsed time.Duration) string {
	stats := p.collector.Stats(elapsed)
	line := fmt.Sprintf("Requests: %d/%d | Successes: %d | Failures: %d | Errors: %d | Skipped: %d | RPS: %.1f",
		stats.Total, p.planned, stats.Successes, stats.Failures, stats.Errors, stats.Skipped, stats.RequestsPerSec)
	if names := operationsByVolume(stats); len(names) > 0 && stats.Total > 0 {
		op := stats.Operations[names[0]]
		share := (float64(op.Total) / float64(stats.Total)) * 100
		line += fmt.Sprintf(" | Top: %s (%.0f%%, P99 %.1fms)", names[0], share, op.P99LatencyMs)
	}
	return line
}
