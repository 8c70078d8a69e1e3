// Package promexport publishes live run metrics in the Prometheus text format.
package promexport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/loadmix/loadmix/internal/outcome"
)

const namespace = "loadmix"

// Exporter is a runner observer backed by its own registry.
type Exporter struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	planned  prometheus.Gauge
}

func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Recorded outcomes by operation and status.",
			},
			[]string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Latency of responses received, by operation.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"operation"},
		),
		planned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_requests",
			Help:      "Number of work items in the current plan.",
		}),
	}
	e.registry.MustRegister(e.requests, e.duration, e.planned)
	return e
}

// Observe records one outcome. It satisfies runner.Observer.
func (e *Exporter) Observe(o outcome.Outcome) {
	e.requests.WithLabelValues(o.Operation, o.Status.String()).Inc()
	if o.Status.IsHTTP() {
		e.duration.WithLabelValues(o.Operation).Observe(o.Latency.Seconds())
	}
}

// SetPlanned publishes the plan size.
func (e *Exporter) SetPlanned(n int) {
	e.planned.Set(float64(n))
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics in the background. The returned
// function shuts the server down.
func (e *Exporter) Serve(addr string, logger *zap.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return srv.Shutdown, nil
}
