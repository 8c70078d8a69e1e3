package promexport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmix/loadmix/internal/outcome"
)

func TestObserveCountsByOperationAndStatus(t *testing.T) {
	e := New()
	e.Observe(outcome.Outcome{Operation: "create_user", Status: 201, Latency: 5 * time.Millisecond})
	e.Observe(outcome.Outcome{Operation: "create_user", Status: 201, Latency: 7 * time.Millisecond})
	e.Observe(outcome.Outcome{Operation: "create_order", Status: outcome.StatusSkipped})
	e.Observe(outcome.Outcome{Operation: "create_log", Status: outcome.StatusError})

	assert.Equal(t, 2.0, testutil.ToFloat64(e.requests.WithLabelValues("create_user", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.requests.WithLabelValues("create_order", "SKIPPED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.requests.WithLabelValues("create_log", "ERROR")))

	// Only responses are timed.
	assert.Equal(t, 1, testutil.CollectAndCount(e.duration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	e := New()
	e.SetPlanned(600)
	e.Observe(outcome.Outcome{Operation: "search_users", Status: 200, Latency: time.Millisecond})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `loadmix_requests_total{operation="search_users",status="200"} 1`)
	assert.Contains(t, text, `loadmix_request_duration_seconds_count{operation="search_users"} 1`)
	assert.Contains(t, text, `loadmix_planned_requests 600`)
}

func TestServeAndShutdown(t *testing.T) {
	e := New()
	shutdown, err := e.Serve("127.0.0.1:0", nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestServeRejectsBadAddress(t *testing.T) {
	_, err := New().Serve("not-an-address", nil)
	assert.Error(t, err)
}
