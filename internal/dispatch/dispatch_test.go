package dispatch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/loadmix/loadmix/internal/catalog"
	"github.com/loadmix/loadmix/internal/config"
	"github.com/loadmix/loadmix/internal/dispatch"
	"github.com/loadmix/loadmix/internal/httpclient"
	"github.com/loadmix/loadmix/internal/outcome"
	"github.com/loadmix/loadmix/internal/plan"
)

func newDispatcher(t *testing.T, target string, pools catalog.Pools, logger *zap.Logger) *dispatch.Dispatcher {
	t.Helper()
	builder, err := httpclient.NewRequestBuilder(&config.Config{TargetURL: target})
	require.NoError(t, err)
	d, err := dispatch.New(dispatch.Options{
		Client:    httpclient.NewClient(time.Second, 4),
		Builder:   builder,
		Pools:     pools,
		Logger:    logger,
		LogErrors: logger != nil,
	})
	require.NoError(t, err)
	return d
}

func item(op *catalog.Operation) plan.WorkItem {
	return plan.WorkItem{Seq: 0, ID: "01TESTITEM", Op: op, Seed: 7}
}

func TestNewRequiresClientAndBuilder(t *testing.T) {
	_, err := dispatch.New(dispatch.Options{})
	assert.Error(t, err)
}

func TestExecuteRecordsSuccess(t *testing.T) {
	var gotBody []byte
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotID = r.Header.Get(httpclient.RequestIDHeader)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":5}`))
	}))
	defer srv.Close()

	o := newDispatcher(t, srv.URL, nil, nil).Execute(context.Background(), item(catalog.CreateUser))

	assert.Equal(t, outcome.Status(201), o.Status)
	assert.Equal(t, "create_user", o.Operation)
	assert.Equal(t, http.MethodPost, o.Method)
	assert.Equal(t, "/api/users", o.Endpoint)
	assert.Equal(t, `{"id":5}`, o.Response)
	assert.Equal(t, string(gotBody), o.Payload)
	assert.Equal(t, "01TESTITEM", gotID)
	assert.Positive(t, o.Latency)
	assert.False(t, o.Timestamp.IsZero())
}

func TestExecuteSamePayloadForSameSeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := newDispatcher(t, srv.URL, nil, nil)
	a := d.Execute(context.Background(), item(catalog.CreateProduct))
	b := d.Execute(context.Background(), item(catalog.CreateProduct))
	assert.Equal(t, a.Payload, b.Payload)
}

func TestExecuteSkipsWithoutNetworkWhenPoolEmpty(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		t.Errorf("target must not be called for a skipped item, got %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	pools := catalog.Pools{catalog.PoolUsers: {"1"}}
	o := newDispatcher(t, srv.URL, pools, nil).Execute(context.Background(), item(catalog.CreateOrder))

	assert.Equal(t, outcome.StatusSkipped, o.Status)
	assert.Equal(t, "create_order", o.Operation)
	assert.Equal(t, "/api/orders", o.Endpoint)
	assert.Zero(t, o.Latency)
	assert.Contains(t, o.Response, "products")
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestExecuteOrderUsesPoolIdentifiers(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	pools := catalog.Pools{
		catalog.PoolUsers:    {"41"},
		catalog.PoolProducts: {`"p-9"`},
	}
	o := newDispatcher(t, srv.URL, pools, nil).Execute(context.Background(), item(catalog.CreateOrder))

	require.Equal(t, outcome.Status(201), o.Status)
	assert.Contains(t, body, `"user":{"id":41}`)
	assert.Contains(t, body, `"product":{"id":"p-9"}`)
}

func TestExecuteServerErrorIsFailureNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	o := newDispatcher(t, srv.URL, nil, zap.New(core)).Execute(context.Background(), item(catalog.SearchUsers))

	assert.Equal(t, outcome.Status(500), o.Status)
	assert.Equal(t, outcome.MaxResponseRunes, len([]rune(o.Response)))
	assert.Equal(t, "name=User", o.Payload)
	assert.Equal(t, 1, logs.Len())
}

func TestExecuteTransportErrorBecomesError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	o := newDispatcher(t, target, nil, nil).Execute(context.Background(), item(catalog.CreateLog))

	assert.Equal(t, outcome.StatusError, o.Status)
	assert.NotEmpty(t, o.Response)
	assert.LessOrEqual(t, len([]rune(o.Response)), outcome.MaxResponseRunes)
}

func TestExecuteTimeoutBecomesError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	builder, err := httpclient.NewRequestBuilder(&config.Config{TargetURL: srv.URL})
	require.NoError(t, err)
	d, err := dispatch.New(dispatch.Options{
		Client:  httpclient.NewClient(50*time.Millisecond, 1),
		Builder: builder,
	})
	require.NoError(t, err)

	o := d.Execute(context.Background(), item(catalog.SearchProducts))
	assert.Equal(t, outcome.StatusError, o.Status)
	assert.GreaterOrEqual(t, o.Latency, 50*time.Millisecond)
}

func TestExecuteFinishesInFlightRequestAfterCancel(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-arrived
		cancel()
		close(release)
	}()

	o := newDispatcher(t, srv.URL, nil, nil).Execute(ctx, item(catalog.CreateLog))
	assert.Equal(t, outcome.Status(http.StatusCreated), o.Status, o.Response)
	assert.Error(t, ctx.Err())
}
