// Package dispatch executes work items against the target over HTTP.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loadmix/loadmix/internal/catalog"
	"github.com/loadmix/loadmix/internal/httpclient"
	"github.com/loadmix/loadmix/internal/outcome"
	"github.com/loadmix/loadmix/internal/plan"
	"github.com/loadmix/loadmix/internal/tracing"
)

const maxBodyReadSize = 1024 * 1024

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure a Dispatcher.
type Options struct {
	Client    Doer
	Builder   *httpclient.RequestBuilder
	Pools     catalog.Pools
	Tracing   *tracing.Provider
	Logger    *zap.Logger
	LogErrors bool
}

// Dispatcher turns work items into outcomes. It is safe for concurrent use:
// the pools are read-only and every item builds its own rand source.
type Dispatcher struct {
	opt Options
}

func New(opt Options) (*Dispatcher, error) {
	if opt.Client == nil {
		return nil, errors.New("dispatch: client is required")
	}
	if opt.Builder == nil {
		return nil, errors.New("dispatch: request builder is required")
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Dispatcher{opt: opt}, nil
}

// Execute performs one work item. Failures are recorded in the outcome.
func (d *Dispatcher) Execute(ctx context.Context, item plan.WorkItem) outcome.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	// A pulled item runs to completion. Cancellation only stops the runner
	// from pulling more; the client timeout bounds the request itself.
	ctx = context.WithoutCancel(ctx)
	o := outcome.Outcome{
		Timestamp: time.Now(),
		RequestID: item.ID,
	}
	if item.Op == nil {
		return d.fail(o, errors.New("work item has no operation"))
	}
	o.Operation = item.Op.Name
	o.Method = item.Op.Method
	o.Endpoint = item.Op.Path

	creq, err := item.Op.Build(rand.New(rand.NewSource(item.Seed)), d.opt.Pools)
	if err != nil {
		var missing *catalog.MissingPoolError
		if errors.As(err, &missing) {
			o.Status = outcome.StatusSkipped
			o.Response = outcome.Truncate(err.Error())
			return o
		}
		return d.fail(o, fmt.Errorf("build payload: %w", err))
	}
	o.Payload = creq.Payload()

	ctx, span := tracing.StartRequestSpan(ctx, d.opt.Tracing.Tracer(), item.Op.Name, creq.Method, item.ID)

	req, err := d.opt.Builder.Build(ctx, creq, item.ID)
	if err != nil {
		tracing.EndSpan(span, err)
		return d.fail(o, fmt.Errorf("build request: %w", err))
	}
	if d.opt.Tracing.ShouldPropagate() {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	o.Timestamp = time.Now()
	resp, err := d.opt.Client.Do(req)
	if err != nil {
		o.Latency = time.Since(o.Timestamp)
		tracing.EndSpan(span, err)
		return d.fail(o, err)
	}
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	o.Latency = time.Since(o.Timestamp)
	resp.Body.Close()

	if readErr != nil {
		tracing.EndSpan(span, readErr, tracing.StatusAttr(resp.StatusCode))
		return d.fail(o, fmt.Errorf("read body: %w", readErr))
	}

	o.Status = outcome.Status(resp.StatusCode)
	o.Response = outcome.Truncate(strings.TrimSpace(string(body)))

	var spanErr error
	if !o.Status.Success() {
		spanErr = fmt.Errorf("status %d", resp.StatusCode)
		if d.opt.LogErrors {
			d.opt.Logger.Warn("request failed",
				zap.String("request_id", item.ID),
				zap.String("operation", o.Operation),
				zap.Int("status", resp.StatusCode),
				zap.String("response", o.Response))
		}
	}
	tracing.EndSpan(span, spanErr, tracing.StatusAttr(resp.StatusCode))
	return o
}

func (d *Dispatcher) fail(o outcome.Outcome, err error) outcome.Outcome {
	o.Status = outcome.StatusError
	o.Response = outcome.Truncate(err.Error())
	if d.opt.LogErrors {
		d.opt.Logger.Warn("request error",
			zap.String("request_id", o.RequestID),
			zap.String("operation", o.Operation),
			zap.Error(err))
	}
	return o
}
