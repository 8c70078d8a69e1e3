package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loadmix/loadmix/internal/catalog"
	"github.com/loadmix/loadmix/internal/config"
)

// RequestIDHeader carries the work item id on every request.
const RequestIDHeader = "X-Request-Id"

// RequestBuilder turns catalog requests into *http.Request values against a
// fixed base URL.
type RequestBuilder struct {
	base    *url.URL
	headers http.Header
}

func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	base, err := url.Parse(strings.TrimRight(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("target URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("target URL %q must include scheme and host", target)
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)

		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}

		headers.Set(canonicalKey, value)
	}

	return &RequestBuilder{
		base:    base,
		headers: headers,
	}, nil
}

// URL resolves a path and query against the base URL.
func (b *RequestBuilder) URL(path string, query url.Values) string {
	u := *b.base
	u.Path = b.base.Path + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Build creates the HTTP request for a catalog request.
func (b *RequestBuilder) Build(ctx context.Context, creq catalog.Request, requestID string) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(creq.Method))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(creq.Body) > 0 {
		body = bytes.NewReader(creq.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.URL(creq.Path, creq.Query), body)
	if err != nil {
		return nil, err
	}

	req.Header = make(http.Header, len(b.headers)+2)
	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}
	if len(creq.Body) > 0 {
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		payload := creq.Body
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	return req, nil
}

// NewClient returns a client whose connection pool keeps up to concurrency
// idle connections per host, so K workers can reuse connections without
// waiting on each other. There is no cap on active connections per host.
func NewClient(timeout time.Duration, concurrency int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if concurrency < 1 {
		concurrency = 1
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	maxIdle := concurrency
	if maxIdle < 256 {
		maxIdle = 256
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   concurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
