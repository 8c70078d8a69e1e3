// Package httpclient provides HTTP client utilities for loadmix.
//
// # Request Building
//
// [NewRequestBuilder] binds the target base URL and any static headers from
// configuration. [RequestBuilder.Build] then turns a catalog request into an
// *http.Request:
//
//	builder, err := httpclient.NewRequestBuilder(cfg)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, catalogRequest, item.ID)
//
// Every request carries the work item id in the X-Request-Id header.
//
// # HTTP Client
//
// [NewClient] creates a client with an explicit per-request timeout and a
// connection pool sized to the worker count so every worker can keep a
// connection alive:
//
//	client := httpclient.NewClient(30*time.Second, cfg.Concurrency)
package httpclient
