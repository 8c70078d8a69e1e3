// Package prereq fetches the identifiers that dependent operations reference
// before the main run starts.
package prereq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/loadmix/loadmix/internal/catalog"
)

// idPath selects the id of every element in a top-level JSON array.
const idPath = "#.id"

// maxBody caps how much of a bootstrap response is read.
const maxBody = 64 << 20

// Source describes the read used to fill one pool.
type Source struct {
	Kind catalog.PoolKind
	Path string
}

// DefaultSources lists the bootstrap reads, one per pool kind.
func DefaultSources() []Source {
	return []Source{
		{Kind: catalog.PoolUsers, Path: catalog.SearchUsers.Path},
		{Kind: catalog.PoolProducts, Path: catalog.SearchProducts.Path},
	}
}

// Report summarizes one bootstrap read.
type Report struct {
	Kind     catalog.PoolKind
	Status   int
	Count    int
	Duration time.Duration
	Err      error
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLBuilder resolves a path and query against the target base URL.
type URLBuilder interface {
	URL(path string, query url.Values) string
}

// Resolver runs the bootstrap reads.
type Resolver struct {
	client  Doer
	urls    URLBuilder
	sources []Source
	logger  *zap.Logger
}

func NewResolver(client Doer, urls URLBuilder, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client:  client,
		urls:    urls,
		sources: DefaultSources(),
		logger:  logger,
	}
}

// WithSources replaces the bootstrap reads.
func (r *Resolver) WithSources(sources []Source) *Resolver {
	r.sources = sources
	return r
}

// Resolve fetches every pool. A failed read leaves its pool empty; it never
// returns an error for target-side failures.
func (r *Resolver) Resolve(ctx context.Context) (catalog.Pools, []Report) {
	pools := make(catalog.Pools, len(r.sources))
	reports := make([]Report, 0, len(r.sources))
	for _, src := range r.sources {
		ids, rep := r.fetch(ctx, src)
		pools[src.Kind] = ids
		reports = append(reports, rep)
		if rep.Err != nil {
			r.logger.Warn("bootstrap read failed, pool is empty",
				zap.String("pool", string(src.Kind)),
				zap.Int("status", rep.Status),
				zap.Error(rep.Err))
			continue
		}
		r.logger.Debug("bootstrap read complete",
			zap.String("pool", string(src.Kind)),
			zap.Int("identifiers", rep.Count),
			zap.Duration("duration", rep.Duration))
	}
	return pools, reports
}

func (r *Resolver) fetch(ctx context.Context, src Source) (ids []catalog.Identifier, rep Report) {
	rep.Kind = src.Kind
	start := time.Now()
	defer func() { rep.Duration = time.Since(start) }()

	target := r.urls.URL(src.Path, url.Values{"name": []string{""}})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		rep.Err = fmt.Errorf("build request: %w", err)
		return nil, rep
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		rep.Err = err
		return nil, rep
	}
	defer resp.Body.Close()
	rep.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		rep.Err = fmt.Errorf("read body: %w", err)
		return nil, rep
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rep.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
		return nil, rep
	}

	ids, err = ExtractIDs(body)
	if err != nil {
		rep.Err = err
		return nil, rep
	}
	rep.Count = len(ids)
	return ids, rep
}

// ExtractIDs returns the id of every record in a JSON array, skipping records
// whose id is absent or null.
func ExtractIDs(body []byte) ([]catalog.Identifier, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("response is not a JSON array")
	}
	var ids []catalog.Identifier
	root.Get(idPath).ForEach(func(_, value gjson.Result) bool {
		if value.Type == gjson.Null || value.Raw == "" {
			return true
		}
		ids = append(ids, catalog.Identifier(value.Raw))
		return true
	})
	return ids, nil
}
