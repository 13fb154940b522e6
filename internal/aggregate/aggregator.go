// Package aggregate runs one fetch → extract → normalize pipeline per source
// in parallel and merges the outcomes into a single, order-stable Result.
//
// Failure isolation is the point of this package: a source that times out,
// answers 5xx, serves unexpected markup or even panics becomes a failed
// SourceResult; it never aborts its siblings or the aggregation.
package aggregate

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"pricecompare/internal/fetch"
	"pricecompare/internal/normalize"
	"pricecompare/internal/registry"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Defaults applied by New.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// DocumentFetcher is the fetch step of a pipeline. *fetch.Fetcher satisfies it.
type DocumentFetcher interface {
	Fetch(ctx context.Context, src registry.SourceConfig, query string) (*fetch.Document, error)
}

// Logger is the minimal logging surface used by the aggregator.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures an Aggregator. Zero values pick the defaults.
type Options struct {
	// Concurrency bounds the number of pipelines running at once.
	Concurrency int

	// Timeout bounds the whole aggregation. Sources still running when it
	// elapses are reported as timed out.
	Timeout time.Duration

	Logger Logger

	// Now and NewID are clock and id seams for deterministic output.
	Now   func() time.Time
	NewID func() string
}

// Aggregator is safe for concurrent use; each Aggregate call is independent.
type Aggregator struct {
	reg         *registry.Registry
	fetcher     DocumentFetcher
	concurrency int
	timeout     time.Duration
	logger      Logger
	now         func() time.Time
	newID       func() string
}

// New creates an Aggregator over reg.
func New(reg *registry.Registry, fetcher DocumentFetcher, opts Options) *Aggregator {
	a := &Aggregator{
		reg:         reg,
		fetcher:     fetcher,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if a.concurrency <= 0 {
		a.concurrency = DefaultConcurrency
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.logger == nil {
		a.logger = log.New(io.Discard, "", 0)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	return a
}

// Registry returns the registry the aggregator was built with.
func (a *Aggregator) Registry() *registry.Registry { return a.reg }

// Timeout reports the aggregation deadline in effect after defaults.
func (a *Aggregator) Timeout() time.Duration { return a.timeout }

type planned struct {
	id  string
	cfg *registry.SourceConfig // nil for ids the registry does not know
}

// plan resolves the requested ids: registered sources first in registry
// order, then unknown ids in request order. Duplicates collapse. An empty
// request means every registered source.
func (a *Aggregator) plan(ids []string) []planned {
	if len(ids) == 0 {
		ids = a.reg.IDs()
	}

	seen := make(map[string]bool, len(ids))
	var known, unknown []planned
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		cfg, err := a.reg.Get(id)
		if err != nil {
			unknown = append(unknown, planned{id: id})
			continue
		}
		known = append(known, planned{id: id, cfg: &cfg})
	}

	ordered := make([]planned, 0, len(known)+len(unknown))
	for _, id := range a.reg.IDs() {
		for _, p := range known {
			if p.id == id {
				ordered = append(ordered, p)
				break
			}
		}
	}
	return append(ordered, unknown...)
}

type indexed struct {
	index  int
	result SourceResult
}

// Aggregate runs every requested source and returns once all of them have
// finished or the aggregation timeout elapses, whichever comes first.
func (a *Aggregator) Aggregate(ctx context.Context, query string, sourceIDs []string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	plan := a.plan(sourceIDs)
	started := a.now()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	slots := make([]*SourceResult, len(plan))
	results := make(chan indexed, len(plan))
	sem := semaphore.NewWeighted(int64(a.concurrency))

	pending := 0
	for i, p := range plan {
		if p.cfg == nil {
			r := unknownSource(p.id)
			slots[i] = &r
			a.logger.Printf("source=%s status=failed kind=%s", p.id, KindUnknownSource)
			continue
		}
		pending++
		go func(i int, src registry.SourceConfig) {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- indexed{i, interrupted(src, StageFetching, ctx.Err())}
				return
			}
			defer sem.Release(1)
			results <- indexed{i, a.runPipeline(ctx, src, query)}
		}(i, *p.cfg)
	}

collect:
	for pending > 0 {
		select {
		case r := <-results:
			slots[r.index] = &r.result
			pending--
		case <-ctx.Done():
			break collect
		}
	}

	// Keep results that finished in the same instant the deadline fired.
drain:
	for pending > 0 {
		select {
		case r := <-results:
			slots[r.index] = &r.result
			pending--
		default:
			break drain
		}
	}

	res := &Result{
		ID:          a.newID(),
		Query:       query,
		GeneratedAt: started.UTC(),
		Sources:     make([]SourceResult, len(plan)),
	}
	for i, s := range slots {
		if s == nil {
			r := interrupted(*plan[i].cfg, StageFetching, ctx.Err())
			a.logger.Printf("source=%s stage=%s status=failed kind=%s", r.Source, StageFetching, r.Failure.Kind)
			s = &r
		}
		res.Sources[i] = *s
		res.TotalListings += len(s.Listings)
	}
	res.Cheapest = cheapest(res.Sources)
	return res, nil
}

func unknownSource(id string) SourceResult {
	return SourceResult{
		Source:   id,
		Name:     id,
		Logo:     DefaultLogo(id),
		Status:   StatusFailed,
		Listings: []normalize.Listing{},
		Failure: &Failure{
			Stage:   StagePending,
			Kind:    KindUnknownSource,
			Message: registry.ErrNotFound.Error(),
		},
	}
}

// interrupted builds the result for a pipeline cut off by ctx.
func interrupted(src registry.SourceConfig, stage Stage, err error) SourceResult {
	kind := KindTimeout
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
	}
	msg := "aggregation deadline exceeded"
	if err != nil {
		msg = err.Error()
	}
	return failedResult(src, stage, kind, 0, msg)
}

// cheapest picks the lowest in-stock price. Ties keep the earlier listing.
func cheapest(sources []SourceResult) *Cheapest {
	var best *Cheapest
	for _, s := range sources {
		for _, l := range s.Listings {
			if !l.InStock || l.Price <= 0 {
				continue
			}
			if best == nil || l.Price < best.Price {
				best = &Cheapest{Source: s.Source, ListingID: l.ID, Name: l.Name, Price: l.Price, URL: l.URL}
			}
		}
	}
	return best
}
