package aggregate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"pricecompare/internal/extract"
	"pricecompare/internal/fetch"
	"pricecompare/internal/metrics"
	"pricecompare/internal/normalize"
	"pricecompare/internal/registry"
)

// DefaultLogo is the logo path used when neither the page nor the
// configuration provides one.
func DefaultLogo(id string) string {
	return "/static/logos/" + id + ".png"
}

func configuredLogo(src registry.SourceConfig) string {
	if src.Logo != "" {
		return src.Logo
	}
	return DefaultLogo(src.ID)
}

func failedResult(src registry.SourceConfig, stage Stage, kind FailureKind, code int, msg string) SourceResult {
	return SourceResult{
		Source:   src.ID,
		Name:     src.Name,
		Logo:     configuredLogo(src),
		Status:   StatusFailed,
		Listings: []normalize.Listing{},
		Failure:  &Failure{Stage: stage, Kind: kind, StatusCode: code, Message: msg},
	}
}

// runPipeline drives one source through fetching, extracting and
// normalizing. It always returns a result: errors and panics are converted
// into a failed SourceResult tagged with the stage that was reached.
func (a *Aggregator) runPipeline(ctx context.Context, src registry.SourceConfig, query string) (res SourceResult) {
	start := a.now()
	stage := StagePending

	defer func() {
		if r := recover(); r != nil {
			a.logger.Printf("source=%s stage=%s status=failed kind=%s panic=%v\n%s", src.ID, stage, KindInternal, r, debug.Stack())
			res = failedResult(src, stage, KindInternal, 0, fmt.Sprintf("panic: %v", r))
		}
		res.DurationMS = a.now().Sub(start).Milliseconds()

		at := StageDone
		if res.Failure != nil {
			at = res.Failure.Stage
		}
		metrics.RecordPipeline(src.ID, string(res.Status), string(at), a.now().Sub(start), len(res.Listings), res.Skipped)
	}()

	stage = StageFetching
	doc, err := a.fetcher.Fetch(ctx, src, query)
	if err != nil {
		kind, code := classifyFetch(ctx, err)
		a.logger.Printf("source=%s stage=%s status=failed kind=%s err=%v", src.ID, stage, kind, err)
		return failedResult(src, stage, kind, code, err.Error())
	}

	stage = StageExtracting
	ext, err := extract.Extract(src.ID, doc.Body, src.Rules)
	if err != nil {
		a.logger.Printf("source=%s stage=%s status=failed kind=%s err=%v", src.ID, stage, KindParse, err)
		return failedResult(src, stage, KindParse, 0, err.Error())
	}
	if ext.Containers == 0 {
		a.logger.Printf("source=%s stage=%s containers=0 note=%v", src.ID, stage, extract.ErrNoContainerMatch)
	}
	for _, rerr := range ext.Skipped {
		a.logger.Printf("source=%s stage=%s skipped %v", src.ID, stage, rerr)
	}

	stage = StageNormalizing
	base := src.Base()
	env := normalize.Env{
		Base:        base,
		PageURL:     doc.URL,
		StockPolicy: src.StockPolicy,
		Now:         a.now(),
	}

	listings := make([]normalize.Listing, 0, len(ext.Listings))
	for _, raw := range ext.Listings {
		listings = append(listings, normalize.Normalize(raw, env))
	}

	status := StatusSuccess
	if len(ext.Skipped) > 0 || doc.Truncated {
		status = StatusPartial
	}
	if doc.Truncated {
		a.logger.Printf("source=%s stage=%s truncated=true bytes=%d", src.ID, StageFetching, len(doc.Body))
	}

	logo := configuredLogo(src)
	if ext.Logo != "" {
		logo = normalize.ResolveReference(ext.Logo, base, logo)
	}

	a.logger.Printf("source=%s stage=%s status=%s listings=%d skipped=%d", src.ID, StageDone, status, len(listings), len(ext.Skipped))
	return SourceResult{
		Source:    src.ID,
		Name:      src.Name,
		Logo:      logo,
		Status:    status,
		Listings:  listings,
		Skipped:   len(ext.Skipped),
		Truncated: doc.Truncated,
	}
}

// classifyFetch maps a fetch error onto a failure kind and status code.
func classifyFetch(ctx context.Context, err error) (FailureKind, int) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return KindCanceled, 0
	}
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetch.KindTimeout:
			return KindTimeout, 0
		case fetch.KindHTTPStatus:
			return KindHTTPStatus, fe.StatusCode
		default:
			return KindTransport, 0
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, 0
	}
	return KindTransport, 0
}
