package aggregate

import (
	"errors"
	"time"

	"pricecompare/internal/normalize"
)

// ErrEmptyQuery is returned by Aggregate for a blank search term. It is the
// only error Aggregate returns; per-source problems live in SourceResult.
var ErrEmptyQuery = errors.New("query is empty")

// Status summarises one source's outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial" // containers skipped or document truncated
	StatusFailed  Status = "failed"
)

// Stage is where a source pipeline was when it finished.
type Stage string

const (
	StagePending     Stage = "pending"
	StageFetching    Stage = "fetching"
	StageExtracting  Stage = "extracting"
	StageNormalizing Stage = "normalizing"
	StageDone        Stage = "done"
)

// FailureKind classifies a failed source.
type FailureKind string

const (
	KindTimeout       FailureKind = "timeout"
	KindHTTPStatus    FailureKind = "http_status"
	KindTransport     FailureKind = "transport"
	KindUnknownSource FailureKind = "unknown_source"
	KindParse         FailureKind = "parse"
	KindInternal      FailureKind = "internal"
	KindCanceled      FailureKind = "canceled"
)

// Failure describes why a source produced no listings.
type Failure struct {
	Stage      Stage       `json:"stage"`
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status_code"` // 0 unless Kind is http_status
	Message    string      `json:"message"`
}

// SourceResult is one source's contribution. Listings is never nil so the
// JSON shape is identical for successful and failed sources.
type SourceResult struct {
	Source     string              `json:"source"`
	Name       string              `json:"name"`
	Logo       string              `json:"logo"`
	Status     Status              `json:"status"`
	Listings   []normalize.Listing `json:"listings"`
	Skipped    int                 `json:"skipped"`
	Truncated  bool                `json:"truncated"` // document exceeded the body cap
	Failure    *Failure            `json:"failure"`
	DurationMS int64               `json:"duration_ms"`
}

// Cheapest points at the lowest-priced in-stock listing of a Result.
type Cheapest struct {
	Source    string  `json:"source"`
	ListingID string  `json:"listing_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	URL       string  `json:"url"`
}

// Result is the merged answer for one query.
type Result struct {
	ID            string         `json:"id"`
	Query         string         `json:"query"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Sources       []SourceResult `json:"sources"`
	TotalListings int            `json:"total_listings"`
	Cheapest      *Cheapest      `json:"cheapest"`
}

// Failed returns the results whose status is StatusFailed.
func (r *Result) Failed() []SourceResult {
	var out []SourceResult
	for _, s := range r.Sources {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}
