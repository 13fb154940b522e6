package extract

import (
	"errors"
	"fmt"
)

// Record-level extraction outcomes.
var (
	// ErrRequiredFieldMissing marks a container that lacked a required field
	// (the product name). The container is skipped; the page is not failed.
	ErrRequiredFieldMissing = errors.New("required field missing")

	// ErrNoContainerMatch is informational: the container selector matched
	// nothing, which usually means "no results" and occasionally means the
	// source changed its markup.
	ErrNoContainerMatch = errors.New("no container match")
)

// RawListing is one container's worth of untyped strings, before any
// normalization. Empty strings mean "not found".
type RawListing struct {
	SourceID      string `json:"source_id"`
	Index         int    `json:"index"` // container position in DOM order
	Name          string `json:"name"`
	Price         string `json:"price"`
	OriginalPrice string `json:"original_price"`
	Image         string `json:"image"`
	Link          string `json:"link"`
	OutOfStock    bool   `json:"out_of_stock"` // an out-of-stock marker was present
}

// RecordError describes a skipped container.
type RecordError struct {
	Index int
	Field string
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Result is everything extracted from one document.
type Result struct {
	Containers int           // number of container matches
	Listings   []RawListing  // DOM order, skipped containers excluded
	Skipped    []RecordError // one per skipped container
	Logo       string        // raw document-level logo reference, if a rule was set
}
