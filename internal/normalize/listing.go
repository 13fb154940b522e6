package normalize

import (
	"net/url"
	"time"

	"pricecompare/internal/extract"
)

// ImagePlaceholder is served when a listing has no usable image reference.
const ImagePlaceholder = "/static/img/placeholder.png"

// Listing is the canonical, source-independent product record.
type Listing struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price"`
	Discount      float64   `json:"discount"`
	Image         string    `json:"image"`
	URL           string    `json:"url"`
	InStock       bool      `json:"in_stock"`
	ExtractedAt   time.Time `json:"extracted_at"`
}

// Env carries the per-document context Normalize needs.
type Env struct {
	Base        *url.URL  // relative references resolve against this
	PageURL     string    // fallback product link: the search page itself
	StockPolicy string    // registry stock policy, "" for the default
	Now         time.Time // stamped into ExtractedAt
}

// Normalize converts one raw listing into its canonical form.
func Normalize(raw extract.RawListing, env Env) Listing {
	price := ParsePrice(raw.Price)

	var original *float64
	if op := ParsePrice(raw.OriginalPrice); op > price && price > 0 {
		original = &op
	}

	discount := 0.0
	if original != nil {
		discount = ComputeDiscount(*original, price)
	}

	link := ResolveReference(raw.Link, env.Base, env.PageURL)
	name := CleanText(raw.Name)

	return Listing{
		ID:            Fingerprint(raw.SourceID, name, link),
		Source:        raw.SourceID,
		Name:          name,
		Price:         price,
		OriginalPrice: original,
		Discount:      discount,
		Image:         ResolveReference(raw.Image, env.Base, ImagePlaceholder),
		URL:           link,
		InStock:       InferStockPolicy(env.StockPolicy, raw.OutOfStock, price),
		ExtractedAt:   env.Now.UTC(),
	}
}
