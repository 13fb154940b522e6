package normalize

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"pricecompare/internal/extract"
	"pricecompare/internal/registry"
)

// TestParsePrice covers currency glyphs, separators, foreign digits and the
// unparsable-means-zero rule.
func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{"৳1,250.00", 1250},
		{"Tk. 78,500", 78500},
		{"১২৫০", 1250},
		{"৳ ১,২৫০.৫০", 1250.5},
		{"１２３", 123},
		{"99.999", 100},
		{"Call for price", 0},
		{"", 0},
		{"1.250.000", 0},
		{"-45", 45},
	}
	for _, tc := range cases {
		if got := ParsePrice(tc.in); got != tc.want {
			t.Fatalf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// TestComputeDiscount covers the rounding and the zero cases.
func TestComputeDiscount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		original, current, want float64
	}{
		{1000, 800, 20.0},
		{0, 800, 0},
		{800, 800, 0},
		{700, 800, 0},
		{1500, 1000, 33.3},
		{1000, 0, 0},
		{100000, 1, 99.9},
	}
	for _, tc := range cases {
		if got := ComputeDiscount(tc.original, tc.current); got != tc.want {
			t.Fatalf("ComputeDiscount(%v, %v) = %v, want %v", tc.original, tc.current, got, tc.want)
		}
	}
}

// TestInferStockPolicy covers the default heuristic and both overrides.
func TestInferStockPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		policy string
		marker bool
		price  float64
		want   bool
	}{
		{"", false, 10, true},
		{"", false, 0, false},
		{"", true, 10, false},
		{registry.StockTwoSignal, true, 0, false},
		{registry.StockMarker, false, 0, true},
		{registry.StockMarker, true, 10, false},
		{registry.StockPrice, true, 10, true},
		{registry.StockPrice, false, 0, false},
	}
	for _, tc := range cases {
		if got := InferStockPolicy(tc.policy, tc.marker, tc.price); got != tc.want {
			t.Fatalf("InferStockPolicy(%q, %v, %v) = %v, want %v", tc.policy, tc.marker, tc.price, got, tc.want)
		}
	}
}

// TestResolveReference covers relative, protocol-relative and rejected refs.
func TestResolveReference(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://shop.example/search?q=x")
	const fb = "FALLBACK"

	cases := []struct {
		raw  string
		want string
	}{
		{"/p/1", "https://shop.example/p/1"},
		{"p/2", "https://shop.example/p/2"},
		{"//cdn.example/i.jpg", "https://cdn.example/i.jpg"},
		{"http://other.example/x", "http://other.example/x"},
		{"  ", fb},
		{"#", fb},
		{"javascript:void(0)", fb},
		{"data:image/png;base64,AAAA", fb},
		{"%zz", fb},
	}
	for _, tc := range cases {
		if got := ResolveReference(tc.raw, base, fb); got != tc.want {
			t.Fatalf("ResolveReference(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}

	if got := ResolveReference("/p/1", nil, fb); got != fb {
		t.Fatalf("relative without base should fall back, got %q", got)
	}
}

// TestCleanText verifies whitespace collapse and NFKC folding.
func TestCleanText(t *testing.T) {
	t.Parallel()

	if got := CleanText("  Ｇａｍｉｎｇ\n\t Laptop  "); got != "Gaming Laptop" {
		t.Fatalf("CleanText = %q", got)
	}
}

// TestFingerprint verifies stability and sensitivity to identity fields.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint("shop", "Laptop", "https://x/p/1")
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a != Fingerprint("shop", "LAPTOP", "https://x/p/1") {
		t.Fatalf("expected case-insensitive name")
	}
	if a == Fingerprint("other", "Laptop", "https://x/p/1") {
		t.Fatalf("expected source to change the id")
	}
}

// TestNormalize_FullListing verifies the composed canonical listing.
func TestNormalize_FullListing(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("https://shop.example/")
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.FixedZone("BDT", 6*3600))
	env := Env{Base: base, PageURL: "https://shop.example/search?q=laptop", Now: now}

	got := Normalize(extract.RawListing{
		SourceID:      "shop",
		Name:          " Gaming  Laptop ",
		Price:         "৳800",
		OriginalPrice: "৳1,000",
		Image:         "//cdn.example/1.jpg",
		Link:          "/p/1",
	}, env)

	original := 1000.0
	want := Listing{
		ID:            Fingerprint("shop", "Gaming Laptop", "https://shop.example/p/1"),
		Source:        "shop",
		Name:          "Gaming Laptop",
		Price:         800,
		OriginalPrice: &original,
		Discount:      20,
		Image:         "https://cdn.example/1.jpg",
		URL:           "https://shop.example/p/1",
		InStock:       true,
		ExtractedAt:   now.UTC(),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize:\n got %+v\nwant %+v", got, want)
	}
}

// TestNormalize_MissingPrice verifies a listing without a price is kept with
// price 0, no original price and out of stock.
func TestNormalize_MissingPrice(t *testing.T) {
	t.Parallel()

	got := Normalize(extract.RawListing{
		SourceID:      "shop",
		Name:          "Mystery Box",
		OriginalPrice: "৳500",
	}, Env{PageURL: "https://shop.example/search?q=box"})

	if got.Price != 0 || got.OriginalPrice != nil || got.Discount != 0 || got.InStock {
		t.Fatalf("unexpected listing: %+v", got)
	}
	if got.Image != ImagePlaceholder || got.URL != "https://shop.example/search?q=box" {
		t.Fatalf("expected placeholders, got image=%q url=%q", got.Image, got.URL)
	}
}

// TestNormalize_OriginalNotHigher verifies a stale "old price" at or below
// the current price is dropped.
func TestNormalize_OriginalNotHigher(t *testing.T) {
	t.Parallel()

	got := Normalize(extract.RawListing{SourceID: "s", Name: "n", Price: "900", OriginalPrice: "850"}, Env{})
	if got.OriginalPrice != nil || got.Discount != 0 {
		t.Fatalf("expected original dropped, got %+v", got)
	}
}
