// Command extractsource applies one source's extraction rules to a page and
// prints what the aggregator would see. It is the tool for authoring and
// debugging source rules.
//
// Usage (saved page on stdin):
//
//	cat results.html | extractsource -source ryans
//
// Usage (live fetch through the source's URL template):
//
//	extractsource -config configs/sources.yaml -source startech -q "rtx 4060"
//
// Debug (print outer HTML for selector matches):
//
//	cat results.html | extractsource -selector ".product-thumb"
//
// Debug (print text for selector matches):
//
//	cat results.html | extractsource -selector ".price span" -text
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"pricecompare/internal/extract"
	"pricecompare/internal/fetch"
	"pricecompare/internal/normalize"
	"pricecompare/internal/registry"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// output is the JSON document printed for a rules run.
type output struct {
	Source     string               `json:"source"`
	URL        string               `json:"url"`
	Containers int                  `json:"containers"`
	Skipped    []string             `json:"skipped"`
	Logo       string               `json:"logo,omitempty"`
	Raw        []extract.RawListing `json:"raw,omitempty"`
	Listings   []normalize.Listing  `json:"listings"`
}

// run returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("extractsource", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "sources file (.json, .yaml); built-in sources when empty")
	sourceID := fs.String("source", "", "source id whose rules are applied (required unless -selector)")
	query := fs.String("q", "", "fetch the source's search page for this query instead of reading stdin")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for (not JSON)")
	onlyText := fs.Bool("text", false, "Debug: print text blocks for -selector matches")
	showRaw := fs.Bool("raw", false, "include raw extracted fields next to the canonical listings")
	timeout := fs.Duration("timeout", fetch.DefaultTimeout, "timeout for -q fetch")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var src registry.SourceConfig
	if *sourceID != "" {
		reg, err := loadRegistry(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "load sources: %v\n", err)
			return 2
		}
		src, err = reg.Get(*sourceID)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 2
		}
	} else if *debugSelector == "" {
		fmt.Fprintln(stderr, "missing -source")
		return 2
	}
	if *query != "" && *sourceID == "" {
		fmt.Fprintln(stderr, "-q requires -source")
		return 2
	}

	pageURL := ""
	var html string
	if *query != "" {
		f := fetch.New(fetch.Options{Timeout: *timeout, Client: httpClient})
		doc, err := f.Fetch(ctx, src, *query)
		if err != nil {
			fmt.Fprintf(stderr, "fetch: %v\n", err)
			return 1
		}
		html, pageURL = doc.Body, doc.URL
	} else {
		b, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "read stdin: %v\n", err)
			return 1
		}
		html = string(b)
		if *sourceID != "" {
			pageURL = src.Base().String()
		}
	}

	if *debugSelector != "" {
		if _, err := extract.DebugPrintSelector(stdout, html, *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	res, err := extract.Extract(src.ID, html, src.Rules)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}

	env := normalize.Env{
		Base:        src.Base(),
		PageURL:     pageURL,
		StockPolicy: src.StockPolicy,
		Now:         time.Now(),
	}
	out := output{
		Source:     src.ID,
		URL:        pageURL,
		Containers: res.Containers,
		Skipped:    make([]string, 0, len(res.Skipped)),
		Listings:   make([]normalize.Listing, 0, len(res.Listings)),
	}
	if res.Logo != "" {
		out.Logo = normalize.ResolveReference(res.Logo, env.Base, "")
	}
	for _, rerr := range res.Skipped {
		out.Skipped = append(out.Skipped, rerr.Error())
	}
	for _, raw := range res.Listings {
		out.Listings = append(out.Listings, normalize.Normalize(raw, env))
	}
	if *showRaw {
		out.Raw = res.Listings
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "encode json: %v\n", err)
		return 1
	}
	return 0
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		reg, _, err := registry.Default()
		return reg, err
	}
	reg, _, err := registry.Load(path)
	return reg, err
}
