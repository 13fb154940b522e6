// Package fetch retrieves one search-results document per source.
//
// A Fetcher makes exactly one GET per call with a fixed timeout and never
// retries. Every failure comes back as a *FetchError whose Kind tells the
// caller whether the source timed out, answered with a bad status, or could
// not be reached at all.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"pricecompare/internal/metrics"
	"pricecompare/internal/registry"

	"golang.org/x/net/html/charset"
)

// Defaults applied by New.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 8 << 20
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Kind classifies fetch failures.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindHTTPStatus Kind = "http_status"
	KindTransport  Kind = "transport"
)

// FetchError is returned for every failed fetch.
type FetchError struct {
	Kind       Kind
	StatusCode int // set for KindHTTPStatus
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Document is a fetched, UTF-8 decoded search-results page.
type Document struct {
	SourceID    string
	URL         string
	StatusCode  int
	ContentType string
	Body        string
	Truncated   bool // Body was cut at the size cap
	FetchedAt   time.Time
}

// Options configures a Fetcher. Zero values pick the package defaults.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64

	// Client backs the "http" transport. nil means http.DefaultClient.
	Client *http.Client

	// Transports overrides transports by name ("http", "browser").
	Transports map[string]Transport

	now func() time.Time
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	timeout  time.Duration
	maxBody  int64
	defaults http.Header
	now      func() time.Time

	mu         sync.Mutex
	transports map[string]Transport
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		timeout:    opts.Timeout,
		maxBody:    opts.MaxBodyBytes,
		now:        opts.now,
		transports: make(map[string]Transport, 2),
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxBody <= 0 {
		f.maxBody = DefaultMaxBodyBytes
	}
	if f.now == nil {
		f.now = time.Now
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	f.defaults = http.Header{}
	f.defaults.Set("User-Agent", ua)
	f.defaults.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	f.defaults.Set("Accept-Language", "en-US,en;q=0.9")

	f.transports[registry.TransportHTTP] = NewHTTPTransport(opts.Client)
	for name, t := range opts.Transports {
		f.transports[name] = t
	}
	return f
}

// Timeout reports the per-request timeout in effect.
func (f *Fetcher) Timeout() time.Duration { return f.timeout }

// Fetch performs the single GET for src and query.
func (f *Fetcher) Fetch(ctx context.Context, src registry.SourceConfig, query string) (*Document, error) {
	target := src.SearchURL(query)
	start := f.now()

	doc, status, err := f.fetch(ctx, src, target)

	var kind string
	var fe *FetchError
	if errors.As(err, &fe) {
		kind = string(fe.Kind)
	}
	var size int64
	if doc != nil {
		size = int64(len(doc.Body))
	}
	metrics.RecordHTTP(src.ID, status, kind, f.now().Sub(start), size)

	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *Fetcher) fetch(ctx context.Context, src registry.SourceConfig, target string) (*Document, int, error) {
	t, err := f.transport(src.Transport)
	if err != nil {
		return nil, 0, &FetchError{Kind: KindTransport, URL: target, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := t.Get(ctx, target, f.headers(src))
	if err != nil {
		return nil, 0, &FetchError{Kind: classify(ctx, err), URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, &FetchError{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			URL:        target,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, resp.StatusCode, &FetchError{Kind: classify(ctx, err), URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	truncated := int64(len(raw)) > f.maxBody
	if truncated {
		raw = raw[:f.maxBody]
	}

	contentType := resp.Header.Get("Content-Type")
	return &Document{
		SourceID:    src.ID,
		URL:         target,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        decodeBody(raw, contentType),
		Truncated:   truncated,
		FetchedAt:   f.now(),
	}, resp.StatusCode, nil
}

// headers merges the default header set with the source's own headers.
// Source headers win.
func (f *Fetcher) headers(src registry.SourceConfig) http.Header {
	h := f.defaults.Clone()
	for k, v := range src.Headers {
		h.Set(k, v)
	}
	return h
}

func (f *Fetcher) transport(name string) (Transport, error) {
	if name == "" {
		name = registry.TransportHTTP
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.transports[name]; ok {
		return t, nil
	}
	if name != registry.TransportBrowser {
		return nil, fmt.Errorf("unknown transport %q", name)
	}
	bt, err := NewBrowserTransport(f.timeout)
	if err != nil {
		return nil, err
	}
	f.transports[name] = bt
	return bt, nil
}

// classify maps a transport error to a failure kind.
func classify(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// decodeBody converts raw to UTF-8 using the Content-Type charset or, when
// absent, the document's own <meta> declaration. Undecodable input is
// returned as-is.
func decodeBody(raw []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(b)
}
