package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pricecompare/internal/registry"
)

func sourceFor(srv *httptest.Server) registry.SourceConfig {
	return registry.SourceConfig{
		ID:          "shop",
		URLTemplate: srv.URL + "/search?q={query}",
	}
}

// TestFetch_Success verifies query encoding, header merging and the
// returned document.
func TestFetch_Success(t *testing.T) {
	t.Parallel()

	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<p>ok</p>")
	}))
	t.Cleanup(srv.Close)

	src := sourceFor(srv)
	src.Headers = map[string]string{"X-Forwarded-For": "10.0.0.1", "User-Agent": "custom/1.0"}

	f := New(Options{Timeout: 2 * time.Second})
	doc, err := f.Fetch(context.Background(), src, "rtx 4060 & more")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	req := <-seen
	gotQuery := req.URL.Query().Get("q")
	gotUA, gotXFF, gotAccept := req.Header.Get("User-Agent"), req.Header.Get("X-Forwarded-For"), req.Header.Get("Accept")
	if gotQuery != "rtx 4060 & more" {
		t.Fatalf("server saw query %q", gotQuery)
	}
	if gotUA != "custom/1.0" || gotXFF != "10.0.0.1" {
		t.Fatalf("source headers not applied: ua=%q xff=%q", gotUA, gotXFF)
	}
	if !strings.HasPrefix(gotAccept, "text/html") {
		t.Fatalf("default Accept missing: %q", gotAccept)
	}
	if doc.Body != "<p>ok</p>" || doc.StatusCode != 200 || doc.SourceID != "shop" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if !strings.Contains(doc.URL, "q=rtx+4060+%26+more") {
		t.Fatalf("unexpected url %q", doc.URL)
	}
}

// TestFetch_HTTPStatus verifies non-2xx responses map to KindHTTPStatus.
func TestFetch_HTTPStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err := New(Options{}).Fetch(context.Background(), sourceFor(srv), "x")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindHTTPStatus || fe.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected error: %+v", fe)
	}
	if !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("expected body snippet in error: %v", err)
	}
}

// TestFetch_Timeout verifies a slow source maps to KindTimeout within the
// configured timeout.
func TestFetch_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	start := time.Now()
	_, err := New(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), sourceFor(srv), "x")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

// TestFetch_Transport verifies connection failures map to KindTransport.
func TestFetch_Transport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	src := sourceFor(srv)
	srv.Close()

	_, err := New(Options{Timeout: time.Second}).Fetch(context.Background(), src, "x")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

// TestFetch_DecodesCharset verifies legacy encodings are converted to UTF-8.
func TestFetch_DecodesCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<p>caf\xe9</p>"))
	}))
	t.Cleanup(srv.Close)

	doc, err := New(Options{}).Fetch(context.Background(), sourceFor(srv), "x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.Body != "<p>café</p>" {
		t.Fatalf("unexpected body %q", doc.Body)
	}
}

// TestFetch_BodyLimit verifies oversized documents are truncated and
// flagged, and that a body exactly at the cap is not.
func TestFetch_BodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, strings.Repeat("a", 100))
	}))
	t.Cleanup(srv.Close)

	doc, err := New(Options{MaxBodyBytes: 10}).Fetch(context.Background(), sourceFor(srv), "x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(doc.Body) != 10 || !doc.Truncated {
		t.Fatalf("expected 10 truncated bytes, got %d truncated=%v", len(doc.Body), doc.Truncated)
	}

	doc, err = New(Options{MaxBodyBytes: 100}).Fetch(context.Background(), sourceFor(srv), "x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(doc.Body) != 100 || doc.Truncated {
		t.Fatalf("body at the cap: got %d bytes truncated=%v", len(doc.Body), doc.Truncated)
	}
}

type stubTransport struct {
	calls int
	url   string
}

func (s *stubTransport) Get(_ context.Context, rawURL string, _ http.Header) (*Response, error) {
	s.calls++
	s.url = rawURL
	return &Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       io.NopCloser(strings.NewReader("<p>stub</p>")),
	}, nil
}

// TestFetch_TransportSelection verifies sources pick their transport by name
// and unknown names fail as transport errors.
func TestFetch_TransportSelection(t *testing.T) {
	t.Parallel()

	stub := &stubTransport{}
	f := New(Options{Transports: map[string]Transport{registry.TransportBrowser: stub}})

	src := registry.SourceConfig{ID: "b", URLTemplate: "https://b.example/s?q={query}", Transport: registry.TransportBrowser}
	doc, err := f.Fetch(context.Background(), src, "x")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if stub.calls != 1 || stub.url != "https://b.example/s?q=x" || doc.Body != "<p>stub</p>" {
		t.Fatalf("stub not used: calls=%d url=%q body=%q", stub.calls, stub.url, doc.Body)
	}

	src.Transport = "pigeon"
	_, err = f.Fetch(context.Background(), src, "x")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
}

// TestNewBrowserTransport verifies the fingerprinted client can be built
// without touching the network.
func TestNewBrowserTransport(t *testing.T) {
	t.Parallel()

	bt, err := NewBrowserTransport(0)
	if err != nil {
		t.Fatalf("NewBrowserTransport: %v", err)
	}
	if bt.client == nil {
		t.Fatalf("expected a client")
	}
}
