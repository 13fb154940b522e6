package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// BrowserTransport fetches with a Chrome TLS/HTTP2 fingerprint for sources
// that reject the Go client's handshake. It still only fetches static HTML.
type BrowserTransport struct {
	client tls_client.HttpClient
}

// NewBrowserTransport builds a tls-client with a Chrome 120 profile and its
// own cookie jar. timeout bounds the whole request on the client side.
func NewBrowserTransport(timeout time.Duration) (*BrowserTransport, error) {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(secs),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}
	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("tls client: %w", err)
	}
	return &BrowserTransport{client: client}, nil
}

// Get implements Transport.
func (t *BrowserTransport) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser get: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     http.Header(resp.Header),
		Body:       resp.Body,
	}, nil
}
