// Package api is a thin HTTP adapter over the aggregator.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"pricecompare/internal/aggregate"
	"pricecompare/internal/registry"
)

// Aggregator is the slice of *aggregate.Aggregator the server needs.
type Aggregator interface {
	Aggregate(ctx context.Context, query string, sourceIDs []string) (*aggregate.Result, error)
	Registry() *registry.Registry
	Timeout() time.Duration
}

// requestTimeoutMargin leaves room to encode the result after the
// aggregation deadline has already filled the unfinished sources.
const requestTimeoutMargin = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// RequestTimeout bounds each request. Defaults to agg.Timeout() plus
	// requestTimeoutMargin, so the aggregator's own deadline always fires
	// first and reports the timed-out sources.
	RequestTimeout time.Duration

	// Metrics, when non-nil, is mounted at GET /metrics.
	Metrics http.Handler

	// Logger receives one line per request. nil disables request logs.
	Logger *log.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	agg        Aggregator
	opts       Options
	router     http.Handler
	httpServer *http.Server
}

// NewServer builds the router. It does not start listening.
func NewServer(agg Aggregator, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = agg.Timeout() + requestTimeoutMargin
	}
	s := &Server{agg: agg, opts: opts}
	s.router = s.setupRouter()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
