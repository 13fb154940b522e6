// Package prom implements a Prometheus backend for the internal/metrics package.
//
// The same registry serves two modes. The HTTP server exposes it for scraping
// via Handler; one-shot CLI runs push it to a Pushgateway on Flush.
package prom

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"pricecompare/internal/metrics"
)

// Options configures the backend.
type Options struct {
	// JobName is the Pushgateway job. Defaults to "pricecompare".
	JobName string

	// PushURL is the Pushgateway base URL. Empty disables pushing and makes
	// Flush a no-op.
	PushURL string
}

type counterDef struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramDef struct {
	vec    *prometheus.HistogramVec
	labels []string
}

// Backend implements metrics.Backend on a private prometheus.Registry.
type Backend struct {
	reg        *prometheus.Registry
	pusher     *push.Pusher
	counters   map[string]counterDef
	histograms map[string]histogramDef
}

// NewBackend registers the pricecompare collectors on a fresh registry.
func NewBackend(opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "pricecompare"
	}

	b := &Backend{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]counterDef),
		histograms: make(map[string]histogramDef),
	}

	httpLabels := []string{"source", "status"}
	b.counter(metrics.HTTPRequestsTotal, "Document fetches by source and status.", httpLabels)
	b.counter(metrics.HTTPErrorsTotal, "Failed document fetches by source and status.", httpLabels)
	b.histogram(metrics.HTTPRequestDuration, "Document fetch latency.", prometheus.DefBuckets, httpLabels)
	b.histogram(metrics.HTTPDownloadBytes, "Document body size.", prometheus.ExponentialBuckets(1024, 4, 8), httpLabels)
	b.counter(metrics.PipelineTotal, "Source pipelines by outcome and final stage.", []string{"source", "status", "stage"})
	b.histogram(metrics.PipelineDuration, "Source pipeline latency.", []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}, httpLabels)
	b.counter(metrics.ListingsTotal, "Listings produced per source.", []string{"source"})
	b.counter(metrics.SkippedTotal, "Records skipped during extraction per source.", []string{"source"})

	for name, c := range b.counters {
		if err := b.reg.Register(c.vec); err != nil {
			return nil, fmt.Errorf("prometheus metrics init: register %s: %w", name, err)
		}
	}
	for name, h := range b.histograms {
		if err := b.reg.Register(h.vec); err != nil {
			return nil, fmt.Errorf("prometheus metrics init: register %s: %w", name, err)
		}
	}

	if opts.PushURL != "" {
		b.pusher = push.New(opts.PushURL, job).Gatherer(b.reg)
	}
	return b, nil
}

func (b *Backend) counter(name, help string, labels []string) {
	b.counters[name] = counterDef{
		vec:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels),
		labels: labels,
	}
}

func (b *Backend) histogram(name, help string, buckets []float64, labels []string) {
	b.histograms[name] = histogramDef{
		vec:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels),
		labels: labels,
	}
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	c, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	c.vec.WithLabelValues(values(c.labels, labels)...).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	h, ok := b.histograms[name]
	if !ok || value < 0 {
		return
	}
	h.vec.WithLabelValues(values(h.labels, labels)...).Observe(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	if b.pusher == nil {
		return nil
	}
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("pushgateway: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

// values orders label values to match names; missing or empty values become
// "unknown" so WithLabelValues never panics.
func values(names []string, labels metrics.Labels) []string {
	out := make([]string, len(names))
	for i, n := range names {
		v := labels[n]
		if v == "" {
			v = "unknown"
		}
		out[i] = v
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
