// Package metrics is the backend-neutral instrumentation facade.
//
// Core packages call the Record* helpers; the process picks a Backend once at
// startup with SetBackend (Datadog, Prometheus, or the default no-op).
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends switch on these and ignore anything else.
const (
	HTTPRequestsTotal   = "pricecompare_http_requests_total"
	HTTPErrorsTotal     = "pricecompare_http_errors_total"
	HTTPRequestDuration = "pricecompare_http_request_duration_seconds"
	HTTPDownloadBytes   = "pricecompare_http_download_bytes"
	PipelineTotal       = "pricecompare_pipeline_total"
	PipelineDuration    = "pricecompare_pipeline_duration_seconds"
	ListingsTotal       = "pricecompare_listings_total"
	SkippedTotal        = "pricecompare_records_skipped_total"
)

// Labels are metric dimensions. Keys used here: source, status, stage.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the no-op.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordHTTP records one outbound document fetch. status is the HTTP status
// code, or 0 when no response was received; errKind then names the failure
// ("timeout", "transport").
func RecordHTTP(source string, status int, errKind string, dur time.Duration, size int64) {
	statusLabel := errKind
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	if statusLabel == "" {
		statusLabel = "unknown"
	}
	l := Labels{"source": source, "status": statusLabel}

	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if errKind != "" {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPRequestDuration, dur.Seconds(), l)
	if size > 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(size), l)
	}
}

// RecordPipeline records the outcome of one source pipeline. stage is where a
// failed pipeline stopped, or "done".
func RecordPipeline(source, status, stage string, dur time.Duration, listings, skipped int) {
	b := current()
	b.IncCounter(PipelineTotal, 1, Labels{"source": source, "status": status, "stage": stage})
	b.ObserveHistogram(PipelineDuration, dur.Seconds(), Labels{"source": source, "status": status})
	if listings > 0 {
		b.IncCounter(ListingsTotal, float64(listings), Labels{"source": source})
	}
	if skipped > 0 {
		b.IncCounter(SkippedTotal, float64(skipped), Labels{"source": source})
	}
}
