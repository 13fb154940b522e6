package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"pricecompare/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func idleTicker(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) }

func newTestBackend(t *testing.T, fs *fakeSubmitter, now int64) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "test",
		Tags:      []string{"team:pricing"},
		submitter: fs,
		now:       func() time.Time { return time.Unix(now, 0) },
		newTicker: idleTicker,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func findSeries(p datadogV2.MetricPayload, metric string, tag string) (datadogV2.MetricSeries, bool) {
	for _, s := range p.Series {
		if s.Metric == metric && contains(s.Tags, tag) {
			return s, true
		}
	}
	return datadogV2.MetricSeries{}, false
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestWrapInitErr verifies error wrapping behavior.
func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}

	in := errors.New("boom")
	got := wrapInitErr(in)
	if got == nil || !strings.Contains(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr prefix missing: %v", got)
	}
	if !errors.Is(got, in) {
		t.Fatalf("wrapInitErr did not wrap original error: got=%v", got)
	}
}

// TestSeriesKeyRoundTrip verifies label ordering and empty-value defaults.
func TestSeriesKeyRoundTrip(t *testing.T) {
	t.Parallel()

	k := seriesKey("m", metrics.Labels{"status": "200", "source": "ryans", "stage": ""})
	metric, tags := splitSeriesKey(k)
	if metric != "m" {
		t.Fatalf("metric=%q, want m", metric)
	}
	want := []string{"source:ryans", "stage:unknown", "status:200"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("tags=%v, want %v", tags, want)
	}

	metric, tags = splitSeriesKey(seriesKey("bare", nil))
	if metric != "bare" || len(tags) != 0 {
		t.Fatalf("unexpected split for unlabeled key: %q %v", metric, tags)
	}
}

// TestWithTags verifies tag concatenation does not alias the base slice.
func TestWithTags(t *testing.T) {
	t.Parallel()

	base := make([]string, 1, 4)
	base[0] = "env:prod"
	a := withTags(base, "source:a")
	b := withTags(base, "source:b")
	if a[1] != "source:a" || b[1] != "source:b" {
		t.Fatalf("withTags aliased base: a=%v b=%v", a, b)
	}
}

// TestPercentileNearestRank verifies the rank selection at the edges.
func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := []struct {
		p    float64
		want float64
	}{
		{0, 1}, {0.5, 6}, {0.9, 9}, {0.99, 10}, {1, 10},
	}
	for _, tc := range cases {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Fatalf("p=%v got=%v want=%v", tc.p, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty input got=%v want 0", got)
	}
}

// TestAddPercentiles verifies the gauge set and that input is not mutated.
func TestAddPercentiles(t *testing.T) {
	t.Parallel()

	samples := []float64{3, 1, 2}
	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"source:a"}, "x", samples, 10)

	if len(series) != 6 {
		t.Fatalf("series=%d, want 6", len(series))
	}
	if series[4].Metric != "x.max" || *series[4].Points[0].Value != 3 {
		t.Fatalf("unexpected max series: %+v", series[4])
	}
	if series[5].Metric != "x.samples" || *series[5].Points[0].Value != 3 {
		t.Fatalf("unexpected samples series: %+v", series[5])
	}
	if !reflect.DeepEqual(samples, []float64{3, 1, 2}) {
		t.Fatalf("input mutated: %v", samples)
	}

	addPercentiles(&series, nil, "y", nil, 10)
	if len(series) != 6 {
		t.Fatalf("empty samples should add nothing")
	}
}

// TestNewBackend_Defaults verifies job and base tag defaults.
func TestNewBackend_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DD_ENV", "")

	b, err := NewBackend(context.Background(), Options{submitter: &fakeSubmitter{}, newTicker: idleTicker})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%v, want 60s", b.flushEvery)
	}
	if want := []string{"env:unknown", "job:pricecompare"}; !reflect.DeepEqual(b.baseTags, want) {
		t.Fatalf("baseTags=%v, want %v", b.baseTags, want)
	}
}

// TestFlush_SubmitsAndResets verifies the facade helpers land as tagged
// Datadog series and that buffers reset after a flush.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, 1000)
	defer func() { _ = b.Close() }()

	metrics.SetBackend(b)
	defer metrics.SetBackend(nil)

	metrics.RecordHTTP("ryans", 200, "", 250*time.Millisecond, 4096)
	metrics.RecordHTTP("startech", 0, "timeout", time.Second, 0)
	metrics.RecordPipeline("ryans", "partial", "done", 2*time.Second, 7, 1)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	p, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}

	s, ok := findSeries(p, "pricecompare.http.requests.total", "source:ryans")
	if !ok || *s.Points[0].Value != 1 || !contains(s.Tags, "status:200") || !contains(s.Tags, "team:pricing") {
		t.Fatalf("missing ryans request count: %+v", s)
	}
	if *s.Points[0].Timestamp != 1000 {
		t.Fatalf("timestamp=%d, want 1000", *s.Points[0].Timestamp)
	}
	if _, ok := findSeries(p, "pricecompare.http.errors.total", "status:timeout"); !ok {
		t.Fatalf("missing timeout error count")
	}
	if _, ok := findSeries(p, "pricecompare.http.errors.total", "source:ryans"); ok {
		t.Fatalf("successful fetch must not count as an error")
	}
	if s, ok := findSeries(p, "pricecompare.listings.total", "source:ryans"); !ok || *s.Points[0].Value != 7 {
		t.Fatalf("missing listings count: %+v", s)
	}
	if _, ok := findSeries(p, "pricecompare.pipeline.duration_seconds.p50", "status:partial"); !ok {
		t.Fatalf("missing pipeline duration percentile")
	}
	if _, ok := findSeries(p, "pricecompare.http.download_bytes.max", "source:ryans"); !ok {
		t.Fatalf("missing download bytes")
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("second flush with empty buffers submitted; calls=%d", fs.count())
	}
}

// TestFlush_ReturnsSubmitError verifies submission errors surface and the
// buffer is still reset.
func TestFlush_ReturnsSubmitError(t *testing.T) {
	t.Parallel()

	fs := &fakeSubmitter{err: errors.New("intake down")}
	b := newTestBackend(t, fs, 1000)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.PipelineTotal, 1, metrics.Labels{"source": "a"})
	if err := b.Flush(); err == nil {
		t.Fatalf("expected submit error")
	}
	fs.err = nil
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() after reset err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("calls=%d, want 1", fs.count())
	}
}

// TestIgnoredInputs verifies unknown names and non-positive values are dropped.
func TestIgnoredInputs(t *testing.T) {
	t.Parallel()

	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, 1000)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.PipelineTotal, 0, nil)
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.PipelineDuration, -1, nil)
	b.ObserveHistogram("unknown_seconds", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("ignored inputs were submitted")
	}
}

// TestLoopAndClose verifies the background loop flushes and Close performs
// a final flush.
func TestLoopAndClose(t *testing.T) {
	t.Parallel()

	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.PipelineTotal, 1, metrics.Labels{"source": "a"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background flush; got %d", fs.count())
	}

	b.IncCounter(metrics.PipelineTotal, 1, metrics.Labels{"source": "a"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected final flush on Close; got %d submissions", fs.count())
	}
}

// TestBackend_ConcurrentAccess verifies buffering is safe under contention.
func TestBackend_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, 3000)
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	const iters = 500

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"source": "a", "status": "200"})
				b.ObserveHistogram(metrics.HTTPRequestDuration, 0.02, metrics.Labels{"source": "a", "status": "200"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	p, _ := fs.last()
	s, ok := findSeries(p, "pricecompare.http.requests.total", "source:a")
	if !ok || *s.Points[0].Value != float64(workers*iters) {
		t.Fatalf("request count=%v, want %d", s.Points, workers*iters)
	}
}

// TestParseTagsCSV verifies trimming and empty-part removal.
func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	if got := ParseTagsCSV(""); got != nil {
		t.Fatalf("ParseTagsCSV(\"\")=%v, want nil", got)
	}
	got := ParseTagsCSV(" env:prod, ,service:pricecompare ")
	want := []string{"env:prod", "service:pricecompare"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTagsCSV()=%v, want %v", got, want)
	}
}
