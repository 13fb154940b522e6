// Command pricecompare searches every configured source for a product and
// prints the merged, per-source result.
//
// Usage (one-shot, built-in sources):
//
//	pricecompare -q "rtx 4060"
//
// Usage (sources file, markdown table):
//
//	pricecompare -config configs/sources.yaml -q "ssd 1tb" -format table
//
// Usage (SQL catalog, HTTP server with Prometheus scraping):
//
//	pricecompare -catalog-kind postgres -catalog-dsn "$DSN" -serve :8080 -metrics-backend prom
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricecompare/internal/aggregate"
	"pricecompare/internal/api"
	"pricecompare/internal/fetch"
	"pricecompare/internal/metrics"
	"pricecompare/internal/metrics/datadog"
	"pricecompare/internal/metrics/prom"
	"pricecompare/internal/registry"
	"pricecompare/internal/report"
	"pricecompare/internal/storage"

	// register all catalog backends with the storage factory.
	_ "pricecompare/internal/storage/all"
)

// backendCloser is a metrics backend with an owned lifecycle.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are external seams for testability.
type deps struct {
	Stdout io.Writer
	Stderr io.Writer

	// HTTPClient backs the "http" fetch transport.
	HTTPClient *http.Client

	// Getenv reads the process environment. Values from the -env file are
	// consulted only when Getenv returns "".
	Getenv func(string) string

	DatadogFactory func(ctx context.Context, opts datadog.Options) (backendCloser, error)
	LoadCatalog    func(ctx context.Context, cfg storage.Config) (*registry.Registry, error)
}

// runConfig holds the parsed flags.
type runConfig struct {
	ConfigPath   string
	CatalogKind  string
	CatalogDSN   string
	CatalogTable string

	Query   string
	Sources []string
	Format  string

	Concurrency  int
	Timeout      time.Duration
	FetchTimeout time.Duration

	MetricsBackend string
	MetricsTags    string
	PushURL        string

	Serve   string
	EnvFile string
	Verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		HTTPClient: http.DefaultClient,
		Getenv:     os.Getenv,
		DatadogFactory: func(ctx context.Context, opts datadog.Options) (backendCloser, error) {
			return datadog.NewBackend(ctx, opts)
		},
		LoadCatalog: storage.LoadRegistry,
	})
	stop()
	os.Exit(code)
}

// run executes the command and returns an exit code.
//
// Exit codes:
//   - 0: success (at least one source answered, or the server shut down cleanly).
//   - 1: every requested source failed, or the server failed.
//   - 2: usage, configuration or initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.LoadCatalog == nil {
		d.LoadCatalog = storage.LoadRegistry
	}

	cfg, err := parseFlags(args, d.Stderr)
	if err != nil {
		return 2
	}

	getenv, err := envLookup(cfg.EnvFile, d.Getenv)
	if err != nil {
		fmt.Fprintf(d.Stderr, "load env file: %v\n", err)
		return 2
	}
	applyEnv(&cfg, getenv)

	if cfg.Serve == "" && strings.TrimSpace(cfg.Query) == "" {
		fmt.Fprintln(d.Stderr, "missing -q (or -serve)")
		return 2
	}
	if cfg.Format != "json" && cfg.Format != "table" {
		fmt.Fprintf(d.Stderr, "invalid -format %q (want json or table)\n", cfg.Format)
		return 2
	}

	logger := log.New(io.Discard, "", 0)
	if cfg.Verbose {
		logger = log.New(d.Stderr, "pricecompare ", log.LstdFlags|log.Lmicroseconds)
	}

	reg, settings, err := loadSources(ctx, cfg, d)
	if err != nil {
		fmt.Fprintf(d.Stderr, "load sources: %v\n", err)
		return 2
	}
	logger.Printf("sources=%s", strings.Join(reg.IDs(), ","))

	var metricsHandler http.Handler
	switch cfg.MetricsBackend {
	case "", "none":
	case "datadog":
		if d.DatadogFactory == nil {
			fmt.Fprintln(d.Stderr, "internal error: DatadogFactory is nil")
			return 2
		}
		b, err := d.DatadogFactory(ctx, datadog.Options{
			JobName: "pricecompare",
			Tags:    datadog.ParseTagsCSV(cfg.MetricsTags),
		})
		if err != nil {
			fmt.Fprintf(d.Stderr, "datadog backend init failed: %v\n", err)
			return 2
		}
		metrics.SetBackend(b)
		defer func() {
			if err := b.Close(); err != nil {
				logger.Printf("metrics: close error: %v", err)
			}
			metrics.SetBackend(nil)
		}()
	case "prom":
		b, err := prom.NewBackend(prom.Options{JobName: "pricecompare", PushURL: cfg.PushURL})
		if err != nil {
			fmt.Fprintf(d.Stderr, "prometheus backend init failed: %v\n", err)
			return 2
		}
		metricsHandler = b.Handler()
		metrics.SetBackend(b)
		defer func() {
			if err := metrics.Flush(); err != nil {
				logger.Printf("metrics: flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}()
	default:
		fmt.Fprintf(d.Stderr, "unsupported -metrics-backend %q (want none, datadog or prom)\n", cfg.MetricsBackend)
		return 2
	}

	agg := aggregate.New(reg, newFetcher(cfg, settings, d.HTTPClient), aggregate.Options{
		Concurrency: firstPositive(cfg.Concurrency, settings.Concurrency),
		Timeout:     firstDuration(cfg.Timeout, seconds(settings.TimeoutSec)),
		Logger:      logger,
	})

	if cfg.Serve != "" {
		srv := api.NewServer(agg, api.Options{Addr: cfg.Serve, Metrics: metricsHandler, Logger: logger})
		logger.Printf("listening addr=%s", cfg.Serve)
		if err := srv.ListenAndServe(ctx); err != nil {
			fmt.Fprintf(d.Stderr, "serve: %v\n", err)
			return 1
		}
		return 0
	}

	res, err := agg.Aggregate(ctx, cfg.Query, cfg.Sources)
	if err != nil {
		fmt.Fprintf(d.Stderr, "aggregate: %v\n", err)
		return 2
	}

	if cfg.Format == "table" {
		err = report.WriteTable(d.Stdout, res)
	} else {
		enc := json.NewEncoder(d.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	}
	if err != nil {
		fmt.Fprintf(d.Stderr, "write result: %v\n", err)
		return 1
	}

	if len(res.Sources) > 0 && len(res.Failed()) == len(res.Sources) {
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (runConfig, error) {
	var cfg runConfig
	var sources string

	fs := flag.NewFlagSet("pricecompare", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.ConfigPath, "config", "", "sources file (.json, .yaml); built-in sources when empty")
	fs.StringVar(&cfg.CatalogKind, "catalog-kind", "", "load sources from a SQL catalog: sqlite, postgres, mssql (env CATALOG_KIND)")
	fs.StringVar(&cfg.CatalogDSN, "catalog-dsn", "", "catalog DSN (env CATALOG_DSN)")
	fs.StringVar(&cfg.CatalogTable, "catalog-table", "", "catalog table (default "+storage.DefaultTable+")")
	fs.StringVar(&cfg.Query, "q", "", "search query")
	fs.StringVar(&sources, "sources", "", "comma-separated source ids; all sources when empty")
	fs.StringVar(&cfg.Format, "format", "json", "output format: json or table")
	fs.IntVar(&cfg.Concurrency, "concurrency", 0, "max sources fetched at once (default from config, then 4)")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "overall aggregation timeout (default from config, then 30s)")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", 0, "per-request timeout (default from config, then 10s)")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", "", "metrics backend: none, datadog, prom (env METRICS_BACKEND)")
	fs.StringVar(&cfg.MetricsTags, "metrics-tags", "", "extra datadog tags, comma-separated (env METRICS_TAGS)")
	fs.StringVar(&cfg.PushURL, "push-url", "", "Pushgateway URL for -metrics-backend prom (env PUSHGATEWAY_URL)")
	fs.StringVar(&cfg.Serve, "serve", "", "serve the HTTP API on this address instead of running one query")
	fs.StringVar(&cfg.EnvFile, "env", ".env", "optional dotenv file; missing file is ignored")
	fs.BoolVar(&cfg.Verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return runConfig{}, err
	}
	for _, id := range strings.Split(sources, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Sources = append(cfg.Sources, id)
		}
	}
	return cfg, nil
}

// envLookup layers the dotenv file under the process environment.
func envLookup(path string, getenv func(string) string) (func(string) string, error) {
	if path == "" {
		return getenv, nil
	}
	vals, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return getenv, nil
	}
	if err != nil {
		return nil, err
	}
	return func(k string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return vals[k]
	}, nil
}

// applyEnv fills unset flags from the environment: flag → env → default.
func applyEnv(cfg *runConfig, getenv func(string) string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(getenv(key))
		}
	}
	fill(&cfg.CatalogKind, "CATALOG_KIND")
	fill(&cfg.CatalogDSN, "CATALOG_DSN")
	fill(&cfg.MetricsBackend, "METRICS_BACKEND")
	fill(&cfg.MetricsTags, "METRICS_TAGS")
	fill(&cfg.PushURL, "PUSHGATEWAY_URL")
}

func loadSources(ctx context.Context, cfg runConfig, d deps) (*registry.Registry, registry.Settings, error) {
	switch {
	case cfg.CatalogKind != "":
		reg, err := d.LoadCatalog(ctx, storage.Config{Kind: cfg.CatalogKind, DSN: cfg.CatalogDSN, Table: cfg.CatalogTable})
		return reg, registry.Settings{}, err
	case cfg.ConfigPath != "":
		return registry.Load(cfg.ConfigPath)
	default:
		return registry.Default()
	}
}

func newFetcher(cfg runConfig, s registry.Settings, client *http.Client) *fetch.Fetcher {
	return fetch.New(fetch.Options{
		Timeout:      firstDuration(cfg.FetchTimeout, seconds(s.FetchTimeoutSec)),
		UserAgent:    s.UserAgent,
		MaxBodyBytes: int64(s.MaxBodyKB) << 10,
		Client:       client,
	})
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstDuration(vals ...time.Duration) time.Duration {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
