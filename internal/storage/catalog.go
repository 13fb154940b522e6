// Package storage persists source configurations in a SQL "catalog" so a
// fleet of aggregators can share one set of sources. It never stores
// aggregation results.
//
// Backends register themselves by kind from an init function; import
// pricecompare/internal/storage/all to link every backend in.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pricecompare/internal/registry"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "pricecompare_sources"

// Config selects and configures a catalog backend.
//
// Edge cases:
//   - Kind must match a registered backend ("sqlite", "postgres", "mssql").
//   - DSN is passed through to the backend driver unchanged.
//   - Table may be schema-qualified ("catalog.sources").
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// Catalog is a backend-agnostic store of source configurations.
type Catalog interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureSchema creates the catalog table if it does not exist.
	EnsureSchema(ctx context.Context) error

	// SaveSources replaces the catalog contents with sources, atomically.
	// Slice order becomes the stored position.
	SaveSources(ctx context.Context, sources []registry.SourceConfig) error

	// LoadSources returns every stored source ordered by position.
	LoadSources(ctx context.Context) ([]registry.SourceConfig, error)
}

// Factory opens a Catalog for cfg.
type Factory func(ctx context.Context, cfg Config) (Catalog, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// Panics if kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Catalog using the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Catalog, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing catalog kind")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if err := CheckTable(cfg.Table); err != nil {
		return nil, err
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported catalog kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// LoadRegistry opens cfg, reads every source and returns a validated registry.
func LoadRegistry(ctx context.Context, cfg Config) (*registry.Registry, error) {
	cat, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer cat.Close()

	sources, err := cat.LoadSources(ctx)
	if err != nil {
		return nil, err
	}
	return registry.New(sources)
}
