// Package registry holds the declarative per-source configuration: where to
// search, which headers to send and how to pull listings out of the returned
// HTML. Sources are data, not code; adding one never touches the pipeline.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotFound is returned by Get for ids that are not registered.
var ErrNotFound = errors.New("unknown source")

// Registry is a read-only, ordered set of validated sources. It is safe for
// concurrent use because nothing mutates it after New returns.
type Registry struct {
	order []string
	byID  map[string]SourceConfig
}

// New validates cfgs and freezes them in the given order.
func New(cfgs []SourceConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, &ConfigError{Source: "*", Err: ErrNoSources}
	}

	r := &Registry{
		order: make([]string, 0, len(cfgs)),
		byID:  make(map[string]SourceConfig, len(cfgs)),
	}
	for i, cfg := range cfgs {
		cfg.ID = strings.TrimSpace(cfg.ID)
		if err := Validate(cfg); err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) && ce.Source == "" {
				ce.Source = fmt.Sprintf("#%d", i)
			}
			return nil, err
		}
		if _, dup := r.byID[cfg.ID]; dup {
			return nil, &ConfigError{Source: cfg.ID, Field: "id", Err: ErrDuplicateID}
		}
		r.byID[cfg.ID] = cloneSource(cfg)
		r.order = append(r.order, cfg.ID)
	}
	return r, nil
}

// Get returns the configuration for id.
func (r *Registry) Get(id string) (SourceConfig, error) {
	cfg, ok := r.byID[id]
	if !ok {
		return SourceConfig{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return cloneSource(cfg), nil
}

// List returns every source in configuration order.
func (r *Registry) List() []SourceConfig {
	out := make([]SourceConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneSource(r.byID[id]))
	}
	return out
}

// IDs returns the registered ids in configuration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Position returns the configuration index of id, or -1.
func (r *Registry) Position(id string) int {
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}

// SearchURL substitutes the percent-encoded query into the URL template.
func (c SourceConfig) SearchURL(query string) string {
	return strings.Replace(c.URLTemplate, QueryPlaceholder, url.QueryEscape(query), 1)
}

// Base returns the URL relative references are resolved against: BaseURL when
// configured, otherwise the scheme and host of the URL template.
func (c SourceConfig) Base() *url.URL {
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err == nil {
			return u
		}
	}
	u, err := url.Parse(strings.Replace(c.URLTemplate, QueryPlaceholder, "", 1))
	if err != nil {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

// cloneSource copies the mutable parts of cfg so callers cannot reach into
// the registry's own maps and slices.
func cloneSource(cfg SourceConfig) SourceConfig {
	if cfg.Headers != nil {
		h := make(map[string]string, len(cfg.Headers))
		for k, v := range cfg.Headers {
			h[k] = v
		}
		cfg.Headers = h
	}
	if cfg.Rules.Stock != nil {
		s := *cfg.Rules.Stock
		cfg.Rules.Stock = &s
	}
	r := &cfg.Rules
	for _, f := range []*FieldRule{&r.Name, &r.Price, &r.OriginalPrice, &r.Image, &r.Link, &r.Logo} {
		f.Attrs = append([]string(nil), f.Attrs...)
	}
	return cfg
}
