package registry

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Configuration validation errors.
var (
	ErrNoSources           = errors.New("at least one source is required")
	ErrMissingID           = errors.New("id is required")
	ErrDuplicateID         = errors.New("duplicate source id")
	ErrBadTemplate         = errors.New("url_template must contain exactly one " + QueryPlaceholder + " placeholder")
	ErrBadURL              = errors.New("url must be absolute http(s)")
	ErrMissingContainer    = errors.New("rules.container is required")
	ErrMissingSelector     = errors.New("selector is required")
	ErrBadSelector         = errors.New("invalid css selector")
	ErrMissingAttrs        = errors.New("extract=attr requires attrs")
	ErrBadExtract          = errors.New("extract must be 'text' or 'attr'")
	ErrBadRegex            = errors.New("invalid match regex")
	ErrBadTransport        = errors.New("transport must be 'http' or 'browser'")
	ErrBadStockPolicy      = errors.New("stock_policy must be 'two_signal', 'marker' or 'price'")
	ErrEmptyStockRule      = errors.New("stock rule needs a selector or contains")
	ErrStockPolicyNoMarker = errors.New("stock_policy=marker requires rules.stock")
)

// ConfigError reports an invalid source configuration. It is fatal at startup.
type ConfigError struct {
	Source string // source id, or "#<index>" when the id itself is missing
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("source %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validate checks a single source configuration.
func Validate(cfg SourceConfig) error {
	src := cfg.ID
	fail := func(field string, err error) error {
		return &ConfigError{Source: src, Field: field, Err: err}
	}

	if strings.TrimSpace(cfg.ID) == "" {
		return fail("id", ErrMissingID)
	}
	if strings.Count(cfg.URLTemplate, QueryPlaceholder) != 1 {
		return fail("url_template", ErrBadTemplate)
	}
	if !absoluteHTTP(strings.Replace(cfg.URLTemplate, QueryPlaceholder, "q", 1)) {
		return fail("url_template", ErrBadURL)
	}
	if cfg.BaseURL != "" && !absoluteHTTP(cfg.BaseURL) {
		return fail("base_url", ErrBadURL)
	}

	switch cfg.Transport {
	case "", TransportHTTP, TransportBrowser:
	default:
		return fail("transport", ErrBadTransport)
	}

	switch cfg.StockPolicy {
	case "", StockTwoSignal, StockPrice:
	case StockMarker:
		if cfg.Rules.Stock == nil {
			return fail("stock_policy", ErrStockPolicyNoMarker)
		}
	default:
		return fail("stock_policy", ErrBadStockPolicy)
	}

	r := cfg.Rules
	if strings.TrimSpace(r.Container) == "" {
		return fail("rules.container", ErrMissingContainer)
	}
	if err := validateSelector(r.Container); err != nil {
		return fail("rules.container", err)
	}
	if strings.TrimSpace(r.Name.Selector) == "" {
		return fail("rules.name", ErrMissingSelector)
	}
	if strings.TrimSpace(r.Price.Selector) == "" {
		return fail("rules.price", ErrMissingSelector)
	}

	fields := []struct {
		name string
		rule FieldRule
	}{
		{"rules.name", r.Name},
		{"rules.price", r.Price},
		{"rules.original_price", r.OriginalPrice},
		{"rules.image", r.Image},
		{"rules.link", r.Link},
		{"rules.logo", r.Logo},
	}
	for _, f := range fields {
		if err := validateField(f.rule); err != nil {
			return fail(f.name, err)
		}
	}

	if r.Stock != nil {
		if strings.TrimSpace(r.Stock.Selector) == "" && strings.TrimSpace(r.Stock.Contains) == "" {
			return fail("rules.stock", ErrEmptyStockRule)
		}
		if err := validateSelector(r.Stock.Selector); err != nil {
			return fail("rules.stock", err)
		}
	}
	return nil
}

// validateSelector compiles sel the way goquery will at query time. goquery
// treats an unparsable selector as matching nothing, which would look like an
// empty result page.
func validateSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return nil
	}
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("%w %q: %v", ErrBadSelector, sel, err)
	}
	return nil
}

func validateField(r FieldRule) error {
	if err := validateSelector(r.Selector); err != nil {
		return err
	}
	switch r.Extract {
	case "", ExtractText:
	case ExtractAttr:
		if len(r.Attrs) == 0 {
			return ErrMissingAttrs
		}
	default:
		return ErrBadExtract
	}
	if r.Match != "" {
		if _, err := regexp.Compile(r.Match); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRegex, err)
		}
	}
	return nil
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
