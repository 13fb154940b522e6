package registry

// Extraction modes for a FieldRule.
const (
	ExtractText = "text"
	ExtractAttr = "attr"
)

// Transports a source may be fetched with.
const (
	TransportHTTP    = "http"
	TransportBrowser = "browser"
)

// Stock policies. The default two-signal policy treats a source as in stock
// only when no out-of-stock marker is present and the parsed price is > 0.
const (
	StockTwoSignal = "two_signal"
	StockMarker    = "marker"
	StockPrice     = "price"
)

// QueryPlaceholder is substituted with the percent-encoded search term.
const QueryPlaceholder = "{query}"

// FieldRule describes how to pull one value out of a record container.
type FieldRule struct {
	Selector string   `json:"selector,omitempty" yaml:"selector,omitempty"` // relative to the container; empty means the container itself
	Extract  string   `json:"extract,omitempty" yaml:"extract,omitempty"`   // "text" (default) or "attr"
	Attrs    []string `json:"attrs,omitempty" yaml:"attrs,omitempty"`       // first non-empty attribute wins
	Match    string   `json:"match,omitempty" yaml:"match,omitempty"`       // optional regex filter
}

// Empty reports whether the rule was left unset in configuration.
func (r FieldRule) Empty() bool {
	return r.Selector == "" && r.Extract == "" && len(r.Attrs) == 0 && r.Match == ""
}

// StockRule marks a record as out of stock when the selector matches inside
// the container, or when the container text contains Contains (case-insensitive).
type StockRule struct {
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Contains string `json:"contains,omitempty" yaml:"contains,omitempty"`
}

// Rules is the declarative extraction recipe for one source.
type Rules struct {
	Container     string     `json:"container" yaml:"container"`
	Name          FieldRule  `json:"name" yaml:"name"`
	Price         FieldRule  `json:"price" yaml:"price"`
	OriginalPrice FieldRule  `json:"original_price,omitempty" yaml:"original_price,omitempty"`
	Image         FieldRule  `json:"image,omitempty" yaml:"image,omitempty"`
	Link          FieldRule  `json:"link,omitempty" yaml:"link,omitempty"`
	Stock         *StockRule `json:"stock,omitempty" yaml:"stock,omitempty"`

	// Logo is evaluated once against the document root.
	Logo FieldRule `json:"logo,omitempty" yaml:"logo,omitempty"`
}

// SourceConfig is the immutable description of one external source.
type SourceConfig struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	URLTemplate string            `json:"url_template" yaml:"url_template"`
	BaseURL     string            `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Transport   string            `json:"transport,omitempty" yaml:"transport,omitempty"`
	Logo        string            `json:"logo,omitempty" yaml:"logo,omitempty"`
	StockPolicy string            `json:"stock_policy,omitempty" yaml:"stock_policy,omitempty"`
	Rules       Rules             `json:"rules" yaml:"rules"`
}

// Settings holds aggregator-wide knobs that live next to the sources.
type Settings struct {
	Concurrency     int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	TimeoutSec      int    `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
	FetchTimeoutSec int    `json:"fetch_timeout_sec,omitempty" yaml:"fetch_timeout_sec,omitempty"`
	UserAgent       string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	MaxBodyKB       int    `json:"max_body_kb,omitempty" yaml:"max_body_kb,omitempty"`
}

// File describes a sources file on disk.
type File struct {
	Aggregator Settings       `json:"aggregator" yaml:"aggregator"`
	Sources    []SourceConfig `json:"sources" yaml:"sources"`
}
