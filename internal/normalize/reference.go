package normalize

import (
	"net/url"
	"strings"
)

// ResolveReference turns an href/src value into an absolute http(s) URL.
//
// Relative ("/p/1"), path-relative ("p/1") and protocol-relative ("//cdn/x")
// references are resolved against base. Empty values, unparsable values and
// anything that does not end up as http(s) (javascript:, data:, mailto:)
// return fallback.
func ResolveReference(raw string, base *url.URL, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" {
		return fallback
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fallback
	}
	return u.String()
}
