package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const fingerprintSep = "\x1f"

// Fingerprint returns a stable lowercase hex SHA-256 id for a listing.
//
// The canonical form is "source=<id>\x1fname=<name>\x1furl=<url>", with the
// name case-folded so cosmetic re-capitalisation on the source site does not
// change the id.
func Fingerprint(source, name, link string) string {
	var b strings.Builder
	b.Grow(len(source) + len(name) + len(link) + 20)

	b.WriteString("source=")
	b.WriteString(source)
	b.WriteString(fingerprintSep)
	b.WriteString("name=")
	b.WriteString(strings.ToLower(name))
	b.WriteString(fingerprintSep)
	b.WriteString("url=")
	b.WriteString(link)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
