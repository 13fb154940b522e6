package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector writes every match of selector in html, as outer HTML or
// as trimmed text, separated by numbered headers. It returns the match count.
// Used when authoring rules for a new source.
func DebugPrintSelector(w io.Writer, html, selector string, textOnly bool) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	var (
		n    int
		werr error
	)
	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		n++
		body := strings.TrimSpace(s.Text())
		if !textOnly {
			if out, err := goquery.OuterHtml(s); err == nil {
				body = out
			}
		}
		_, werr = fmt.Fprintf(w, "--- match %d ---\n%s\n", i+1, body)
		return werr == nil
	})
	if werr != nil {
		return n, werr
	}
	return n, nil
}
