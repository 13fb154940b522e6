// Package report renders aggregation results for terminals and chat tools.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"pricecompare/internal/aggregate"
)

// MaxNameWidth caps the display width of the name column.
const MaxNameWidth = 60

var header = []string{"Source", "Name", "Price", "Was", "Discount", "Stock"}

// WriteTable writes res as a markdown table with display-width aligned
// columns, followed by one status line per source and the cheapest offer.
func WriteTable(w io.Writer, res *aggregate.Result) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %q: %d listings\n\n", res.Query, res.TotalListings)

	rows := [][]string{header}
	for _, src := range res.Sources {
		for _, l := range src.Listings {
			was := ""
			if l.OriginalPrice != nil {
				was = money(*l.OriginalPrice)
			}
			discount := ""
			if l.Discount > 0 {
				discount = strconv.FormatFloat(l.Discount, 'f', 1, 64) + "%"
			}
			stock := "in stock"
			if !l.InStock {
				stock = "out of stock"
			}
			rows = append(rows, []string{
				src.Source,
				cell(runewidth.Truncate(l.Name, MaxNameWidth, "…")),
				money(l.Price),
				was,
				discount,
				stock,
			})
		}
	}
	if len(rows) > 1 {
		for _, line := range alignRows(rows) {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	for _, src := range res.Sources {
		sb.WriteString(statusLine(src))
		sb.WriteByte('\n')
	}
	if c := res.Cheapest; c != nil {
		fmt.Fprintf(&sb, "\nCheapest: %s (%s) %s %s\n", c.Name, c.Source, money(c.Price), c.URL)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func statusLine(src aggregate.SourceResult) string {
	switch {
	case src.Failure != nil:
		return fmt.Sprintf("- %s: %s at %s (%s) %s", src.Source, src.Status, src.Failure.Stage, src.Failure.Kind, src.Failure.Message)
	case src.Skipped > 0 || src.Truncated:
		note := ""
		if src.Truncated {
			note = ", truncated"
		}
		return fmt.Sprintf("- %s: %s, %d listings, %d skipped%s, %dms", src.Source, src.Status, len(src.Listings), src.Skipped, note, src.DurationMS)
	default:
		return fmt.Sprintf("- %s: %s, %d listings, %dms", src.Source, src.Status, len(src.Listings), src.DurationMS)
	}
}

// alignRows pads every cell to its column's display width and inserts the
// separator row after the header.
func alignRows(rows [][]string) []string {
	widths := make([]int, len(header))
	for _, row := range rows {
		for i, c := range row {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	out := make([]string, 0, len(rows)+1)
	for i, row := range rows {
		out = append(out, formatRow(row, widths))
		if i == 0 {
			sep := make([]string, len(widths))
			for j, w := range widths {
				sep[j] = strings.Repeat("-", w)
			}
			out = append(out, formatRow(sep, widths))
		}
	}
	return out
}

func formatRow(row []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for i, c := range row {
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(c, widths[i]))
		sb.WriteString(" |")
	}
	return sb.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
