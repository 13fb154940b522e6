// Package extract applies a source's declarative rules to an HTML document
// and yields one RawListing per record container.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"pricecompare/internal/registry"

	"github.com/PuerkitoBio/goquery"
)

// Extract parses html and runs rules against it in record mode: every element
// matched by rules.Container becomes an independent extraction root and the
// field rules are evaluated relative to it.
//
// Listings preserve DOM order. A container without a name is skipped and
// reported in Result.Skipped. Zero container matches is a valid empty result,
// not an error. The only error is an unparsable document or rule set.
func Extract(sourceID, html string, rules registry.Rules) (*Result, error) {
	cr, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &Result{Listings: []RawListing{}}
	if !rules.Logo.Empty() {
		res.Logo = extractField(doc.Selection, rules.Logo, cr.logo)
	}

	doc.Find(rules.Container).Each(func(i int, rec *goquery.Selection) {
		res.Containers++

		raw := RawListing{
			SourceID:      sourceID,
			Index:         i,
			Name:          extractField(rec, rules.Name, cr.name),
			Price:         extractField(rec, rules.Price, cr.price),
			OriginalPrice: optionalField(rec, rules.OriginalPrice, cr.originalPrice),
			Image:         optionalField(rec, rules.Image, cr.image),
			Link:          optionalField(rec, rules.Link, cr.link),
			OutOfStock:    stockMarker(rec, rules.Stock),
		}
		if raw.Name == "" {
			res.Skipped = append(res.Skipped, RecordError{Index: i, Field: "name", Err: ErrRequiredFieldMissing})
			return
		}
		res.Listings = append(res.Listings, raw)
	})

	return res, nil
}

type compiledRules struct {
	name, price, originalPrice, image, link, logo *regexp.Regexp
}

func compileRules(r registry.Rules) (compiledRules, error) {
	var (
		cr  compiledRules
		err error
	)
	targets := []struct {
		field string
		rule  registry.FieldRule
		dst   **regexp.Regexp
	}{
		{"name", r.Name, &cr.name},
		{"price", r.Price, &cr.price},
		{"original_price", r.OriginalPrice, &cr.originalPrice},
		{"image", r.Image, &cr.image},
		{"link", r.Link, &cr.link},
		{"logo", r.Logo, &cr.logo},
	}
	for _, t := range targets {
		if *t.dst, err = compileOptionalRegex(t.rule.Match, t.field); err != nil {
			return compiledRules{}, err
		}
	}
	return cr, nil
}

// optionalField is extractField for rules that may be left unset.
func optionalField(root *goquery.Selection, rule registry.FieldRule, re *regexp.Regexp) string {
	if rule.Empty() {
		return ""
	}
	return extractField(root, rule, re)
}

// extractField evaluates one rule relative to root and returns "" when the
// selector, the attribute or the regex filter finds nothing.
func extractField(root *goquery.Selection, rule registry.FieldRule, re *regexp.Regexp) string {
	sel := root
	if strings.TrimSpace(rule.Selector) != "" {
		sel = root.Find(rule.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}

	var v string
	switch rule.Extract {
	case "", registry.ExtractText:
		v = strings.TrimSpace(sel.Text())
	case registry.ExtractAttr:
		for _, name := range rule.Attrs {
			if val, ok := sel.Attr(name); ok && strings.TrimSpace(val) != "" {
				v = strings.TrimSpace(val)
				break
			}
		}
	}
	return applyRegexFilter(v, re)
}

// stockMarker reports whether rule flags rec as out of stock.
func stockMarker(rec *goquery.Selection, rule *registry.StockRule) bool {
	if rule == nil {
		return false
	}
	if rule.Selector != "" && rec.Find(rule.Selector).Length() > 0 {
		return true
	}
	if rule.Contains != "" {
		return strings.Contains(strings.ToLower(rec.Text()), strings.ToLower(rule.Contains))
	}
	return false
}

// compileOptionalRegex compiles pattern, returning (nil, nil) for an empty
// pattern. Errors name the field so a broken rule is easy to find.
func compileOptionalRegex(pattern, field string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex for field=%q: %w", field, err)
	}
	return re, nil
}

// applyRegexFilter returns capture group 1 when the pattern has one, the whole
// match otherwise, and "" when nothing matches.
func applyRegexFilter(value string, re *regexp.Regexp) string {
	if value == "" || re == nil {
		return value
	}
	sm := re.FindStringSubmatch(value)
	if len(sm) == 0 {
		return ""
	}
	if len(sm) > 1 {
		return strings.TrimSpace(sm[1])
	}
	return strings.TrimSpace(sm[0])
}
