// Package sanitize cleans user-submitted text before it is stored or
// rendered. Opportunity and proposal descriptions arrive as free-form HTML
// from the API layer and must never carry scripts into other tenants'
// browsers.
package sanitize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var ugc = bluemonday.UGCPolicy()

// HTML strips unsafe tags and attributes, keeping the formatting UGCPolicy
// allows (links, lists, tables).
func HTML(s string) string {
	return ugc.Sanitize(strings.ToValidUTF8(s, ""))
}

// Text converts HTML to plain text with collapsed whitespace. Unparseable
// input falls back to whitespace-collapsing the raw string.
func Text(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalizeSpace(html)
	}
	return normalizeSpace(doc.Text())
}

// Truncate cuts a string to max length, appending ellipsis if truncated.
func Truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return text[:maxLen-3] + "..."
	}
	return text[:maxLen]
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
