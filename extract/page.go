// Package extract pulls raw product records out of parsed catalog and
// product pages. Every field is looked up through an ordered cascade of
// selector strategies, most reliable first; a field whose cascade finds
// nothing is simply left absent. Extraction never fails.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page wraps a parsed document together with the URL it was fetched from,
// exposing the small query surface the cascades need.
type Page struct {
	doc  *goquery.Document
	base *url.URL
}

// NewPage parses HTML from r. pageURL is used both as the record's
// product_url and as the base for resolving relative asset links.
func NewPage(r io.Reader, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return &Page{doc: doc, base: base}, nil
}

// URL returns the address the page was fetched from.
func (p *Page) URL() string {
	if p.base == nil {
		return ""
	}
	return p.base.String()
}

// Text returns the trimmed text of the first element matching selector.
func (p *Page) Text(selector string) string {
	return strings.TrimSpace(p.doc.Find(selector).First().Text())
}

// Texts returns the trimmed, non-empty texts of all elements matching
// selector, in document order.
func (p *Page) Texts(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// Attr returns the named attribute of the first matching element, trimmed.
func (p *Page) Attr(selector, name string) string {
	v, _ := p.doc.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// Attrs returns the named attribute of every matching element.
func (p *Page) Attrs(selector, name string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(name); ok {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	})
	return out
}

// Has reports whether any element matches selector.
func (p *Page) Has(selector string) bool {
	return p.doc.Find(selector).Length() > 0
}

// Find exposes the underlying selection for the handful of callers that
// need structured iteration (characteristic tables, script blocks).
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// AbsoluteURL normalizes an extracted href/src to an absolute URL.
// Protocol-relative links are pinned to https; relative links resolve
// against the page URL. Empty input stays empty.
func (p *Page) AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if p.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.base.ResolveReference(ref).String()
}
