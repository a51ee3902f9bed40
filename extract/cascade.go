package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// A strategy produces one candidate value for a field. Strategies are pure
// functions of the page; an empty string means "nothing found here".
type strategy func(p *Page) string

// A cascade is an ordered list of strategies, most reliable first: explicit
// data attributes, then semantic classes, then keyword-based structural
// matches, then free-text patterns. The first non-empty result wins, so
// appending a new fallback source never changes existing behavior.
type cascade []strategy

func (c cascade) first(p *Page) string {
	for _, s := range c {
		if v := s(p); v != "" {
			return v
		}
	}
	return ""
}

// A listStrategy produces all candidate values for a multi-valued field.
type listStrategy func(p *Page) []string

// A listCascade evaluates list strategies in order and keeps the first
// source that yields anything at all.
type listCascade []listStrategy

func (c listCascade) first(p *Page) []string {
	for _, s := range c {
		if vs := s(p); len(vs) > 0 {
			return vs
		}
	}
	return nil
}

func text(selector string) strategy {
	return func(p *Page) string { return p.Text(selector) }
}

func attr(selector, name string) strategy {
	return func(p *Page) string { return p.Attr(selector, name) }
}

func texts(selector string) listStrategy {
	return func(p *Page) []string { return p.Texts(selector) }
}

func attrs(selector, name string) listStrategy {
	return func(p *Page) []string { return p.Attrs(selector, name) }
}

// textContaining returns the trimmed text of the first element matching
// selector whose text contains any of the given substrings.
func textContaining(selector string, substrings ...string) strategy {
	return func(p *Page) string {
		found := ""
		p.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := strings.TrimSpace(s.Text())
			for _, sub := range substrings {
				if strings.Contains(t, sub) {
					found = t
					return false
				}
			}
			return true
		})
		return found
	}
}

// labelSibling finds a <label> whose text contains one of the keywords and
// returns the text of its parent with the label's own text removed. Used
// for "SKU: <value>" style markup with no usable classes.
func labelSibling(keywords ...string) strategy {
	return func(p *Page) string {
		found := ""
		p.Find("label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			labelText := s.Text()
			for _, kw := range keywords {
				if strings.Contains(labelText, kw) {
					parent := s.Parent().Text()
					found = strings.TrimSpace(strings.Replace(parent, labelText, "", 1))
					return false
				}
			}
			return true
		})
		return found
	}
}
