package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	volumeOptionCascade = listCascade{
		texts(".volume-selector option"),
		texts(`select[name*="volume"] option`),
		texts(`select[class*="volume"] option`),
	}

	volumeButtonCascade = listCascade{
		texts(".volume-btn"),
		texts(`[class*="volume"][class*="btn"]`),
		texts(".size-button[data-volume]"),
	}

	colorOptionCascade = listCascade{
		texts(".color-selector option"),
		texts(`select[name*="color"] option`),
		texts(`select[class*="color"] option`),
	}

	colorButtonCascade = listCascade{
		texts(".color-btn"),
		texts(`[class*="color"][class*="btn"]`),
		texts("[data-color]"),
	}

	// Apparel vocabulary. A drinks catalog has no clothing sizes; labels
	// mentioning them are scraped-in noise from shared page templates.
	implausibleKeywords = []string{
		"размер", "size", "одежда", "clothing", "shirt", "pants", "dress",
		"обувь", "shoe", "носок", "sock",
		"width", "длина", "height", "высота",
		"material", "материал", "ткань", "fabric",
		"large", "small", "medium", "extra",
	}

	sizeTokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(xs|s|m|l|xl|xxl)\s*$`),
		regexp.MustCompile(`^size\s+(xs|s|m|l|xl|xxl)`),
		regexp.MustCompile(`^(xs|s|m|l|xl|xxl)\s*size`),
	}

	placeholderLabels = map[string]struct{}{
		"select":  {},
		"выбрать": {},
		"choose":  {},
		"выбор":   {},
	}
)

// DetectVariants counts the purchasable variants a product page exposes.
// Markup-derived volume and color labels are collected and validated, but a
// parseable embedded variants JSON block short-circuits everything: its
// (validated) count becomes the answer on its own.
func DetectVariants(p *Page) int {
	set := newVariantSet()
	for _, v := range volumeVariants(p) {
		set.add(v)
	}
	for _, v := range colorVariants(p) {
		set.add(v)
	}

	if n, ok := jsonVariantCount(p); ok {
		return n
	}
	return set.len()
}

// IsPlausibleVariant reports whether a candidate label could be a real
// purchasable option. Clothing sizes, standalone size tokens, placeholder
// labels, and over-long strings are all rejected.
func IsPlausibleVariant(label string) bool {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" || utf8.RuneCountInString(normalized) > 100 {
		return false
	}
	for _, kw := range implausibleKeywords {
		if strings.Contains(normalized, kw) {
			return false
		}
	}
	for _, pattern := range sizeTokenPatterns {
		if pattern.MatchString(normalized) {
			return false
		}
	}
	if _, ok := placeholderLabels[normalized]; ok {
		return false
	}
	return true
}

// variantSet deduplicates labels case-insensitively on the trimmed value,
// keeping the first-seen casing.
type variantSet struct {
	seen map[string]struct{}
	kept []string
}

func newVariantSet() *variantSet {
	return &variantSet{seen: make(map[string]struct{})}
}

func (vs *variantSet) add(label string) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return
	}
	if _, ok := vs.seen[key]; ok {
		return
	}
	vs.seen[key] = struct{}{}
	vs.kept = append(vs.kept, strings.TrimSpace(label))
}

func (vs *variantSet) len() int { return len(vs.kept) }

func volumeVariants(p *Page) []string {
	set := newVariantSet()
	for _, opt := range volumeOptionCascade.first(p) {
		if IsPlausibleVariant(opt) {
			set.add(opt)
		}
	}
	for _, btn := range volumeButtonCascade.first(p) {
		if IsPlausibleVariant(btn) {
			set.add(btn)
		}
	}
	return set.kept
}

// colorVariants is gated harder than volume: option labels only count when
// the page URL or the label itself carries a color marker, since generic
// <select> options are usually unrelated dropdowns.
func colorVariants(p *Page) []string {
	set := newVariantSet()
	urlHasColor := strings.Contains(strings.ToLower(p.URL()), "color")
	for _, opt := range colorOptionCascade.first(p) {
		if !urlHasColor && !strings.Contains(strings.ToLower(opt), "цвет") {
			continue
		}
		if IsPlausibleVariant(opt) {
			set.add(opt)
		}
	}
	for _, btn := range colorButtonCascade.first(p) {
		if IsPlausibleVariant(btn) {
			set.add(btn)
		}
	}
	if raw := p.Attr("[data-available-colors]", "data-available-colors"); raw != "" {
		var colors []string
		if err := json.Unmarshal([]byte(raw), &colors); err == nil {
			for _, c := range colors {
				if IsPlausibleVariant(c) {
					set.add(c)
				}
			}
		}
	}
	return set.kept
}

// jsonVariantCount reads the structured variants block. It reports ok only
// for a positive validated count; parse failures fall back to markup
// detection.
func jsonVariantCount(p *Page) (int, bool) {
	raw := p.Attr("[data-variants]", "data-variants")
	if raw == "" {
		p.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
			if strings.Contains(script.Text(), "variants") {
				raw = script.Text()
				return false
			}
			return true
		})
	}
	if raw == "" {
		return 0, false
	}

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return 0, false
	}

	count := 0
	switch v := data.(type) {
	case map[string]any:
		if variants, ok := v["variants"].([]any); ok {
			count = countPlausible(variants)
		} else if options, ok := v["options"].([]any); ok {
			count = countPlausible(options)
		}
	case []any:
		count = countPlausible(v)
	}

	if count == 0 {
		return 0, false
	}
	return count, true
}

func countPlausible(items []any) int {
	n := 0
	for _, item := range items {
		if IsPlausibleVariant(fmt.Sprint(item)) {
			n++
		}
	}
	return n
}
