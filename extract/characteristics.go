package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-alkoteka/models"
	"github.com/aluiziolira/go-scrape-alkoteka/parser"
)

// characteristics gathers the key-value attribute table from up to four
// structural sources. The first of table/list/div markup that yields any
// pairs wins outright; the embedded JSON-LD block is then merged on top,
// but only for keys no earlier source produced. A low-priority source must
// never overwrite a value a more reliable one extracted.
func characteristics(p *Page) map[string]string {
	chars := tableCharacteristics(p)
	if len(chars) == 0 {
		chars = listCharacteristics(p)
	}
	if len(chars) == 0 {
		chars = divCharacteristics(p)
	}
	for k, v := range jsonLDCharacteristics(p) {
		if _, ok := chars[k]; !ok {
			chars[k] = v
		}
	}
	return chars
}

func tableCharacteristics(p *Page) map[string]string {
	chars := make(map[string]string)
	p.Find(`table.characteristics tr, table.specs tr, table[class*="char"] tr`).Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find(".char-name, .spec-name, td:first-child").First().Text())
		value := strings.TrimSpace(row.Find(".char-value, .spec-value, td:last-child").First().Text())

		if key == "" {
			cells := row.Find("td")
			if cells.Length() >= 2 {
				key = strings.TrimSpace(cells.First().Text())
				value = strings.TrimSpace(cells.Last().Text())
			}
		}
		if key != "" && value != "" {
			chars[key] = value
		}
	})
	return chars
}

func listCharacteristics(p *Page) map[string]string {
	chars := make(map[string]string)
	p.Find(`.specs-list, .characteristics-list, [class*="specs"]`).Each(func(_ int, item *goquery.Selection) {
		key := strings.TrimSpace(item.Find("dt, .spec-label, .label").First().Text())
		value := strings.TrimSpace(item.Find("dd, .spec-value, .value").First().Text())
		if key != "" && value != "" {
			chars[key] = value
		}
	})
	return chars
}

func divCharacteristics(p *Page) map[string]string {
	chars := make(map[string]string)
	p.Find(`[class*="specification"], [class*="feature"], [class*="attribute"]`).Each(func(_ int, div *goquery.Selection) {
		key := strings.TrimSpace(div.Find(`[class*="key"], [class*="name"], [class*="label"]`).First().Text())
		value := strings.TrimSpace(div.Find(`[class*="value"], [class*="content"]`).First().Text())
		if key != "" && value != "" {
			chars[key] = value
		}
	})
	return chars
}

// jsonLDCharacteristics reads schema.org product data embedded in the page.
// Malformed blocks contribute nothing; a broken script must never abort
// extraction of the rest of the page.
func jsonLDCharacteristics(p *Page) map[string]string {
	chars := make(map[string]string)
	p.Find(`script[type="application/ld+json"]`).Each(func(_ int, script *goquery.Selection) {
		var data map[string]any
		if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
			return
		}

		if props, ok := data["additionalProperty"].([]any); ok {
			for _, raw := range props {
				prop, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				name, _ := prop["name"].(string)
				value := prop["value"]
				if name != "" && value != nil {
					chars[name] = stringify(value)
				}
			}
		}

		for key, value := range data {
			switch key {
			case "@context", "@type", "url", "image", "name", "description":
				continue
			}
			if s, ok := value.(string); ok && len(s) < 200 {
				chars[key] = s
			}
		}
	})
	return chars
}

// applyCharacteristics maps recognized characteristic keys onto the fixed
// semantic fields. Matching is by keyword containment, case-insensitive,
// across Cyrillic and Latin synonyms; unrecognized keys are retained
// verbatim under the record's attributes.
func (e *Extractor) applyCharacteristics(p *Page, chars map[string]string, product *models.Product) {
	leftover := make(map[string]string)
	for key, value := range chars {
		switch {
		case keyContains(key, "объем", "volume", "size"):
			if product.Volume == "" {
				product.Volume = value
			}
		case keyContains(key, "крепость", "alcohol", "abv"):
			if product.AlcoholContent == nil {
				if v, ok := parser.ExtractFloat(value); ok {
					product.AlcoholContent = models.Float64(v)
				}
			}
		case keyContains(key, "страна", "country", "производство"):
			if product.Country == "" {
				product.Country = value
			}
		case keyContains(key, "год", "year", "vintage"):
			if product.Year == "" {
				if y, ok := parser.ExtractNumber(value); ok {
					product.Year = strconv.Itoa(y)
				}
			}
		default:
			leftover[key] = value
		}
	}

	// Data-attribute fallbacks for pages without a characteristics block.
	if product.AlcoholContent == nil {
		if v, ok := parser.ExtractFloat(p.Attr("[data-alcohol]", "data-alcohol")); ok {
			product.AlcoholContent = models.Float64(v)
		}
	}
	if product.Country == "" {
		product.Country = p.Attr("[data-country]", "data-country")
	}
	if product.Year == "" {
		if y, ok := parser.ExtractNumber(p.Attr("[data-year]", "data-year")); ok {
			product.Year = strconv.Itoa(y)
		}
	}

	if len(leftover) > 0 {
		if product.Attributes == nil {
			product.Attributes = make(map[string]any)
		}
		product.Attributes["characteristics"] = leftover
	}
}

func keyContains(key string, keywords ...string) bool {
	lower := strings.ToLower(key)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
