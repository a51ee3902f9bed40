package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-alkoteka/models"
)

var (
	mainImageCascade = cascade{
		attr(".product-image-main img", "src"),
		attr(".product-main-image", "src"),
		attr(`img[class*="main"]`, "src"),
		attr("[data-main-image]", "data-main-image"),
	}

	galleryCascade = listCascade{
		attrs(".product-gallery img", "src"),
		attrs(".product-carousel img", "src"),
		attrs(`[class*="gallery"] img`, "src"),
		attrs(`img[class*="product"]`, "src"),
		imagesFromJSON,
	}

	view360Cascade = listCascade{
		attrs("[data-360]", "data-360"),
		attrs(".view-360 img", "src"),
		attrs(`img[data-type*="360"]`, "src"),
	}
)

// extractAssets fills the media block: main image, gallery, 360 view and
// videos. Gallery and 360 lists are deduplicated by normalized absolute URL
// and sorted for determinism; video order follows the page.
func (e *Extractor) extractAssets(p *Page, product *models.Product) {
	mainImage := p.AbsoluteURL(mainImageCascade.first(p))
	gallery := normalizeSorted(p, galleryCascade.first(p))
	view360 := normalizeSorted(p, view360Cascade.first(p))
	videos := videoURLs(p)

	if mainImage == "" && len(gallery) == 0 && len(videos) == 0 {
		return
	}

	product.Assets = &models.Assets{
		MainImage:     mainImage,
		GalleryImages: gallery,
		View360:       view360,
		Video:         videos,
		CachedImages:  []string{},
	}
	product.ImageURL = mainImage
	product.ImageURLs = gallery
}

// videoURLs collects direct video sources plus embedded players, keeping
// first-occurrence order.
func videoURLs(p *Page) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	for _, src := range p.Attrs("video source", "src") {
		add(p.AbsoluteURL(src))
	}
	for _, src := range p.Attrs(`iframe[src*="youtube"]`, "src") {
		add(p.AbsoluteURL(src))
	}
	for _, src := range p.Attrs(`iframe[src*="vimeo"]`, "src") {
		add(p.AbsoluteURL(src))
	}
	for _, src := range p.Attrs("video", "src") {
		add(p.AbsoluteURL(src))
	}
	return out
}

// imagesFromJSON is the last gallery fallback: image/src values inside
// embedded application/json blocks. Unparseable scripts contribute nothing.
func imagesFromJSON(p *Page) []string {
	var images []string
	p.Find(`script[type="application/json"]`).Each(func(_ int, script *goquery.Selection) {
		content := script.Text()
		lower := strings.ToLower(content)
		if !strings.Contains(lower, "image") && !strings.Contains(lower, "src") {
			return
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			return
		}
		for key, value := range data {
			keyLower := strings.ToLower(key)
			switch v := value.(type) {
			case string:
				if strings.Contains(keyLower, "image") || strings.Contains(keyLower, "src") {
					images = append(images, v)
				}
			case []any:
				for _, item := range v {
					entry, ok := item.(map[string]any)
					if !ok {
						continue
					}
					for k, nested := range entry {
						kl := strings.ToLower(k)
						if strings.Contains(kl, "image") || strings.Contains(kl, "src") {
							if s, ok := nested.(string); ok {
								images = append(images, s)
							}
						}
					}
				}
			}
		}
	})
	return images
}

func normalizeSorted(p *Page, urls []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range urls {
		abs := p.AbsoluteURL(u)
		if abs == "" {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}
