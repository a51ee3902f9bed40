package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-alkoteka/models"
	"github.com/aluiziolira/go-scrape-alkoteka/parser"
)

// Source is the fixed data-source identifier stamped on every record.
const Source = "alkoteka.com"

var (
	productIDCascade = cascade{
		attr("div[data-product-id]", "data-product-id"),
		attr(`input[name="product_id"]`, "value"),
		urlDigitSegment,
		urlLastSegment,
	}

	titleCascade = cascade{
		text("h1.product-title"),
		text("h1"),
		text(".product-name"),
	}

	volumeCascade = cascade{
		attr("[data-volume]", "data-volume"),
		text(".product-volume"),
		textContaining("span", "мл", "л"),
	}

	brandCascade = cascade{
		text(".brand-name"),
		attr("[data-brand]", "data-brand"),
		text("a.brand-link"),
	}

	skuCascade = cascade{
		attr("[data-sku]", "data-sku"),
		attr(`input[name="sku"]`, "value"),
		labelSibling("SKU", "Артикул"),
	}

	currentPriceCascade = cascade{
		text(".price-current"),
		text(".product-price"),
		attr("[data-price]", "data-price"),
		text(`span[class*="price"]`),
	}

	originalPriceCascade = cascade{
		text(".price-old"),
		text(".price-original"),
		attr("[data-original-price]", "data-original-price"),
		text(".product-original-price"),
	}

	descriptionCascade = cascade{
		text(".product-description"),
		text(`[class*="description"]`),
		text("p.product-text"),
	}

	stockStatusCascade = cascade{
		text(".stock-status"),
		text(".availability-text"),
	}

	breadcrumbCascade = listCascade{
		texts(".breadcrumb a"),
		texts(".breadcrumb-link"),
		texts(`nav[class*="breadcrumb"] a`),
	}

	marketingTagCascade = listCascade{
		texts(".product-tag"),
		texts(".tag"),
		texts(`[class*="badge"]`),
	}

	productLinkCascade = listCascade{
		attrs("a.product-link", "href"),
		attrs("a.catalog-product", "href"),
		attrs(`div.product-card a, div.product-item a, div[class*="product"] a`, "href"),
	}

	nextPageCascade = cascade{
		attr("a.next-page", "href"),
		attr(`a[rel="next"]`, "href"),
		nextPageByLabel,
	}

	stockCountRe = regexp.MustCompile(`(?i)(\d+)\s*шт`)
)

// Extractor turns product pages into raw candidate records. It carries no
// per-page state; one instance is shared across concurrent workers.
type Extractor struct {
	region string
	now    func() time.Time
}

// NewExtractor builds an extractor that stamps records with the given
// region identifier.
func NewExtractor(region string) *Extractor {
	return &Extractor{region: region, now: time.Now}
}

// Extract produces a raw candidate record from a product page. It returns
// nil when the page does not look like a product page at all (no title
// markup). Individual missing fields are left absent, never defaulted.
func (e *Extractor) Extract(p *Page) *models.Product {
	if !p.Has("h1, .product-title, .title") {
		return nil
	}

	product := &models.Product{
		ProductID:  productIDCascade.first(p),
		ProductURL: p.URL(),
		Region:     e.region,
		Source:     Source,
		ScrapedAt:  e.now().Unix(),
	}

	volume := volumeCascade.first(p)
	product.Volume = volume

	if title := titleCascade.first(p); title != "" {
		title = parser.CleanTitle(title)
		if volume != "" && !strings.Contains(title, volume) {
			title = title + " " + volume
		}
		product.Name = title
	}

	product.Brand = parser.CleanTitle(brandCascade.first(p))
	product.SKU = skuCascade.first(p)

	if crumbs := breadcrumbCascade.first(p); len(crumbs) > 0 {
		product.Category = crumbs[len(crumbs)-1]
	}

	if pd := e.priceData(p); pd != nil {
		product.PriceData = pd
		product.Price = models.Float64(pd.Current)
		product.OriginalPrice = models.Float64(pd.Original)
		if d, ok := parser.CalculateDiscount(pd.Original, pd.Current); ok {
			product.DiscountPercentage = models.Int(d)
		}
	}

	e.extractStock(p, product)
	e.extractAssets(p, product)

	product.Description = descriptionCascade.first(p)

	chars := characteristics(p)
	e.applyCharacteristics(p, chars, product)

	if rating, ok := parser.ExtractFloat(p.Text("span.rating-value")); ok {
		product.Rating = models.Float64(rating)
	}
	if count, ok := parser.ExtractNumber(p.Text("span.review-count")); ok {
		product.ReviewCount = models.Int(count)
	}

	product.MarketingTags = marketingTags(p)

	if n := DetectVariants(p); n > 0 {
		if product.Attributes == nil {
			product.Attributes = make(map[string]any)
		}
		product.Attributes["variants_count"] = n
	}

	return product
}

// priceData extracts the nested price block. The original price falls back
// to the current price, and a human-readable sale tag is synthesized only
// when there is an actual discount.
func (e *Extractor) priceData(p *Page) *models.PriceData {
	current, ok := parser.ParsePrice(currentPriceCascade.first(p))
	if !ok {
		return nil
	}

	original, ok := parser.ParsePrice(originalPriceCascade.first(p))
	if !ok {
		original = current
	}

	pd := &models.PriceData{
		Current:  current,
		Original: original,
		Currency: "RUB",
	}
	if d, ok := parser.CalculateDiscount(original, current); ok && d > 0 {
		pd.SaleTag = models.String(fmt.Sprintf("Скидка %d%%", d))
	}
	return pd
}

// extractStock derives the tri-state availability. A visible purchase
// action means in stock; explicit text markers decide otherwise; preorder
// or silent markup stays unknown and the top-level flag is left absent.
func (e *Extractor) extractStock(p *Page, product *models.Product) {
	inStock := checkInStock(p)
	count, hasCount := stockCount(p)
	status := stockStatus(p)

	product.InStock = inStock
	if hasCount {
		product.StockQuantity = models.Int(count)
	}
	product.AvailabilityStatus = status

	if inStock == nil && status == "" {
		return
	}

	sd := &models.StockData{
		InStock:          inStock == nil || *inStock,
		Status:           status,
		AvailableRegions: []string{},
	}
	if hasCount {
		sd.Count = count
	}
	product.StockData = sd
}

func checkInStock(p *Page) *bool {
	if p.Has(`button.buy-btn, button[data-action="add-to-cart"]`) {
		return models.Bool(true)
	}
	if t := p.Text(".in-stock, .availability-in-stock"); t != "" && strings.Contains(strings.ToLower(t), "в наличии") {
		return models.Bool(true)
	}
	if t := p.Text(".out-of-stock, .availability-out"); t != "" && strings.Contains(strings.ToLower(t), "нет") {
		return models.Bool(false)
	}
	// Preorder markup is deliberately ambiguous: not for sale now, not
	// sold out either.
	return nil
}

func stockCount(p *Page) (int, bool) {
	if m := stockCountRe.FindStringSubmatch(p.Find("body").Text()); m != nil {
		if n, ok := parser.ExtractNumber(m[1]); ok {
			return n, true
		}
	}
	if v := p.Attr("[data-stock-count]", "data-stock-count"); v != "" {
		if n, ok := parser.ExtractNumber(v); ok {
			return n, true
		}
	}
	return 0, false
}

func stockStatus(p *Page) string {
	if s := stockStatusCascade.first(p); s != "" {
		return s
	}
	switch {
	case p.Has(".preorder, [data-preorder]"):
		return "Предзаказ"
	case p.Has(".on-order"):
		return "Под заказ"
	case p.Has(".out-of-stock"):
		return "Нет в наличии"
	case p.Has(".in-stock"):
		return "В наличии"
	}
	return ""
}

func marketingTags(p *Page) []string {
	var out []string
	for _, t := range marketingTagCascade.first(p) {
		// Single-character badges are icon glyphs, not tags.
		if len([]rune(t)) > 1 {
			out = append(out, t)
		}
	}
	return out
}

// ProductLinks returns the absolutized product page links found on a
// category page, trying the site's dedicated link class before generic
// product-card anchors.
func ProductLinks(p *Page) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, href := range productLinkCascade.first(p) {
		abs := p.AbsoluteURL(href)
		if abs == "" {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}

// NextPageURL returns the absolutized pagination link, or "" on the last
// page.
func NextPageURL(p *Page) string {
	if href := nextPageCascade.first(p); href != "" {
		return p.AbsoluteURL(href)
	}
	return ""
}

func nextPageByLabel(p *Page) string {
	found := ""
	p.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), "Следующая") {
			if href, ok := s.Attr("href"); ok {
				found = strings.TrimSpace(href)
				return false
			}
		}
		return true
	})
	return found
}

// urlDigitSegment returns the last all-digit path segment of the page URL.
func urlDigitSegment(p *Page) string {
	parts := strings.Split(strings.Trim(p.URL(), "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" && isDigits(parts[i]) {
			return parts[i]
		}
	}
	return ""
}

// urlLastSegment is the last-resort product id: the final path segment.
func urlLastSegment(p *Page) string {
	parts := strings.Split(strings.TrimRight(p.URL(), "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
