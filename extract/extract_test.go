package extract

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-alkoteka/models"
)

func mustPage(t *testing.T, html, pageURL string) *Page {
	t.Helper()
	p, err := NewPage(strings.NewReader(html), pageURL)
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	return p
}

func testExtractor() *Extractor {
	e := NewExtractor("krasnodar")
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	return e
}

const productPage = `<html><body>
<div data-product-id="12345">
  <nav class="breadcrumb">
    <a href="/">Главная</a>
    <a href="/catalog/">Каталог</a>
    <a href="/catalog/konyak/">Коньяк</a>
  </nav>
  <h1 class="product-title">Коньяк  Арарат   5 лет</h1>
  <div class="product-volume">0.5 л</div>
  <span class="brand-name">Арарат</span>
  <div class="sku-row"><label>Артикул</label> AR-505</div>
  <div class="price-current">1 125 ₽</div>
  <div class="price-old">1 500 ₽</div>
  <button class="buy-btn">В корзину</button>
  <div class="stock-info">В наличии 12 шт</div>
  <span class="rating-value">4.7</span>
  <span class="review-count">31 отзыв</span>
  <div class="product-image-main"><img src="/img/12345/main.jpg"></div>
  <div class="product-gallery">
    <img src="/img/12345/b.jpg">
    <img src="/img/12345/a.jpg">
    <img src="/img/12345/b.jpg">
  </div>
  <span class="product-tag">Новинка</span>
  <span class="product-tag">%</span>
  <div class="product-description">Выдержанный армянский коньяк.</div>
  <table class="characteristics">
    <tr><td>Крепость</td><td>40%</td></tr>
    <tr><td>Страна</td><td>Армения</td></tr>
    <tr><td>Выдержка</td><td>5 лет</td></tr>
  </table>
</div>
</body></html>`

func TestExtractFullProductPage(t *testing.T) {
	e := testExtractor()
	p := mustPage(t, productPage, "https://alkoteka.com/product/12345/")

	product := e.Extract(p)
	if product == nil {
		t.Fatalf("Extract returned nil for a product page")
	}

	if product.ProductID != "12345" {
		t.Errorf("product_id = %q, want 12345", product.ProductID)
	}
	if product.ProductURL != "https://alkoteka.com/product/12345/" {
		t.Errorf("product_url = %q", product.ProductURL)
	}
	if product.Region != "krasnodar" || product.Source != "alkoteka.com" {
		t.Errorf("region/source = %q/%q", product.Region, product.Source)
	}
	if product.ScrapedAt != 1700000000 {
		t.Errorf("scraped_at = %d", product.ScrapedAt)
	}

	// Title is whitespace-collapsed and enriched with the volume.
	if want := "Коньяк Арарат 5 лет 0.5 л"; product.Name != want {
		t.Errorf("name = %q, want %q", product.Name, want)
	}
	if product.Volume != "0.5 л" {
		t.Errorf("volume = %q", product.Volume)
	}
	if product.Brand != "Арарат" {
		t.Errorf("brand = %q", product.Brand)
	}
	if product.SKU != "AR-505" {
		t.Errorf("sku = %q", product.SKU)
	}
	if product.Category != "Коньяк" {
		t.Errorf("category = %q, want last breadcrumb", product.Category)
	}

	if product.PriceData == nil {
		t.Fatalf("price data missing")
	}
	if product.PriceData.Current != 1125 || product.PriceData.Original != 1500 {
		t.Errorf("price = %v/%v, want 1125/1500", product.PriceData.Current, product.PriceData.Original)
	}
	if product.PriceData.SaleTag == nil || *product.PriceData.SaleTag != "Скидка 25%" {
		t.Errorf("sale_tag = %v", product.PriceData.SaleTag)
	}
	if product.DiscountPercentage == nil || *product.DiscountPercentage != 25 {
		t.Errorf("discount = %v, want 25", product.DiscountPercentage)
	}

	if product.InStock == nil || !*product.InStock {
		t.Errorf("in_stock = %v, want true", product.InStock)
	}
	if product.StockQuantity == nil || *product.StockQuantity != 12 {
		t.Errorf("stock_quantity = %v, want 12", product.StockQuantity)
	}

	if product.Rating == nil || *product.Rating != 4.7 {
		t.Errorf("rating = %v, want 4.7", product.Rating)
	}
	if product.ReviewCount == nil || *product.ReviewCount != 31 {
		t.Errorf("review_count = %v, want 31", product.ReviewCount)
	}

	if product.Assets == nil {
		t.Fatalf("assets missing")
	}
	if product.Assets.MainImage != "https://alkoteka.com/img/12345/main.jpg" {
		t.Errorf("main image = %q", product.Assets.MainImage)
	}
	// Gallery is deduplicated and sorted lexicographically.
	wantGallery := []string{
		"https://alkoteka.com/img/12345/a.jpg",
		"https://alkoteka.com/img/12345/b.jpg",
	}
	if !reflect.DeepEqual(product.Assets.GalleryImages, wantGallery) {
		t.Errorf("gallery = %v, want %v", product.Assets.GalleryImages, wantGallery)
	}

	// Single-character badges are dropped from marketing tags.
	if !reflect.DeepEqual(product.MarketingTags, []string{"Новинка"}) {
		t.Errorf("marketing_tags = %v", product.MarketingTags)
	}

	if product.AlcoholContent == nil || *product.AlcoholContent != 40 {
		t.Errorf("alcohol_content = %v, want 40", product.AlcoholContent)
	}
	if product.Country != "Армения" {
		t.Errorf("country = %q", product.Country)
	}
	chars, ok := product.Attributes["characteristics"].(map[string]string)
	if !ok || chars["Выдержка"] != "5 лет" {
		t.Errorf("leftover characteristics = %v", product.Attributes["characteristics"])
	}
}

func TestExtractReturnsNilForNonProductPage(t *testing.T) {
	e := testExtractor()
	p := mustPage(t, `<html><body><div class="error">404</div></body></html>`,
		"https://alkoteka.com/missing")

	if product := e.Extract(p); product != nil {
		t.Fatalf("expected nil for a page without product markup, got %+v", product)
	}
}

func TestExtractProductIDFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "digit segment",
			url:      "https://alkoteka.com/product/98765/",
			expected: "98765",
		},
		{
			name:     "digit segment not last",
			url:      "https://alkoteka.com/product/98765/reviews",
			expected: "98765",
		},
		{
			name:     "slug fallback",
			url:      "https://alkoteka.com/product/ararat-5-let",
			expected: "ararat-5-let",
		},
	}

	e := testExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPage(t, `<html><body><h1>Товар</h1></body></html>`, tt.url)
			product := e.Extract(p)
			if product == nil {
				t.Fatalf("Extract returned nil")
			}
			if product.ProductID != tt.expected {
				t.Errorf("product_id = %q, want %q", product.ProductID, tt.expected)
			}
		})
	}
}

func TestExtractMarkupIDBeatsURL(t *testing.T) {
	e := testExtractor()
	p := mustPage(t,
		`<html><body><div data-product-id="111"><h1>Товар</h1></div></body></html>`,
		"https://alkoteka.com/product/99999/")

	product := e.Extract(p)
	if product.ProductID != "111" {
		t.Errorf("product_id = %q, markup attribute should win over URL", product.ProductID)
	}
}

func TestExtractOriginalPriceFallsBackToCurrent(t *testing.T) {
	e := testExtractor()
	p := mustPage(t, `<html><body>
<h1>Товар</h1>
<div class="price-current">990 ₽</div>
</body></html>`, "https://alkoteka.com/product/1/")

	product := e.Extract(p)
	if product.PriceData == nil {
		t.Fatalf("price data missing")
	}
	if product.PriceData.Current != 990 || product.PriceData.Original != 990 {
		t.Errorf("price = %v/%v, want 990/990", product.PriceData.Current, product.PriceData.Original)
	}
	// No discount means no synthesized sale tag.
	if product.PriceData.SaleTag != nil {
		t.Errorf("sale_tag = %q, want nil", *product.PriceData.SaleTag)
	}
	if product.DiscountPercentage == nil || *product.DiscountPercentage != 0 {
		t.Errorf("discount = %v, want 0", product.DiscountPercentage)
	}
}

func TestExtractNoPriceMarkup(t *testing.T) {
	e := testExtractor()
	p := mustPage(t, `<html><body><h1>Товар</h1></body></html>`,
		"https://alkoteka.com/product/1/")

	product := e.Extract(p)
	if product.PriceData != nil {
		t.Errorf("price data = %+v, want nil", product.PriceData)
	}
	if product.Price != nil {
		t.Errorf("price = %v, want nil", *product.Price)
	}
}

func TestExtractStockTriState(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		inStock    *bool
		status     string
		wantsBlock bool
	}{
		{
			name:       "buy button means in stock",
			html:       `<h1>Т</h1><button class="buy-btn">Купить</button>`,
			inStock:    models.Bool(true),
			wantsBlock: true,
		},
		{
			name:       "explicit in stock text",
			html:       `<h1>Т</h1><div class="in-stock">В наличии</div>`,
			inStock:    models.Bool(true),
			status:     "В наличии",
			wantsBlock: true,
		},
		{
			name:       "explicit out of stock",
			html:       `<h1>Т</h1><div class="out-of-stock">Нет в наличии</div>`,
			inStock:    models.Bool(false),
			status:     "Нет в наличии",
			wantsBlock: true,
		},
		{
			name:       "preorder stays unknown",
			html:       `<h1>Т</h1><div class="preorder">Предзаказ</div>`,
			inStock:    nil,
			status:     "Предзаказ",
			wantsBlock: true,
		},
		{
			name:       "silent markup stays unknown",
			html:       `<h1>Т</h1><p>Просто описание</p>`,
			inStock:    nil,
			wantsBlock: false,
		},
	}

	e := testExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPage(t, "<html><body>"+tt.html+"</body></html>",
				"https://alkoteka.com/product/1/")
			product := e.Extract(p)
			if product == nil {
				t.Fatalf("Extract returned nil")
			}

			switch {
			case tt.inStock == nil && product.InStock != nil:
				t.Errorf("in_stock = %v, want nil (unknown)", *product.InStock)
			case tt.inStock != nil && (product.InStock == nil || *product.InStock != *tt.inStock):
				t.Errorf("in_stock = %v, want %v", product.InStock, *tt.inStock)
			}
			if product.AvailabilityStatus != tt.status {
				t.Errorf("status = %q, want %q", product.AvailabilityStatus, tt.status)
			}
			if (product.StockData != nil) != tt.wantsBlock {
				t.Errorf("stock_data present = %v, want %v", product.StockData != nil, tt.wantsBlock)
			}
		})
	}
}

func TestCharacteristicsSourcePrecedence(t *testing.T) {
	// Table markup and JSON-LD disagree on a key; the table must win and
	// the JSON-LD block may only contribute novel keys.
	html := `<html><body>
<h1>Т</h1>
<table class="characteristics">
  <tr><td>Страна</td><td>Армения</td></tr>
</table>
<script type="application/ld+json">
{"@type":"Product","additionalProperty":[
  {"name":"Страна","value":"Грузия"},
  {"name":"Сорт винограда","value":"Ркацители"}
]}
</script>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	chars := characteristics(p)
	if chars["Страна"] != "Армения" {
		t.Errorf("Страна = %q, structural source must win", chars["Страна"])
	}
	if chars["Сорт винограда"] != "Ркацители" {
		t.Errorf("novel JSON-LD key missing: %v", chars)
	}
}

func TestCharacteristicsMalformedJSONLDIgnored(t *testing.T) {
	html := `<html><body>
<h1>Т</h1>
<table class="characteristics">
  <tr><td>Страна</td><td>Армения</td></tr>
</table>
<script type="application/ld+json">{not json</script>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	chars := characteristics(p)
	if len(chars) != 1 || chars["Страна"] != "Армения" {
		t.Errorf("chars = %v, want only the table pair", chars)
	}
}

func TestApplyCharacteristicsDataAttributeFallbacks(t *testing.T) {
	e := testExtractor()
	html := `<html><body>
<h1>Т</h1>
<div data-alcohol="40.5" data-country="Франция" data-year="год 2019"></div>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	product := e.Extract(p)
	if product.AlcoholContent == nil || *product.AlcoholContent != 40.5 {
		t.Errorf("alcohol_content = %v, want 40.5", product.AlcoholContent)
	}
	if product.Country != "Франция" {
		t.Errorf("country = %q", product.Country)
	}
	if product.Year != "2019" {
		t.Errorf("year = %q, want 2019", product.Year)
	}
}

func TestExtractVolumeNotDuplicatedInTitle(t *testing.T) {
	e := testExtractor()
	html := `<html><body>
<h1>Вино красное 0.75 л</h1>
<div class="product-volume">0.75 л</div>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	product := e.Extract(p)
	if want := "Вино красное 0.75 л"; product.Name != want {
		t.Errorf("name = %q, want %q (volume already present)", product.Name, want)
	}
}

func TestProductLinks(t *testing.T) {
	html := `<html><body>
<a class="product-link" href="/product/1/">One</a>
<a class="product-link" href="/product/2/">Two</a>
<a class="product-link" href="https://alkoteka.com/product/1/">One again</a>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/catalog/konyak/")

	links := ProductLinks(p)
	want := []string{
		"https://alkoteka.com/product/1/",
		"https://alkoteka.com/product/2/",
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestProductLinksGenericCardFallback(t *testing.T) {
	html := `<html><body>
<div class="product-card"><a href="/product/7/">Seven</a></div>
<div class="product-card"><a href="/product/8/">Eight</a></div>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/catalog/vino/")

	links := ProductLinks(p)
	if len(links) != 2 {
		t.Fatalf("links = %v, want 2 entries", links)
	}
	if links[0] != "https://alkoteka.com/product/7/" {
		t.Errorf("first link = %q", links[0])
	}
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "dedicated class",
			html:     `<a class="next-page" href="/catalog/konyak/?page=2">2</a>`,
			expected: "https://alkoteka.com/catalog/konyak/?page=2",
		},
		{
			name:     "rel attribute",
			html:     `<a rel="next" href="?page=3">3</a>`,
			expected: "https://alkoteka.com/catalog/konyak/?page=3",
		},
		{
			name:     "label fallback",
			html:     `<a href="/catalog/konyak/?page=4">Следующая страница</a>`,
			expected: "https://alkoteka.com/catalog/konyak/?page=4",
		},
		{
			name:     "last page",
			html:     `<a href="/catalog/konyak/?page=1">Предыдущая</a>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPage(t, "<html><body>"+tt.html+"</body></html>",
				"https://alkoteka.com/catalog/konyak/")
			if got := NextPageURL(p); got != tt.expected {
				t.Errorf("NextPageURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractVideoOrderPreserved(t *testing.T) {
	e := testExtractor()
	html := `<html><body>
<h1>Т</h1>
<video><source src="/video/tour.mp4"></video>
<iframe src="https://www.youtube.com/embed/abc123"></iframe>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	product := e.Extract(p)
	if product.Assets == nil {
		t.Fatalf("assets missing")
	}
	want := []string{
		"https://alkoteka.com/video/tour.mp4",
		"https://www.youtube.com/embed/abc123",
	}
	if !reflect.DeepEqual(product.Assets.Video, want) {
		t.Errorf("video = %v, want %v", product.Assets.Video, want)
	}
}
