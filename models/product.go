// Package models defines data structures for the scraper.
package models

import "time"

// Product represents a single product record. Extraction fills whatever it
// can find; the normalization pipeline is responsible for defaults and
// invariants. Optional scalars are pointers so that "absent" stays
// distinguishable from a zero value until the pipeline has run.
type Product struct {
	ProductID  string `csv:"product_id" json:"product_id"`
	Name       string `csv:"name" json:"name"`
	Category   string `csv:"category" json:"category,omitempty"`
	Brand      string `csv:"brand" json:"brand,omitempty"`
	SKU        string `csv:"sku" json:"sku,omitempty"`
	ProductURL string `csv:"product_url" json:"product_url"`
	Source     string `csv:"source" json:"source"`
	Region     string `csv:"region" json:"region"`
	Currency   string `csv:"currency" json:"currency"`

	Price              *float64 `csv:"price" json:"price,omitempty"`
	OriginalPrice      *float64 `csv:"original_price" json:"original_price,omitempty"`
	DiscountPercentage *int     `csv:"discount_percentage" json:"discount_percentage,omitempty"`

	Volume         string   `csv:"volume" json:"volume,omitempty"`
	AlcoholContent *float64 `csv:"alcohol_content" json:"alcohol_content,omitempty"`
	Country        string   `csv:"country" json:"country,omitempty"`
	Year           string   `csv:"year" json:"year,omitempty"`

	Description string `csv:"description" json:"description,omitempty"`

	InStock            *bool  `csv:"in_stock" json:"in_stock,omitempty"`
	StockQuantity      *int   `csv:"stock_quantity" json:"stock_quantity,omitempty"`
	AvailabilityStatus string `csv:"availability_status" json:"availability_status,omitempty"`

	Rating      *float64 `csv:"rating" json:"rating,omitempty"`
	ReviewCount *int     `csv:"review_count" json:"review_count,omitempty"`

	ImageURL  string   `csv:"image_url" json:"image_url,omitempty"`
	ImageURLs []string `csv:"-" json:"image_urls"`

	MarketingTags []string       `csv:"-" json:"marketing_tags"`
	Tags          []string       `csv:"-" json:"tags"`
	Attributes    map[string]any `csv:"-" json:"attributes"`

	PriceData *PriceData `csv:"-" json:"price_data,omitempty"`
	StockData *StockData `csv:"-" json:"stock_data,omitempty"`
	Assets    *Assets    `csv:"-" json:"assets,omitempty"`

	// ScrapedAt is a unix timestamp in seconds; zero means not yet stamped.
	ScrapedAt int64 `csv:"scraped_at" json:"scraped_at"`
}

// PriceData holds the nested price block extracted from a product page.
type PriceData struct {
	Current  float64 `json:"current"`
	Original float64 `json:"original"`
	// SaleTag is kept as a pointer so an absent tag serializes as an
	// explicit null rather than being omitted.
	SaleTag  *string `json:"sale_tag"`
	Currency string  `json:"currency"`
}

// StockData holds the nested availability block.
type StockData struct {
	InStock          bool     `json:"in_stock"`
	Count            int      `json:"count"`
	Status           string   `json:"status"`
	AvailableRegions []string `json:"available_regions"`
}

// Assets holds the media URLs attached to a product.
type Assets struct {
	MainImage     string   `json:"main_image"`
	GalleryImages []string `json:"gallery_images"`
	View360       []string `json:"view_360"`
	Video         []string `json:"video"`
	CachedImages  []string `json:"cached_images"`
}

// ScrapeResult holds the overall result of a scraping run.
type ScrapeResult struct {
	Products     []*Product
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
