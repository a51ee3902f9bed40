package pipeline

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-alkoteka/models"
	"github.com/aluiziolira/go-scrape-alkoteka/parser"
)

// ValidationError is the rejection signal for a record that is missing
// required fields. A rejected record is dropped entirely; no later stage
// runs and nothing partial is emitted.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "validation: missing required fields: " + strings.Join(e.Missing, ", ")
}

// Normalizer applies the three-stage record pipeline: Validation, then
// Defaulting, then Cleaning. The order is fixed; Cleaning's range clamps
// assume Defaulting has materialized the nested blocks, and Defaulting
// assumes Validation has already rejected hopeless records.
type Normalizer struct {
	region string
	now    func() time.Time
}

// NewNormalizer builds a normalizer stamping the given region on records
// that arrive without one.
func NewNormalizer(region string) *Normalizer {
	return &Normalizer{region: region, now: time.Now}
}

// Normalize runs the record through all three stages in place. It returns
// a *ValidationError when Stage 1 rejects the record; any other outcome is
// a fully normalized record. Repairs are logged, never surfaced as errors.
func (n *Normalizer) Normalize(p *models.Product) error {
	if err := n.validate(p); err != nil {
		return err
	}
	n.applyDefaults(p)
	n.clean(p)
	return nil
}

// validate is Stage 1. It rejects records missing any required field,
// reporting all violations at once, and repairs the two cross-field
// contradictions that do not warrant a drop: an impossible price pair and
// a negative stock count.
func (n *Normalizer) validate(p *models.Product) error {
	var missing []string
	if strings.TrimSpace(p.ProductID) == "" {
		missing = append(missing, "product_id")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.ProductURL) == "" {
		missing = append(missing, "product_url")
	}
	if p.ScrapedAt == 0 {
		missing = append(missing, "scraped_at")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if pd := p.PriceData; pd != nil && pd.Current > pd.Original {
		slog.Warn("current price exceeds original, clamping",
			slog.Float64("current", pd.Current),
			slog.Float64("original", pd.Original),
			slog.String("product_id", p.ProductID),
		)
		pd.Current = pd.Original
	}
	if sd := p.StockData; sd != nil && sd.Count < 0 {
		slog.Warn("negative stock count, clamping to 0",
			slog.Int("count", sd.Count),
			slog.String("product_id", p.ProductID),
		)
		sd.Count = 0
	}
	if p.Price != nil && p.OriginalPrice != nil && *p.Price > *p.OriginalPrice {
		slog.Warn("price exceeds original_price, clamping",
			slog.Float64("price", *p.Price),
			slog.Float64("original_price", *p.OriginalPrice),
			slog.String("product_id", p.ProductID),
		)
		p.Price = models.Float64(*p.OriginalPrice)
	}
	return nil
}

// applyDefaults is Stage 2. Collection defaults are fresh containers per
// record; a shared default slice or map aliased across records would let
// one record's cleanup mutate another.
func (n *Normalizer) applyDefaults(p *models.Product) {
	if p.MarketingTags == nil {
		p.MarketingTags = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	if p.Attributes == nil {
		p.Attributes = make(map[string]any)
	}
	if p.ReviewCount == nil {
		p.ReviewCount = models.Int(0)
	}
	if p.StockQuantity == nil {
		p.StockQuantity = models.Int(0)
	}
	if p.Currency == "" {
		p.Currency = "RUB"
	}
	if p.Region == "" {
		p.Region = n.region
	}
	if p.Source == "" {
		p.Source = "alkoteka.com"
	}
	if p.ScrapedAt == 0 {
		p.ScrapedAt = n.now().Unix()
	}

	if pd := p.PriceData; pd != nil {
		if pd.Currency == "" {
			pd.Currency = "RUB"
		}
		// SaleTag stays nil when absent: the exported record carries an
		// explicit null, not a missing key.
	}
	if a := p.Assets; a != nil {
		if a.GalleryImages == nil {
			a.GalleryImages = []string{}
		}
		if a.View360 == nil {
			a.View360 = []string{}
		}
		if a.Video == nil {
			a.Video = []string{}
		}
		if a.CachedImages == nil {
			a.CachedImages = []string{}
		}
	}
	if sd := p.StockData; sd != nil {
		if sd.Status == "" {
			sd.Status = "unknown"
		}
		if sd.AvailableRegions == nil {
			sd.AvailableRegions = []string{}
		}
	}
}

// clean is Stage 3 and produces the final record. It repairs or clears
// out-of-range values but never rejects.
func (n *Normalizer) clean(p *models.Product) {
	p.Name = parser.CleanTitle(p.Name)
	p.Brand = parser.CleanTitle(p.Brand)
	p.Category = parser.CleanTitle(p.Category)

	p.MarketingTags = dedupeSortTags(p.MarketingTags)
	p.Tags = dedupeSortTags(p.Tags)
	p.ImageURLs = dedupeKeepOrder(p.ImageURLs)

	cleanAttributes(p.Attributes)

	if a := p.Assets; a != nil {
		a.GalleryImages = dedupeKeepOrder(a.GalleryImages)
		a.View360 = dedupeKeepOrder(a.View360)
		a.Video = dedupeKeepOrder(a.Video)
		a.CachedImages = dedupeKeepOrder(a.CachedImages)
	}

	if p.Description != "" {
		desc := strings.ReplaceAll(p.Description, "\r", "")
		desc = strings.ReplaceAll(desc, "\n", " ")
		p.Description = parser.CleanTitle(desc)
	}

	if p.Price != nil && *p.Price < 0 {
		slog.Warn("negative price, clamping to 0", slog.String("product_id", p.ProductID))
		p.Price = models.Float64(0)
	}
	if p.OriginalPrice != nil && *p.OriginalPrice < 0 {
		slog.Warn("negative original_price, clamping to 0", slog.String("product_id", p.ProductID))
		p.OriginalPrice = models.Float64(0)
	}
	// A rating outside the scale is untrustworthy rather than miscoded, so
	// it is cleared instead of clamped. Discounts get the opposite
	// treatment below.
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		slog.Warn("rating out of range, clearing",
			slog.Float64("rating", *p.Rating),
			slog.String("product_id", p.ProductID),
		)
		p.Rating = nil
	}
	if p.DiscountPercentage != nil && (*p.DiscountPercentage < 0 || *p.DiscountPercentage > 100) {
		slog.Warn("discount percentage out of range, resetting to 0",
			slog.Int("discount", *p.DiscountPercentage),
			slog.String("product_id", p.ProductID),
		)
		p.DiscountPercentage = models.Int(0)
	}
}

// dedupeSortTags deduplicates case-sensitively on the trimmed value, drops
// empties, and sorts alphabetically.
func dedupeSortTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// dedupeKeepOrder deduplicates by exact value, preserving first-occurrence
// order. URL lists are never re-sorted here: gallery ordering was settled
// at extraction time.
func dedupeKeepOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// cleanAttributes trims string values and drops falsy entries from list
// values inside the free-form attributes mapping.
func cleanAttributes(attrs map[string]any) {
	for key, value := range attrs {
		switch v := value.(type) {
		case string:
			attrs[key] = parser.CleanTitle(v)
		case []string:
			kept := make([]string, 0, len(v))
			for _, item := range v {
				if strings.TrimSpace(item) != "" {
					kept = append(kept, item)
				}
			}
			attrs[key] = kept
		case map[string]string:
			for k, item := range v {
				v[k] = parser.CleanTitle(item)
			}
		}
	}
}
