package extract

import (
	"strings"
	"testing"
)

func TestIsPlausibleVariant(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected bool
	}{
		{name: "volume label", label: "500ml", expected: true},
		{name: "volume with unit", label: "0.5 л", expected: true},
		{name: "color label", label: "Красное", expected: true},
		{name: "empty", label: "", expected: false},
		{name: "whitespace only", label: "   ", expected: false},
		{name: "standalone size token", label: "XL", expected: false},
		{name: "size token lowercase", label: "m", expected: false},
		{name: "size prefix", label: "Size L", expected: false},
		{name: "clothing keyword russian", label: "Размер 42", expected: false},
		{name: "clothing keyword english", label: "Shirt style", expected: false},
		{name: "material keyword", label: "Материал: хлопок", expected: false},
		{name: "placeholder select", label: "Select", expected: false},
		{name: "placeholder russian", label: " выбрать ", expected: false},
		{name: "over-long label", label: strings.Repeat("а", 101), expected: false},
		{name: "boundary length label", label: strings.Repeat("а", 100), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlausibleVariant(tt.label); got != tt.expected {
				t.Errorf("IsPlausibleVariant(%q) = %v, want %v", tt.label, got, tt.expected)
			}
		})
	}
}

func TestDetectVariantsFromVolumeButtons(t *testing.T) {
	html := `<html><body>
<button class="volume-btn">0.5L</button>
<button class="volume-btn">0.7L</button>
<button class="volume-btn">0.5l</button>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	// Dedupe is case-insensitive: 0.5L and 0.5l are the same variant.
	if got := DetectVariants(p); got != 2 {
		t.Errorf("DetectVariants() = %d, want 2", got)
	}
}

func TestDetectVariantsFiltersImplausibleLabels(t *testing.T) {
	html := `<html><body>
<select class="volume-selector">
  <option>Выбрать</option>
  <option>0.5L</option>
  <option>XL</option>
  <option>Размер 42</option>
</select>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	if got := DetectVariants(p); got != 1 {
		t.Errorf("DetectVariants() = %d, want 1 (only 0.5L survives)", got)
	}
}

func TestDetectVariantsJSONShortCircuits(t *testing.T) {
	// Markup suggests 3 variants, but the structured block is authoritative
	// and only 2 of its entries are plausible.
	html := `<html><body>
<div data-variants='{"variants":["0.5L","1L","XL"]}'></div>
<button class="volume-btn">0.5L</button>
<button class="volume-btn">0.7L</button>
<button class="volume-btn">1.5L</button>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	if got := DetectVariants(p); got != 2 {
		t.Errorf("DetectVariants() = %d, want 2 from JSON block", got)
	}
}

func TestDetectVariantsMalformedJSONFallsBackToMarkup(t *testing.T) {
	html := `<html><body>
<div data-variants='{broken'></div>
<button class="volume-btn">0.5L</button>
<button class="volume-btn">0.7L</button>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	if got := DetectVariants(p); got != 2 {
		t.Errorf("DetectVariants() = %d, want 2 from markup", got)
	}
}

func TestDetectVariantsJSONWithNoPlausibleEntries(t *testing.T) {
	html := `<html><body>
<div data-variants='{"variants":["XL","XXL"]}'></div>
<button class="volume-btn">0.5L</button>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	// A block with only implausible entries does not short-circuit.
	if got := DetectVariants(p); got != 1 {
		t.Errorf("DetectVariants() = %d, want 1 from markup", got)
	}
}

func TestDetectVariantsJSONScriptBlock(t *testing.T) {
	html := `<html><body>
<script type="application/json">{"variants":["0.5L","0.7L","1L"]}</script>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	if got := DetectVariants(p); got != 3 {
		t.Errorf("DetectVariants() = %d, want 3", got)
	}
}

func TestDetectVariantsBareJSONList(t *testing.T) {
	html := `<html><body>
<div data-variants='["0.5L","0.7L"]'></div>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	if got := DetectVariants(p); got != 2 {
		t.Errorf("DetectVariants() = %d, want 2", got)
	}
}

func TestColorVariantsGated(t *testing.T) {
	html := `<html><body>
<select class="color-selector">
  <option>Красное</option>
  <option>Белое</option>
</select>
</body></html>`

	// Without a color marker in the URL or label text, generic option
	// labels do not count as variants.
	plain := mustPage(t, html, "https://alkoteka.com/product/1/")
	if got := DetectVariants(plain); got != 0 {
		t.Errorf("ungated DetectVariants() = %d, want 0", got)
	}

	gated := mustPage(t, html, "https://alkoteka.com/product/1/?color=red")
	if got := DetectVariants(gated); got != 2 {
		t.Errorf("url-gated DetectVariants() = %d, want 2", got)
	}
}

func TestColorVariantsFromDataAttribute(t *testing.T) {
	html := `<html><body>
<div data-available-colors='["Красное","Белое","XL"]'></div>
</body></html>`
	p := mustPage(t, html, "https://alkoteka.com/product/1/")

	if got := DetectVariants(p); got != 2 {
		t.Errorf("DetectVariants() = %d, want 2", got)
	}
}

func TestVariantSetKeepsFirstCasing(t *testing.T) {
	set := newVariantSet()
	set.add("0.5L")
	set.add("0.5l")
	set.add(" 0.5L ")
	set.add("0.7L")

	if set.len() != 2 {
		t.Fatalf("len = %d, want 2", set.len())
	}
	if set.kept[0] != "0.5L" {
		t.Errorf("kept[0] = %q, want first-seen casing", set.kept[0])
	}
}
