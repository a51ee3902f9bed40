// Package parser provides pure text-to-value normalizers used by both the
// extraction layer and the record pipeline. Every function is total: bad
// input yields a "not found" result, never a panic.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	priceCharsRe = regexp.MustCompile(`[^\d.,]`)
	digitRunRe   = regexp.MustCompile(`\d+`)
	floatTokenRe = regexp.MustCompile(`\d+\.?\d*`)
)

// ParsePrice converts a free-form price string ("1 234,50 РУБ") to a float.
// Everything except digits, commas and dots is stripped and the comma is
// treated as a decimal separator.
func ParsePrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	cleaned := priceCharsRe.ReplaceAllString(strings.TrimSpace(text), "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractNumber returns the value of the first contiguous digit run in text.
// Note this is the FIRST run: "Year 2020 Volume 750" yields 2020, not 750.
func ExtractNumber(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	match := digitRunRe.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractFloat returns the first floating-point-looking token in text.
func ExtractFloat(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	match := floatTokenRe.FindString(text)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CleanTitle trims text and collapses internal whitespace runs (including
// tabs and newlines) to a single space. Empty input yields an empty string.
func CleanTitle(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeBool interprets loosely-typed truthiness. Strings match a fixed
// allow-list case-insensitively; anything else is false.
func NormalizeBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "on", "available", "in stock":
			return true
		}
		return false
	default:
		return false
	}
}

// CalculateDiscount returns the integer discount percentage implied by an
// original and a current price, clamped to [0, 100] and truncated. It
// reports false when either price is zero or the original is not positive.
func CalculateDiscount(original, current float64) (int, bool) {
	if original == 0 || current == 0 || original < 0 {
		return 0, false
	}
	discount := (original - current) / original * 100
	if discount < 0 {
		discount = 0
	}
	if discount > 100 {
		discount = 100
	}
	return int(discount), true
}
