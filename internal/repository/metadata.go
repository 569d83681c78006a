package repository

import (
	"math"
	"strconv"
	"strings"
)

// Metadata keys attached to every indexed catalog item
const (
	KeyProductID    = "product_id"
	KeyName         = "name"
	KeyBrand        = "brand"
	KeyCategory     = "category"
	KeyPrice        = "price"
	KeyRating       = "rating"
	KeyReviewsCount = "reviews_count"
	KeyImageURL     = "image_url"
	KeyURL          = "url"
	KeyCurrency     = "currency"
	KeyRetailer     = "retailer"
	KeyMarket       = "market"
	KeyTags         = "tags"
	KeyContents     = "contents"
	KeyDescription  = "description"
)

// ItemFromMetadata builds an Item from index metadata.
// Missing or unparsable numeric values are left nil; it never fails.
func ItemFromMetadata(m map[string]string) Item {
	return Item{
		ProductID:    m[KeyProductID],
		Name:         m[KeyName],
		Brand:        m[KeyBrand],
		Category:     m[KeyCategory],
		Price:        ParseFloat(m[KeyPrice]),
		Rating:       ParseFloat(m[KeyRating]),
		ReviewsCount: ParseCount(m[KeyReviewsCount]),
		ImageURL:     m[KeyImageURL],
		URL:          m[KeyURL],
		Currency:     m[KeyCurrency],
		Retailer:     m[KeyRetailer],
		Market:       m[KeyMarket],
		Tags:         m[KeyTags],
		Contents:     m[KeyContents],
		Description:  m[KeyDescription],
	}
}

// ParseFloat parses a finite number, returning nil for empty, malformed, NaN or Inf input.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseCount parses a review count. Integral floats ("1200.0") are accepted
// since catalog exports often store counts as floats; fractional values are not.
func ParseCount(s string) *int {
	f := ParseFloat(s)
	if f == nil || *f < 0 || *f > math.MaxInt32 || *f != math.Trunc(*f) {
		return nil
	}
	n := int(*f)
	return &n
}

// NormalizeKey lower-cases and trims a brand or category name for comparisons and lookups.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
