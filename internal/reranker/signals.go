package reranker

import (
	"math"

	"github.com/knoguchi/prodsearch/internal/repository"
)

// degenerateSpread is the smallest max-min spread treated as real variance.
const degenerateSpread = 1e-9

// AffinityMaps holds a shopper's [0,1] preference weights keyed by normalized
// brand and category names. Nil maps contribute nothing.
type AffinityMaps struct {
	Brand    map[string]float64
	Category map[string]float64
}

// PriceBand is an optional inclusive price range. Both bounds must be set for
// any item to match.
type PriceBand struct {
	Low  *float64
	High *float64
}

// Signals are the per-candidate relevance inputs, each in [0,1].
type Signals struct {
	Similarity float64 `json:"similarity"`
	Brand      float64 `json:"brand_affinity"`
	Category   float64 `json:"category_affinity"`
	PriceMatch float64 `json:"price_match"`
	Popularity float64 `json:"popularity"`
}

// NormalizeSimilarities min-max scales raw scores over the given pool.
// Non-finite scores count as 0. A pool without spread maps every score to 0.
func NormalizeSimilarities(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
		lo = min(lo, v)
		hi = max(hi, v)
	}

	spread := hi - lo
	if spread < degenerateSpread {
		clear(out)
		return out
	}
	for i, v := range out {
		out[i] = (v - lo) / spread
	}
	return out
}

// BrandAffinity looks up the item's normalized brand. Missing brands score 0.
func BrandAffinity(item repository.Item, aff AffinityMaps) float64 {
	return lookupAffinity(aff.Brand, item.Brand)
}

// CategoryAffinity looks up the item's normalized category. Missing categories score 0.
func CategoryAffinity(item repository.Item, aff AffinityMaps) float64 {
	return lookupAffinity(aff.Category, item.Category)
}

func lookupAffinity(weights map[string]float64, name string) float64 {
	key := repository.NormalizeKey(name)
	if key == "" {
		return 0
	}
	return unit(weights[key])
}

// PriceMatch is 1 when both band bounds are set and the item's price lies
// within them inclusive, otherwise 0.
func PriceMatch(item repository.Item, band PriceBand) float64 {
	if band.Low == nil || band.High == nil || item.Price == nil {
		return 0
	}
	p := *item.Price
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	if p >= *band.Low && p <= *band.High {
		return 1
	}
	return 0
}

// Popularity blends rating quality with review volume:
// 0.7*(rating/5) + 0.3*tanh(reviews/1000). Missing values count as 0, ratings
// are clamped to [0,5] and negative counts to 0, keeping the result in [0,1).
func Popularity(item repository.Item) float64 {
	var rating, reviews float64
	if item.Rating != nil && !math.IsNaN(*item.Rating) {
		rating = math.Min(math.Max(*item.Rating, 0), 5)
	}
	if item.ReviewsCount != nil && *item.ReviewsCount > 0 {
		reviews = float64(*item.ReviewsCount)
	}
	return 0.7*(rating/5.0) + 0.3*math.Tanh(reviews/1000.0)
}

// unit clamps v into [0,1], mapping NaN to 0.
func unit(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}
