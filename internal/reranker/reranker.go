// Package reranker orders retrieved candidates by a composite relevance score.
//
// Retrieval similarity, min-max normalized over the pool being ranked, carries
// 70% of the score. The remaining 30% comes from priors that act as tie-breaking
// nudges and can never overturn a strong similarity gap:
//
//	score = 0.70*similarity + 0.10*brand + 0.10*category + 0.05*price + 0.05*popularity
//
// Every signal lies in [0,1], so the composite does too. Ranking is a pure
// function of its inputs; equal scores keep pool order.
package reranker

import (
	"sort"

	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/retrieval"
)

// Fixed signal weights. They sum to 1.
const (
	WeightSimilarity = 0.70
	WeightBrand      = 0.10
	WeightCategory   = 0.10
	WeightPriceMatch = 0.05
	WeightPopularity = 0.05
)

// ScoredItem is a reranked catalog item.
type ScoredItem struct {
	Item    repository.Item
	Score   float64
	Signals Signals
}

// Composite combines signals with the fixed weights.
func (s Signals) Composite() float64 {
	return WeightSimilarity*s.Similarity +
		WeightBrand*s.Brand +
		WeightCategory*s.Category +
		WeightPriceMatch*s.PriceMatch +
		WeightPopularity*s.Popularity
}

// Rerank scores every candidate in pool and returns at most topK of them,
// highest score first. The inputs are not modified.
func Rerank(pool []retrieval.Candidate, aff AffinityMaps, band PriceBand, topK int) []ScoredItem {
	if len(pool) == 0 || topK < 1 {
		return []ScoredItem{}
	}

	raw := make([]float64, len(pool))
	for i, c := range pool {
		raw[i] = c.Similarity
	}
	sims := NormalizeSimilarities(raw)

	scored := make([]ScoredItem, len(pool))
	for i, c := range pool {
		sig := Signals{
			Similarity: sims[i],
			Brand:      BrandAffinity(c.Item, aff),
			Category:   CategoryAffinity(c.Item, aff),
			PriceMatch: PriceMatch(c.Item, band),
			Popularity: Popularity(c.Item),
		}
		scored[i] = ScoredItem{Item: c.Item, Score: sig.Composite(), Signals: sig}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
