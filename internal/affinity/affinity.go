// Package affinity derives brand and category preference maps from a shopper's interaction history.
package affinity

import (
	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/reranker"
)

// FromInteractions sums event weights per normalized brand and category and
// scales each map by its largest total, so the favorite scores 1.
// Unknown events and blank names are ignored. Empty history yields empty maps.
func FromInteractions(history []*repository.Interaction) reranker.AffinityMaps {
	brands := make(map[string]float64)
	categories := make(map[string]float64)

	for _, in := range history {
		if in == nil {
			continue
		}
		w := in.Event.Weight()
		if w == 0 {
			continue
		}
		if b := repository.NormalizeKey(in.Brand); b != "" {
			brands[b] += w
		}
		if c := repository.NormalizeKey(in.Category); c != "" {
			categories[c] += w
		}
	}

	return reranker.AffinityMaps{
		Brand:    scaleByMax(brands),
		Category: scaleByMax(categories),
	}
}

// Normalize returns a copy of weights with normalized keys and values clamped to [0,1].
// Keys that collide after normalization keep the larger weight.
func Normalize(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		key := repository.NormalizeKey(k)
		if key == "" {
			continue
		}
		v = min(max(v, 0), 1)
		if cur, ok := out[key]; !ok || v > cur {
			out[key] = v
		}
	}
	return out
}

func scaleByMax(totals map[string]float64) map[string]float64 {
	var top float64
	for _, v := range totals {
		top = max(top, v)
	}
	if top == 0 {
		return totals
	}
	for k, v := range totals {
		totals[k] = v / top
	}
	return totals
}
