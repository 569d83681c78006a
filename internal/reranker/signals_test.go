package reranker

import (
	"math"
	"testing"

	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeSimilarities(t *testing.T) {
	tests := []struct {
		name string
		raw  []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []float64{0.7}, []float64{0}},
		{"identical", []float64{0.42, 0.42, 0.42}, []float64{0, 0, 0}},
		{"below epsilon spread", []float64{0.5, 0.5 + 1e-10}, []float64{0, 0}},
		{"min-max", []float64{0.9, 0.85, 0.8}, []float64{1, 0.5, 0}},
		{"non-finite as zero", []float64{math.NaN(), 1, math.Inf(-1)}, []float64{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSimilarities(tt.raw)
			assert.InDeltaSlice(t, tt.want, got, 1e-9)
			for _, v := range got {
				assert.False(t, math.IsNaN(v))
			}
		})
	}
}

func TestPriceMatch(t *testing.T) {
	band := PriceBand{Low: f64(100), High: f64(500)}

	tests := []struct {
		name  string
		price *float64
		band  PriceBand
		want  float64
	}{
		{"at low bound", f64(100), band, 1},
		{"at high bound", f64(500), band, 1},
		{"inside", f64(250), band, 1},
		{"one below", f64(99), band, 0},
		{"one above", f64(501), band, 0},
		{"missing price", nil, band, 0},
		{"unset band", f64(250), PriceBand{}, 0},
		{"only low", f64(250), PriceBand{Low: f64(100)}, 0},
		{"only high", f64(250), PriceBand{High: f64(500)}, 0},
		{"nan price", f64(math.NaN()), band, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceMatch(repository.Item{Price: tt.price}, tt.band))
		})
	}
}

func TestAffinity(t *testing.T) {
	aff := AffinityMaps{
		Brand:    map[string]float64{"lakme": 0.8, "": 1},
		Category: map[string]float64{"skincare": 0.3},
	}

	assert.Equal(t, 0.8, BrandAffinity(repository.Item{Brand: "  LAKME "}, aff))
	assert.Equal(t, 0.0, BrandAffinity(repository.Item{Brand: "Nivea"}, aff))
	assert.Equal(t, 0.0, BrandAffinity(repository.Item{}, aff), "missing brand never matches")
	assert.Equal(t, 0.3, CategoryAffinity(repository.Item{Category: "Skincare"}, aff))
	assert.Equal(t, 0.0, CategoryAffinity(repository.Item{Category: "Skincare"}, AffinityMaps{}))
}

func TestPopularity(t *testing.T) {
	assert.Equal(t, 0.0, Popularity(repository.Item{}))
	assert.InDelta(t, 0.7, Popularity(repository.Item{Rating: f64(5)}), 1e-12)
	assert.InDelta(t, 0.3*math.Tanh(0.5), Popularity(repository.Item{ReviewsCount: intp(500)}), 1e-12)

	top := Popularity(repository.Item{Rating: f64(5), ReviewsCount: intp(1 << 30)})
	assert.LessOrEqual(t, top, 1.0)
	assert.Equal(t, 0.7, Popularity(repository.Item{Rating: f64(12)}), "ratings clamp at 5")
}
