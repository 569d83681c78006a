package affinity

import (
	"testing"

	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestFromInteractions(t *testing.T) {
	history := []*repository.Interaction{
		{Brand: "Lakme", Category: "Makeup", Event: repository.EventPurchase},
		{Brand: " lakme ", Category: "Makeup", Event: repository.EventView},
		{Brand: "Nivea", Category: "Skincare", Event: repository.EventClick},
		{Brand: "Nivea", Category: "Skincare", Event: repository.EventType("wishlist")},
		{Brand: "", Category: "", Event: repository.EventPurchase},
		nil,
	}

	got := FromInteractions(history)

	assert.Equal(t, map[string]float64{"lakme": 1, "nivea": 2.0 / 6.0}, got.Brand)
	assert.Equal(t, map[string]float64{"makeup": 1, "skincare": 2.0 / 6.0}, got.Category)
}

func TestFromInteractions_Empty(t *testing.T) {
	got := FromInteractions(nil)
	assert.Empty(t, got.Brand)
	assert.Empty(t, got.Category)
	assert.NotNil(t, got.Brand)
}

func TestNormalize(t *testing.T) {
	got := Normalize(map[string]float64{
		"Lakme":   0.4,
		" LAKME ": 0.9,
		"Nivea":   3,
		"Dove":    -1,
		"  ":      1,
	})
	assert.Equal(t, map[string]float64{"lakme": 0.9, "nivea": 1, "dove": 0}, got)
}
