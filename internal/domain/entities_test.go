package domain

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestaurantRecordID(t *testing.T) {
	assert.Equal(t, "abc", Restaurant{ID: "abc", Name: "Ignored Name"}.RecordID())
	assert.Equal(t, "joe's-pizza", Restaurant{Name: "Joe's Pizza"}.RecordID())
	assert.Equal(t, "le-bernardin-nyc", Restaurant{Name: "Le  Bernardin\tNYC"}.RecordID())
}

func TestPriceTierValid(t *testing.T) {
	for _, p := range []PriceTier{PriceBudget, PriceModerate, PriceUpscale, PriceLuxury} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, PriceTier("").Valid())
	assert.False(t, PriceTier("$$$$$").Valid())
}

func TestHasDietaryConstraint(t *testing.T) {
	assert.False(t, UserTasteProfile{}.HasDietaryConstraint())
	assert.False(t, UserTasteProfile{DietaryNotes: " None "}.HasDietaryConstraint())
	assert.True(t, UserTasteProfile{DietaryNotes: "vegan"}.HasDietaryConstraint())
}

func TestScoredCandidateJSONIsFlat(t *testing.T) {
	c := ScoredCandidate{
		Restaurant:     Restaurant{ID: "x", Name: "X", PriceTier: PriceBudget},
		MatchScore:     0.5,
		EmbeddingScore: 0.25,
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "X", m["name"])
	assert.Equal(t, "$", m["price_tier"])
	assert.Equal(t, 0.5, m["match_score"])
	assert.Equal(t, 0.25, m["embedding_score"])
}
