// Package ranker implements the deterministic re-ranking function applied
// to vector candidates.
package ranker

import (
	"math"
	"strings"

	"github.com/darshil0/DineAI/internal/domain"
)

const (
	WeightSimilarity = 0.5
	WeightCuisine    = 0.15
	WeightPrice      = 0.15
	WeightAmbiance   = 0.10
	WeightDietary    = 0.05
)

// Breakdown lists the contribution of each term to a match score.
type Breakdown struct {
	Similarity float64 `json:"similarity"`
	Cuisine    float64 `json:"cuisine"`
	Price      float64 `json:"price"`
	Ambiance   float64 `json:"ambiance"`
	Dietary    float64 `json:"dietary"`
	Total      float64 `json:"total"`
}

// Score rates how well a restaurant fits a profile using metadata only.
func Score(profile domain.UserTasteProfile, r domain.Restaurant) float64 {
	return explain(profile, r, 0, false).Total
}

// ScoreWithSimilarity adds the weighted embedding similarity to Score.
func ScoreWithSimilarity(profile domain.UserTasteProfile, r domain.Restaurant, similarity float64) float64 {
	return explain(profile, r, similarity, true).Total
}

// Explain returns the per-term breakdown behind ScoreWithSimilarity.
func Explain(profile domain.UserTasteProfile, r domain.Restaurant, similarity float64) Breakdown {
	return explain(profile, r, similarity, true)
}

func explain(profile domain.UserTasteProfile, r domain.Restaurant, similarity float64, hasSimilarity bool) Breakdown {
	var b Breakdown

	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		similarity = 0
	}
	if hasSimilarity {
		b.Similarity = similarity * WeightSimilarity
	}
	if cuisineMatches(profile.Cuisines, r.Cuisine) {
		b.Cuisine = WeightCuisine
	}
	if profile.PriceRange != "" && profile.PriceRange == r.PriceTier {
		b.Price = WeightPrice
	}
	if ambianceMatches(profile.Ambiance, r.Tags) {
		b.Ambiance = WeightAmbiance
	}
	if profile.HasDietaryConstraint() && dietaryMatches(profile.DietaryNotes, r.Tags) {
		b.Dietary = WeightDietary
	}

	b.Total = clamp(b.Similarity + b.Cuisine + b.Price + b.Ambiance + b.Dietary)
	return b
}

func cuisineMatches(cuisines []string, cuisine string) bool {
	c := strings.ToLower(cuisine)
	if c == "" {
		return false
	}
	for _, want := range cuisines {
		if strings.ToLower(want) == c {
			return true
		}
	}
	return false
}

func ambianceMatches(ambiance, tags []string) bool {
	for _, tag := range tags {
		t := strings.ToLower(tag)
		if t == "" {
			continue
		}
		for _, a := range ambiance {
			if strings.ToLower(a) == t {
				return true
			}
		}
	}
	return false
}

func dietaryMatches(note string, tags []string) bool {
	n := strings.ToLower(note)
	for _, tag := range tags {
		t := strings.ToLower(tag)
		if t == "" {
			continue
		}
		if strings.Contains(n, t) || strings.Contains(t, n) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
