package domain

import (
	"regexp"
	"strings"
)

type PriceTier string

const (
	PriceBudget   PriceTier = "$"
	PriceModerate PriceTier = "$$"
	PriceUpscale  PriceTier = "$$$"
	PriceLuxury   PriceTier = "$$$$"
)

func (p PriceTier) Valid() bool {
	switch p {
	case PriceBudget, PriceModerate, PriceUpscale, PriceLuxury:
		return true
	}
	return false
}

// Restaurant is a catalog entry. ID may be empty; ingestion then derives one
// from the name.
type Restaurant struct {
	ID           string    `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string    `json:"name" yaml:"name" validate:"required"`
	Cuisine      string    `json:"cuisine" yaml:"cuisine" validate:"required"`
	PriceTier    PriceTier `json:"price_tier" yaml:"price_tier" validate:"required,oneof=$ $$ $$$ $$$$"`
	Neighborhood string    `json:"neighborhood" yaml:"neighborhood"`
	Tags         []string  `json:"tags" yaml:"tags"`
	Description  string    `json:"description" yaml:"description"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// RecordID is the ID, or the lower-cased name with whitespace runs
// replaced by "-".
func (r Restaurant) RecordID() string {
	if r.ID != "" {
		return r.ID
	}
	return whitespaceRun.ReplaceAllString(strings.ToLower(r.Name), "-")
}

// UserTasteProfile is the structured preference summary produced upstream.
type UserTasteProfile struct {
	Cuisines         []string  `json:"cuisines"`
	PriceRange       PriceTier `json:"price_range,omitempty" validate:"omitempty,oneof=$ $$ $$$ $$$$"`
	Ambiance         []string  `json:"ambiance"`
	DietaryNotes     string    `json:"dietary_notes,omitempty"`
	SpecialOccasions []string  `json:"special_occasions,omitempty"`
}

// HasDietaryConstraint reports whether the dietary notes carry a constraint.
// Empty and "none" mean no constraint.
func (p UserTasteProfile) HasDietaryConstraint() bool {
	note := strings.ToLower(strings.TrimSpace(p.DietaryNotes))
	return note != "" && note != "none"
}

type ScoredCandidate struct {
	Restaurant
	MatchScore     float64 `json:"match_score"`
	EmbeddingScore float64 `json:"embedding_score"`
}

type CandidateSource string

const (
	SourceVector   CandidateSource = "vector"
	SourceFallback CandidateSource = "fallback"
)

// CandidateList is the outcome of one recommendation call.
type CandidateList struct {
	RequestID  string            `json:"request_id,omitempty"`
	Source     CandidateSource   `json:"source"`
	Candidates []ScoredCandidate `json:"candidates"`
}

func (l *CandidateList) Restaurants() []Restaurant {
	out := make([]Restaurant, len(l.Candidates))
	for i, c := range l.Candidates {
		out[i] = c.Restaurant
	}
	return out
}
