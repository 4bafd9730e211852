// Package fallback selects candidates without the vector store.
package fallback

import (
	"context"
	"sort"

	"github.com/darshil0/DineAI/internal/adapter/ranker"
	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/port"
)

// StaticSelector ranks the whole catalog by metadata match alone.
type StaticSelector struct {
	catalog []domain.Restaurant
}

var _ port.CandidateSelector = (*StaticSelector)(nil)

func NewStaticSelector(catalog []domain.Restaurant) *StaticSelector {
	return &StaticSelector{catalog: catalog}
}

func (s *StaticSelector) SelectCandidates(ctx context.Context, profile domain.UserTasteProfile, limit int) ([]domain.ScoredCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]domain.ScoredCandidate, len(s.catalog))
	for i, r := range s.catalog {
		candidates[i] = domain.ScoredCandidate{
			Restaurant: r,
			MatchScore: ranker.Score(profile, r),
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchScore > candidates[j].MatchScore
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
