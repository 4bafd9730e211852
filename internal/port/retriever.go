package port

import (
	"context"

	"github.com/darshil0/DineAI/internal/domain"
)

// Recommender produces the ranked candidate list for a taste profile.
type Recommender interface {
	Recommend(ctx context.Context, profile domain.UserTasteProfile) (*domain.CandidateList, error)
}

// CandidateSelector is the fallback path used when vector retrieval is
// unavailable.
type CandidateSelector interface {
	SelectCandidates(ctx context.Context, profile domain.UserTasteProfile, limit int) ([]domain.ScoredCandidate, error)
}
