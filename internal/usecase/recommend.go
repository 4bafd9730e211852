package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/darshil0/DineAI/internal/adapter/ranker"
	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/logging"
	"github.com/darshil0/DineAI/internal/metrics"
	"github.com/darshil0/DineAI/internal/port"
)

var errEmptyQueryVector = errors.New("query embedding is empty")

type RecommendOptions struct {
	// PoolSize is the number of nearest neighbours fetched before re-ranking.
	PoolSize int
	// Limit is the number of candidates returned.
	Limit int
}

func DefaultRecommendOptions() RecommendOptions {
	return RecommendOptions{PoolSize: 20, Limit: 10}
}

// RecommendUseCase retrieves restaurants close to a taste profile and
// re-ranks them. When vector retrieval is unavailable it defers to the
// fallback selector.
type RecommendUseCase struct {
	store    port.VectorStore[domain.Restaurant]
	embedder port.Embedder
	fallback port.CandidateSelector
	opts     RecommendOptions
	logger   zerolog.Logger
}

var _ port.Recommender = (*RecommendUseCase)(nil)

func NewRecommendUseCase(
	store port.VectorStore[domain.Restaurant],
	embedder port.Embedder,
	fallback port.CandidateSelector,
	opts RecommendOptions,
	logger zerolog.Logger,
) *RecommendUseCase {
	defaults := DefaultRecommendOptions()
	if opts.PoolSize <= 0 {
		opts.PoolSize = defaults.PoolSize
	}
	if opts.Limit <= 0 {
		opts.Limit = defaults.Limit
	}
	return &RecommendUseCase{
		store:    store,
		embedder: embedder,
		fallback: fallback,
		opts:     opts,
		logger:   logger.With().Str("component", "recommend").Logger(),
	}
}

// Recommend returns up to Limit candidates ordered by match score. Vector
// path failures never surface as errors; only a failing fallback does.
func (u *RecommendUseCase) Recommend(ctx context.Context, profile domain.UserTasteProfile) (*domain.CandidateList, error) {
	start := time.Now()
	ctx, requestID := logging.EnsureRequestID(ctx)
	log := logging.Ctx(ctx, u.logger)

	if u.store.Count() == 0 {
		log.Warn().Msg("vector store is empty, using fallback selection")
		metrics.FallbackReasons.WithLabelValues("empty_store").Inc()
		return u.useFallback(ctx, profile, requestID, start)
	}

	candidates, err := u.retrieve(ctx, profile)
	if err != nil {
		log.Warn().Err(err).Msg("vector retrieval failed, using fallback selection")
		metrics.FallbackReasons.WithLabelValues("embedding_error").Inc()
		return u.useFallback(ctx, profile, requestID, start)
	}

	log.Debug().Int("candidates", len(candidates)).Msg("vector retrieval complete")
	metrics.RecordRecommendation(string(domain.SourceVector), time.Since(start))
	return &domain.CandidateList{
		RequestID:  requestID,
		Source:     domain.SourceVector,
		Candidates: candidates,
	}, nil
}

func (u *RecommendUseCase) retrieve(ctx context.Context, profile domain.UserTasteProfile) ([]domain.ScoredCandidate, error) {
	vec, err := u.embedder.Embed(ctx, ProfileQueryText(profile))
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}
	if len(vec) == 0 {
		return nil, errEmptyQueryVector
	}

	matches := u.store.Query(vec, u.opts.PoolSize)
	candidates := make([]domain.ScoredCandidate, len(matches))
	for i, m := range matches {
		candidates[i] = domain.ScoredCandidate{
			Restaurant:     m.Record.Metadata,
			MatchScore:     ranker.ScoreWithSimilarity(profile, m.Record.Metadata, m.Score),
			EmbeddingScore: m.Score,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchScore > candidates[j].MatchScore
	})

	if len(candidates) > u.opts.Limit {
		candidates = candidates[:u.opts.Limit]
	}
	return candidates, nil
}

func (u *RecommendUseCase) useFallback(ctx context.Context, profile domain.UserTasteProfile, requestID string, start time.Time) (*domain.CandidateList, error) {
	if u.fallback == nil {
		metrics.RecordRecommendation("error", time.Since(start))
		return nil, errors.New("recommend: no fallback selector configured")
	}

	candidates, err := u.fallback.SelectCandidates(ctx, profile, u.opts.Limit)
	if err != nil {
		metrics.RecordRecommendation("error", time.Since(start))
		return nil, fmt.Errorf("recommend: fallback selection failed: %w", err)
	}

	metrics.RecordRecommendation(string(domain.SourceFallback), time.Since(start))
	return &domain.CandidateList{
		RequestID:  requestID,
		Source:     domain.SourceFallback,
		Candidates: candidates,
	}, nil
}

// ProfileQueryText is the canonical text embedded for a taste profile.
func ProfileQueryText(p domain.UserTasteProfile) string {
	price := "Any"
	if p.PriceRange != "" {
		price = string(p.PriceRange)
	}
	dietary := "None"
	if p.DietaryNotes != "" {
		dietary = p.DietaryNotes
	}

	var b strings.Builder
	b.WriteString("User wants:\n")
	b.WriteString("Cuisines: " + joinOr(p.Cuisines, "Any") + "\n")
	b.WriteString("Price Range: " + price + "\n")
	b.WriteString("Ambiance: " + joinOr(p.Ambiance, "Any") + "\n")
	b.WriteString("Dietary Notes: " + dietary + "\n")
	b.WriteString("Special Occasions: " + joinOr(p.SpecialOccasions, "None"))
	return b.String()
}

func joinOr(values []string, empty string) string {
	if len(values) == 0 {
		return empty
	}
	return strings.Join(values, ", ")
}
