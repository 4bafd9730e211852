package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshil0/DineAI/internal/adapter/memstore"
	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/port"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
	last  string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	s.last = text
	return s.vec, s.err
}
func (s *stubEmbedder) Dimension() int    { return len(s.vec) }
func (s *stubEmbedder) ModelName() string { return "stub" }

type stubSelector struct {
	calls     int
	limit     int
	err       error
	candidate domain.ScoredCandidate
}

func (s *stubSelector) SelectCandidates(_ context.Context, _ domain.UserTasteProfile, limit int) ([]domain.ScoredCandidate, error) {
	s.calls++
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []domain.ScoredCandidate{s.candidate}, nil
}

func fallbackStub() *stubSelector {
	return &stubSelector{candidate: domain.ScoredCandidate{
		Restaurant: domain.Restaurant{Name: "Fallback Diner"},
		MatchScore: 0.4,
	}}
}

func TestRecommend_EmptyStoreUsesFallback(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0}}
	fb := fallbackStub()
	uc := NewRecommendUseCase(memstore.NewMemoryStore[domain.Restaurant](), emb, fb, DefaultRecommendOptions(), zerolog.Nop())

	list, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceFallback, list.Source)
	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, 10, fb.limit)
	assert.Equal(t, 0, emb.calls)
	require.Len(t, list.Candidates, 1)
	assert.Equal(t, "Fallback Diner", list.Candidates[0].Name)
	assert.NotEmpty(t, list.RequestID)
}

func TestRecommend_EmbeddingErrorUsesFallback(t *testing.T) {
	store := memstore.NewMemoryStore[domain.Restaurant]()
	store.Upsert([]port.VectorRecord[domain.Restaurant]{{ID: "a", Embedding: []float32{1, 0}}})
	fb := fallbackStub()

	for name, emb := range map[string]*stubEmbedder{
		"error":        {err: errors.New("quota exceeded")},
		"empty vector": {vec: []float32{}},
	} {
		t.Run(name, func(t *testing.T) {
			fb.calls = 0
			uc := NewRecommendUseCase(store, emb, fb, DefaultRecommendOptions(), zerolog.Nop())

			list, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
			require.NoError(t, err)
			assert.Equal(t, domain.SourceFallback, list.Source)
			assert.Equal(t, 1, fb.calls)
		})
	}
}

func TestRecommend_FallbackFailureIsReturned(t *testing.T) {
	fb := &stubSelector{err: errors.New("llm down")}
	uc := NewRecommendUseCase(memstore.NewMemoryStore[domain.Restaurant](), &stubEmbedder{}, fb, DefaultRecommendOptions(), zerolog.Nop())

	_, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm down")
}

func TestRecommend_NoFallbackConfigured(t *testing.T) {
	uc := NewRecommendUseCase(memstore.NewMemoryStore[domain.Restaurant](), &stubEmbedder{}, nil, DefaultRecommendOptions(), zerolog.Nop())

	_, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
	assert.Error(t, err)
}

// seedStore stores n restaurants whose similarity to the query {1, 0}
// decreases with their index.
func seedStore(n int, mutate func(i int, r *domain.Restaurant)) *memstore.MemoryStore[domain.Restaurant] {
	store := memstore.NewMemoryStore[domain.Restaurant]()
	records := make([]port.VectorRecord[domain.Restaurant], n)
	for i := range records {
		r := domain.Restaurant{
			ID:        fmt.Sprintf("r%02d", i),
			Name:      fmt.Sprintf("Restaurant %02d", i),
			Cuisine:   "Thai",
			PriceTier: domain.PriceLuxury,
		}
		if mutate != nil {
			mutate(i, &r)
		}
		records[i] = port.VectorRecord[domain.Restaurant]{
			ID:        r.ID,
			Embedding: []float32{1, float32(i) * 0.05},
			Metadata:  r,
		}
	}
	store.Upsert(records)
	return store
}

func TestRecommend_PoolAndLimit(t *testing.T) {
	store := seedStore(30, nil)
	uc := NewRecommendUseCase(store, &stubEmbedder{vec: []float32{1, 0}}, fallbackStub(), DefaultRecommendOptions(), zerolog.Nop())

	list, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceVector, list.Source)
	require.Len(t, list.Candidates, 10)
	for i, c := range list.Candidates {
		assert.Equal(t, fmt.Sprintf("r%02d", i), c.ID)
		assert.InDelta(t, c.EmbeddingScore*0.5, c.MatchScore, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, list.Candidates[i-1].MatchScore, c.MatchScore)
		}
	}
}

func TestRecommend_RerankPromotesMetadataMatches(t *testing.T) {
	// Only restaurants within the top 20 by similarity can be promoted.
	store := seedStore(30, func(i int, r *domain.Restaurant) {
		if i == 15 || i == 25 {
			r.Cuisine = "Italian"
			r.PriceTier = domain.PriceModerate
			r.Tags = []string{"romantic"}
		}
	})
	uc := NewRecommendUseCase(store, &stubEmbedder{vec: []float32{1, 0}}, fallbackStub(), DefaultRecommendOptions(), zerolog.Nop())

	list, err := uc.Recommend(context.Background(), domain.UserTasteProfile{
		Cuisines:   []string{"italian"},
		PriceRange: domain.PriceModerate,
		Ambiance:   []string{"Romantic"},
	})
	require.NoError(t, err)

	require.Len(t, list.Candidates, 10)
	assert.Equal(t, "r15", list.Candidates[0].ID)
	for _, c := range list.Candidates {
		assert.NotEqual(t, "r25", c.ID)
	}
}

func TestRecommend_TiesKeepVectorOrder(t *testing.T) {
	store := memstore.NewMemoryStore[domain.Restaurant]()
	var records []port.VectorRecord[domain.Restaurant]
	for _, id := range []string{"b", "a", "c"} {
		records = append(records, port.VectorRecord[domain.Restaurant]{
			ID: id, Embedding: []float32{1, 0}, Metadata: domain.Restaurant{ID: id},
		})
	}
	store.Upsert(records)

	uc := NewRecommendUseCase(store, &stubEmbedder{vec: []float32{1, 0}}, fallbackStub(), DefaultRecommendOptions(), zerolog.Nop())
	list, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
	require.NoError(t, err)

	got := make([]string, len(list.Candidates))
	for i, c := range list.Candidates {
		got[i] = c.ID
	}
	assert.Equal(t, []string{"b", "a", "c"}, got)
}

func TestRecommend_SmallStoreReturnsEverything(t *testing.T) {
	store := seedStore(4, nil)
	uc := NewRecommendUseCase(store, &stubEmbedder{vec: []float32{1, 0}}, fallbackStub(), DefaultRecommendOptions(), zerolog.Nop())

	list, err := uc.Recommend(context.Background(), domain.UserTasteProfile{})
	require.NoError(t, err)
	assert.Len(t, list.Candidates, 4)
}

func TestRecommend_EmbedsCanonicalQuery(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0}}
	uc := NewRecommendUseCase(seedStore(1, nil), emb, fallbackStub(), DefaultRecommendOptions(), zerolog.Nop())

	profile := domain.UserTasteProfile{Cuisines: []string{"Thai", "Lao"}, DietaryNotes: "vegetarian"}
	_, err := uc.Recommend(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, ProfileQueryText(profile), emb.last)
}

func TestProfileQueryText(t *testing.T) {
	assert.Equal(t,
		"User wants:\nCuisines: Any\nPrice Range: Any\nAmbiance: Any\nDietary Notes: None\nSpecial Occasions: None",
		ProfileQueryText(domain.UserTasteProfile{}))

	assert.Equal(t,
		"User wants:\nCuisines: Thai, Lao\nPrice Range: $$\nAmbiance: lively\nDietary Notes: vegan\nSpecial Occasions: birthday, anniversary",
		ProfileQueryText(domain.UserTasteProfile{
			Cuisines:         []string{"Thai", "Lao"},
			PriceRange:       domain.PriceModerate,
			Ambiance:         []string{"lively"},
			DietaryNotes:     "vegan",
			SpecialOccasions: []string{"birthday", "anniversary"},
		}))
}
