package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshil0/DineAI/internal/domain"
)

func catalog() []domain.Restaurant {
	return []domain.Restaurant{
		{ID: "taco", Name: "Taco Stand", Cuisine: "Mexican", PriceTier: domain.PriceBudget, Tags: []string{"casual"}},
		{ID: "lilia", Name: "Lilia", Cuisine: "Italian", PriceTier: domain.PriceUpscale, Tags: []string{"romantic"}},
		{ID: "via", Name: "Via Carota", Cuisine: "Italian", PriceTier: domain.PriceModerate, Tags: []string{"romantic", "cozy"}},
		{ID: "smash", Name: "Smash Burgers", Cuisine: "American", PriceTier: domain.PriceBudget},
	}
}

func TestStaticSelector(t *testing.T) {
	s := NewStaticSelector(catalog())
	profile := domain.UserTasteProfile{
		Cuisines:   []string{"Italian"},
		PriceRange: domain.PriceModerate,
		Ambiance:   []string{"romantic"},
	}

	got, err := s.SelectCandidates(context.Background(), profile, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "via", got[0].ID)
	assert.InDelta(t, 0.40, got[0].MatchScore, 1e-9)
	assert.Equal(t, "lilia", got[1].ID)
	assert.InDelta(t, 0.25, got[1].MatchScore, 1e-9)
	// Remaining zero scores keep catalog order.
	assert.Equal(t, "taco", got[2].ID)
	for _, c := range got {
		assert.Equal(t, 0.0, c.EmbeddingScore)
	}
}

func TestStaticSelector_NoLimit(t *testing.T) {
	got, err := NewStaticSelector(catalog()).SelectCandidates(context.Background(), domain.UserTasteProfile{}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

type fakeLLM struct {
	resp   string
	err    error
	prompt string
}

func (f *fakeLLM) Generate(_ context.Context, _, user string) (string, error) {
	f.prompt = user
	return f.resp, f.err
}

func (f *fakeLLM) ModelName() string { return "fake" }

func TestLLMSelector(t *testing.T) {
	model := &fakeLLM{resp: "```json\n" + `{"candidates":[
		{"id":"via","name":"Via Carota","match_score":0.92},
		{"name":"made up bistro","match_score":0.99},
		{"name":"lilia","match_score":1.7},
		{"id":"via","match_score":0.5},
		{"id":"taco","match_score":-0.2}
	]}` + "\n```"}

	s := NewLLMSelector(model, catalog())
	got, err := s.SelectCandidates(context.Background(), domain.UserTasteProfile{Cuisines: []string{"Italian"}}, 10)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "via", got[0].ID)
	assert.InDelta(t, 0.92, got[0].MatchScore, 1e-9)
	assert.Equal(t, "lilia", got[1].ID)
	assert.Equal(t, 1.0, got[1].MatchScore)
	assert.Equal(t, "taco", got[2].ID)
	assert.Equal(t, 0.0, got[2].MatchScore)

	assert.Contains(t, model.prompt, `"cuisines":["Italian"]`)
	assert.Contains(t, model.prompt, "Via Carota")
}

func TestLLMSelector_BareArrayAndLimit(t *testing.T) {
	model := &fakeLLM{resp: `[{"id":"smash","match_score":0.3},{"id":"taco","match_score":0.2}]`}
	got, err := NewLLMSelector(model, catalog()).SelectCandidates(context.Background(), domain.UserTasteProfile{}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "smash", got[0].ID)
}

func TestLLMSelector_Errors(t *testing.T) {
	_, err := NewLLMSelector(&fakeLLM{err: errors.New("timeout")}, catalog()).
		SelectCandidates(context.Background(), domain.UserTasteProfile{}, 10)
	assert.ErrorContains(t, err, "timeout")

	_, err = NewLLMSelector(&fakeLLM{resp: "not json"}, catalog()).
		SelectCandidates(context.Background(), domain.UserTasteProfile{}, 10)
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	static := NewStaticSelector(catalog())

	t.Run("first success wins", func(t *testing.T) {
		first := NewLLMSelector(&fakeLLM{resp: `[{"id":"lilia","match_score":0.8}]`}, catalog())
		got, err := NewChain(zerolog.Nop(), first, static).SelectCandidates(ctx, domain.UserTasteProfile{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "lilia", got[0].ID)
	})

	t.Run("falls through on error", func(t *testing.T) {
		first := NewLLMSelector(&fakeLLM{err: errors.New("down")}, catalog())
		got, err := NewChain(zerolog.Nop(), first, static).SelectCandidates(ctx, domain.UserTasteProfile{}, 10)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("falls through on empty", func(t *testing.T) {
		first := NewLLMSelector(&fakeLLM{resp: `[]`}, catalog())
		got, err := NewChain(zerolog.Nop(), first, static).SelectCandidates(ctx, domain.UserTasteProfile{}, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("all fail", func(t *testing.T) {
		a := NewLLMSelector(&fakeLLM{err: errors.New("a down")}, catalog())
		b := NewLLMSelector(&fakeLLM{err: errors.New("b down")}, catalog())
		_, err := NewChain(zerolog.Nop(), a, b).SelectCandidates(ctx, domain.UserTasteProfile{}, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a down")
		assert.Contains(t, err.Error(), "b down")
	})

	t.Run("empty chain", func(t *testing.T) {
		_, err := NewChain(zerolog.Nop()).SelectCandidates(ctx, domain.UserTasteProfile{}, 10)
		assert.Error(t, err)
	})
}
