package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darshil0/DineAI/config"
	"github.com/darshil0/DineAI/internal/adapter/embedding"
	"github.com/darshil0/DineAI/internal/adapter/fallback"
	"github.com/darshil0/DineAI/internal/domain"
)

func resetRecommendFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		recCuisines, recPrice, recAmbiance = nil, "", nil
		recDiet, recOccasions, recProfile = "", nil, ""
		recJSON, recExplain = false, false
	})
}

func TestProfileFromFlags(t *testing.T) {
	resetRecommendFlags(t)
	recCuisines = []string{"Italian", "French"}
	recPrice = " $$ "
	recAmbiance = []string{"romantic"}
	recDiet = "vegetarian"

	p, err := profileFromFlags(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"Italian", "French"}, p.Cuisines)
	assert.Equal(t, domain.PriceModerate, p.PriceRange)
	assert.Equal(t, "vegetarian", p.DietaryNotes)
}

func TestProfileFromFlags_InvalidPrice(t *testing.T) {
	resetRecommendFlags(t)
	recPrice = "cheap"

	_, err := profileFromFlags(strings.NewReader(""))
	assert.Error(t, err)
}

func TestProfileFromFlags_File(t *testing.T) {
	resetRecommendFlags(t)
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cuisines":["Thai"],"price_range":"$","special_occasions":["birthday"]}`), 0644))
	recProfile = path

	p, err := profileFromFlags(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"Thai"}, p.Cuisines)
	assert.Equal(t, domain.PriceBudget, p.PriceRange)
	assert.Equal(t, []string{"birthday"}, p.SpecialOccasions)
}

func TestProfileFromFlags_Stdin(t *testing.T) {
	resetRecommendFlags(t)
	recProfile = "-"

	p, err := profileFromFlags(strings.NewReader(`{"ambiance":["lively"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"lively"}, p.Ambiance)

	_, err = profileFromFlags(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestBuildEmbedder(t *testing.T) {
	t.Run("mock", func(t *testing.T) {
		e := buildEmbedder(config.EmbeddingConfig{Provider: "mock", Dimension: 16}, nil, zerolog.Nop())
		assert.IsType(t, &embedding.MockEmbedder{}, e)
		assert.Equal(t, 16, e.Dimension())
	})

	t.Run("missing key degrades", func(t *testing.T) {
		t.Setenv("DINEAI_TEST_MISSING_KEY", "")
		e := buildEmbedder(config.EmbeddingConfig{Provider: "openai", APIKeyEnv: "DINEAI_TEST_MISSING_KEY"}, nil, zerolog.Nop())

		_, err := e.Embed(context.Background(), "x")
		require.Error(t, err)
		assert.False(t, embedding.IsRetryable(err))
	})

	t.Run("decorated provider", func(t *testing.T) {
		ec := config.DefaultConfig().Embedding
		ec.Provider = "ollama"
		ec.RequestsPerSecond = 10
		e := buildEmbedder(ec, nil, zerolog.Nop())
		assert.IsType(t, &embedding.BreakerEmbedder{}, e)
		assert.Equal(t, "nomic-embed-text", e.ModelName())
	})

	t.Run("ingestion chain has no breaker", func(t *testing.T) {
		ec := config.DefaultConfig().Embedding
		ec.Provider = "ollama"
		ec.RequestsPerSecond = 10
		e := embedding.WithoutBreaker(buildEmbedder(ec, nil, zerolog.Nop()))
		assert.IsType(t, &embedding.RateLimitedEmbedder{}, e)
		assert.Equal(t, "nomic-embed-text", e.ModelName())
	})

	t.Run("cache is outermost", func(t *testing.T) {
		ec := config.DefaultConfig().Embedding
		ec.Provider = "ollama"
		e := buildEmbedder(ec, nopCache{}, zerolog.Nop())
		assert.IsType(t, &embedding.CachedEmbedder{}, e)
	})
}

type nopCache struct{}

func (nopCache) Get(string) ([]float32, bool, error) { return nil, false, nil }
func (nopCache) Put(string, []float32) error         { return nil }

func TestBuildFallback(t *testing.T) {
	restaurants := []domain.Restaurant{{ID: "a", Name: "A", Cuisine: "Thai", PriceTier: domain.PriceBudget}}

	s := buildFallback(config.FallbackConfig{Mode: "static"}, restaurants, zerolog.Nop())
	assert.IsType(t, &fallback.StaticSelector{}, s)

	t.Setenv("DINEAI_TEST_LLM_KEY", "")
	s = buildFallback(config.FallbackConfig{Mode: "llm", Provider: "openai", APIKeyEnv: "DINEAI_TEST_LLM_KEY"}, restaurants, zerolog.Nop())
	assert.IsType(t, &fallback.StaticSelector{}, s)

	s = buildFallback(config.FallbackConfig{Mode: "llm", Provider: "local"}, restaurants, zerolog.Nop())
	assert.IsType(t, &fallback.Chain{}, s)
}

func TestPrintList(t *testing.T) {
	list := &domain.CandidateList{
		RequestID: "req-1",
		Source:    domain.SourceVector,
		Candidates: []domain.ScoredCandidate{{
			Restaurant: domain.Restaurant{
				Name: "Lilia", Cuisine: "Italian", PriceTier: domain.PriceUpscale,
				Neighborhood: "Williamsburg", Tags: []string{"romantic"},
			},
			MatchScore:     0.75,
			EmbeddingScore: 0.8,
		}},
	}
	profile := domain.UserTasteProfile{Cuisines: []string{"italian"}, Ambiance: []string{"Romantic"}}

	var buf bytes.Buffer
	printList(&buf, list, profile, true)
	out := buf.String()
	assert.Contains(t, out, "source: vector")
	assert.Contains(t, out, "Lilia")
	assert.Contains(t, out, "0.750")
	assert.Contains(t, out, "similarity 0.400  cuisine 0.15  price 0.00  ambiance 0.10")
	assert.Contains(t, out, "request req-1")

	buf.Reset()
	printList(&buf, &domain.CandidateList{Source: domain.SourceFallback}, profile, false)
	assert.Contains(t, buf.String(), "No recommendations.")
}

func TestWriteListJSON(t *testing.T) {
	list := &domain.CandidateList{
		Source: domain.SourceFallback,
		Candidates: []domain.ScoredCandidate{{
			Restaurant: domain.Restaurant{ID: "via", Name: "Via Carota", Cuisine: "Italian"},
			MatchScore: 0.15,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeListJSON(&buf, list, domain.UserTasteProfile{Cuisines: []string{"Italian"}}, true))

	var got struct {
		Source     string `json:"source"`
		Candidates []struct {
			ID         string  `json:"id"`
			MatchScore float64 `json:"match_score"`
			Breakdown  struct {
				Cuisine float64 `json:"cuisine"`
				Total   float64 `json:"total"`
			} `json:"breakdown"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "fallback", got.Source)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "via", got.Candidates[0].ID)
	assert.InDelta(t, 0.15, got.Candidates[0].Breakdown.Cuisine, 1e-9)
	assert.InDelta(t, 0.15, got.Candidates[0].Breakdown.Total, 1e-9)
}

func TestRating(t *testing.T) {
	assert.Equal(t, "HIGH", rating(0.9))
	assert.Equal(t, "GOOD", rating(0.6))
	assert.Equal(t, "OK", rating(0.4))
	assert.Equal(t, "LOW", rating(0.1))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1s", formatDuration(0))
	assert.Equal(t, "42s", formatDuration(42e9))
	assert.Equal(t, "2m5s", formatDuration(125e9))
}

func TestRecommendCommand_MockProvider(t *testing.T) {
	resetRecommendFlags(t)
	dir := t.TempDir()
	t.Setenv("DINEAI_EMBEDDING__PROVIDER", "mock")
	t.Setenv("DINEAI_INGEST__BATCH_PAUSE", "0s")
	t.Setenv("DINEAI_LOGGING__LEVEL", "disabled")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"recommend", "--dir", dir, "--cuisine", "Italian", "--price", "$$", "--json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		rootDir, cfgFile, logLevel = "", "", ""
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	var list domain.CandidateList
	require.NoError(t, json.Unmarshal(out.Bytes(), &list))
	assert.Equal(t, domain.SourceVector, list.Source)
	assert.Len(t, list.Candidates, 10)
	assert.NotEmpty(t, list.RequestID)
	for i := 1; i < len(list.Candidates); i++ {
		assert.GreaterOrEqual(t, list.Candidates[i-1].MatchScore, list.Candidates[i].MatchScore)
	}
}
