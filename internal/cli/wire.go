package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/darshil0/DineAI/config"
	"github.com/darshil0/DineAI/internal/adapter/cache"
	"github.com/darshil0/DineAI/internal/adapter/catalog"
	"github.com/darshil0/DineAI/internal/adapter/embedding"
	"github.com/darshil0/DineAI/internal/adapter/fallback"
	"github.com/darshil0/DineAI/internal/adapter/llm"
	"github.com/darshil0/DineAI/internal/adapter/memstore"
	"github.com/darshil0/DineAI/internal/adapter/store"
	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/logging"
	"github.com/darshil0/DineAI/internal/port"
	"github.com/darshil0/DineAI/internal/usecase"
)

// app holds the components shared by ingest, recommend and serve.
type app struct {
	cfg      *config.Config
	catalog  []domain.Restaurant
	store    *memstore.MemoryStore[domain.Restaurant]
	embedder port.Embedder
	fallback port.CandidateSelector
	cache    *store.EmbeddingCache
	logger   zerolog.Logger
}

func newApp(cfg *config.Config, dir string) (*app, error) {
	logger := logging.WithComponent("cli")

	restaurants, err := loadCatalog(cfg, dir)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("restaurants", len(restaurants)).Msg("catalog loaded")

	a := &app{
		cfg:     cfg,
		catalog: restaurants,
		store:   memstore.NewMemoryStore[domain.Restaurant](),
		logger:  logger,
	}

	if path := cfg.EmbeddingCachePath(dir); path != "" {
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		a.cache, err = store.OpenEmbeddingCache(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
	}

	a.embedder = buildEmbedder(cfg.Embedding, a.cache, logging.WithComponent("embedding"))
	a.fallback = buildFallback(cfg.Fallback, restaurants, logging.Logger())
	return a, nil
}

func (a *app) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}

func loadCatalog(cfg *config.Config, dir string) ([]domain.Restaurant, error) {
	if cfg.Catalog.Dir == "" {
		return catalog.Default()
	}
	root := cfg.Catalog.Dir
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}
	restaurants, err := catalog.NewLoader(cfg.Catalog.Includes, cfg.Catalog.Excludes).Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return restaurants, nil
}

// buildEmbedder assembles provider, metrics, rate limit, circuit breaker and
// cache, innermost first. A provider that cannot be constructed yields an
// embedder that always fails, so recommendations degrade to the fallback.
func buildEmbedder(ec config.EmbeddingConfig, vectors port.EmbeddingCache, logger zerolog.Logger) port.Embedder {
	opts := embedding.Options{
		APIKeyEnv: ec.APIKeyEnv,
		Model:     ec.Model,
		BaseURL:   ec.BaseURL,
		Dimension: ec.Dimension,
		Timeout:   ec.Timeout,
	}

	var (
		base port.Embedder
		err  error
	)
	switch ec.Provider {
	case "openai":
		base, err = embedding.NewOpenAIEmbedder(opts)
	case "gemini":
		base, err = embedding.NewGeminiEmbedder(opts)
	case "jina":
		base, err = embedding.NewJinaEmbedder(opts)
	case "ollama":
		base = embedding.NewOllamaEmbedder(opts)
	case "mock":
		return embedding.NewMockEmbedder(ec.Dimension)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}
	if err != nil {
		logger.Warn().Err(err).Str("provider", ec.Provider).Msg("embedding provider unavailable, recommendations will use the fallback")
		return unavailableEmbedder{provider: ec.Provider, err: err}
	}

	e := port.Embedder(embedding.NewInstrumentedEmbedder(base))
	if ec.RequestsPerSecond > 0 {
		e = embedding.NewRateLimitedEmbedder(e, ec.RequestsPerSecond, ec.Burst)
	}
	if ec.Breaker.Enabled {
		e = embedding.NewBreakerEmbedder(e, embedding.BreakerConfig{
			Name:             ec.Provider,
			FailureThreshold: ec.Breaker.FailureThreshold,
			Timeout:          ec.Breaker.Timeout,
		}, logger)
	}
	if vectors != nil {
		e = embedding.NewCachedEmbedder(e, vectors, logger)
	}
	return e
}

type unavailableEmbedder struct {
	provider string
	err      error
}

func (u unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, &embedding.Error{Provider: u.provider, Message: u.err.Error()}
}

func (u unavailableEmbedder) Dimension() int    { return 0 }
func (u unavailableEmbedder) ModelName() string { return u.provider }

// buildFallback returns the static selector, preceded by an LLM selector
// when one is configured and reachable.
func buildFallback(fc config.FallbackConfig, restaurants []domain.Restaurant, logger zerolog.Logger) port.CandidateSelector {
	static := fallback.NewStaticSelector(restaurants)
	if fc.Mode != "llm" {
		return static
	}

	client, err := llm.NewClient(llm.Options{
		Provider:  fc.Provider,
		Model:     fc.Model,
		BaseURL:   fc.BaseURL,
		APIKeyEnv: fc.APIKeyEnv,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("LLM fallback unavailable, using static scoring only")
		return static
	}
	return fallback.NewChain(logger, fallback.NewLLMSelector(client, restaurants), static)
}

func (a *app) ingest(ctx context.Context, showProgress bool) (*usecase.IngestResult, error) {
	// Ingestion has its own retry budget; a circuit tripped by a few bad
	// restaurants must not stall the rest.
	uc := usecase.NewIngestUseCase(a.store, embedding.WithoutBreaker(a.embedder), usecase.IngestOptions{
		BatchSize:      a.cfg.Ingest.BatchSize,
		MaxAttempts:    a.cfg.Ingest.MaxAttempts,
		RetryBaseDelay: a.cfg.Ingest.RetryBaseDelay,
		BatchPause:     a.cfg.Ingest.BatchPause,
	}, logging.Logger())

	if showProgress {
		uc.Progress = newProgress("Embedding")
	}
	return uc.Ingest(ctx, a.catalog)
}

// recommender returns the retrieval pipeline, fronted by the result cache
// when withCache is set and a cache size is configured.
func (a *app) recommender(withCache bool) port.Recommender {
	var r port.Recommender = usecase.NewRecommendUseCase(a.store, a.embedder, a.fallback, usecase.RecommendOptions{
		PoolSize: a.cfg.Retrieve.PoolSize,
		Limit:    a.cfg.Retrieve.Limit,
	}, logging.Logger())

	if withCache && a.cfg.Retrieve.CacheSize > 0 {
		results := cache.NewResultCache(a.cfg.Retrieve.CacheSize, a.cfg.Retrieve.CacheTTL)
		r = cache.NewCachedRecommender(r, results, a.store, cache.ProfileKey)
	}
	return r
}

// newProgress renders ingestion progress. The callback is safe for
// concurrent use.
func newProgress(label string) func(done, total int) {
	var (
		mu        sync.Mutex
		bar       *progressbar.ProgressBar
		startTime time.Time
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
