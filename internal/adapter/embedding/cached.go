package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/darshil0/DineAI/internal/metrics"
	"github.com/darshil0/DineAI/internal/port"
)

// CachedEmbedder reads through a persistent cache. Cache failures are
// logged and never fail the call.
type CachedEmbedder struct {
	inner  port.Embedder
	cache  port.EmbeddingCache
	logger zerolog.Logger
}

func NewCachedEmbedder(inner port.Embedder, cache port.EmbeddingCache, logger zerolog.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.inner.ModelName(), text)

	vec, ok, err := e.cache.Get(key)
	if err != nil {
		e.logger.Warn().Err(err).Msg("embedding cache read failed")
	} else if ok && len(vec) > 0 {
		metrics.EmbeddingRequests.WithLabelValues(e.inner.ModelName(), "cache_hit").Inc()
		return vec, nil
	}

	vec, err = e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Put(key, vec); err != nil {
		e.logger.Warn().Err(err).Msg("embedding cache write failed")
	}
	return vec, nil
}

func (e *CachedEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *CachedEmbedder) ModelName() string { return e.inner.ModelName() }

// CacheKey identifies a text under a given model.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
