package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/darshil0/DineAI/internal/port"
)

// RateLimitedEmbedder spaces provider calls with a token bucket. Waiting
// honours ctx cancellation.
type RateLimitedEmbedder struct {
	inner   port.Embedder
	limiter *rate.Limiter
}

func NewRateLimitedEmbedder(inner port.Embedder, perSecond float64, burst int) *RateLimitedEmbedder {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.inner.Embed(ctx, text)
}

func (e *RateLimitedEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *RateLimitedEmbedder) ModelName() string { return e.inner.ModelName() }
