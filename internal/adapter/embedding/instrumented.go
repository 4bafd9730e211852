package embedding

import (
	"context"
	"time"

	"github.com/darshil0/DineAI/internal/metrics"
	"github.com/darshil0/DineAI/internal/port"
)

// InstrumentedEmbedder records call counts and latency for the wrapped
// provider.
type InstrumentedEmbedder struct {
	inner port.Embedder
}

func NewInstrumentedEmbedder(inner port.Embedder) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner}
}

func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.inner.Embed(ctx, text)
	metrics.RecordEmbedding(e.inner.ModelName(), time.Since(start), err)
	return vec, err
}

func (e *InstrumentedEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *InstrumentedEmbedder) ModelName() string { return e.inner.ModelName() }
