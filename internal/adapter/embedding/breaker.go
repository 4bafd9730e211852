package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/darshil0/DineAI/internal/metrics"
	"github.com/darshil0/DineAI/internal/port"
)

// ErrCircuitOpen marks calls rejected by an open or half-open circuit
// without reaching the provider.
var ErrCircuitOpen = errors.New("embedding: circuit open")

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// BreakerEmbedder stops calling a failing provider for a cool-down period.
// An open circuit surfaces as an ordinary embedding error.
type BreakerEmbedder struct {
	inner port.Embedder
	cb    *gobreaker.CircuitBreaker[[]float32]
}

func NewBreakerEmbedder(inner port.Embedder, cfg BreakerConfig, logger zerolog.Logger) *BreakerEmbedder {
	if cfg.Name == "" {
		cfg.Name = "embedding"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EmbeddingBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("embedding circuit breaker state changed")
		},
	}

	return &BreakerEmbedder{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[[]float32](settings),
	}
}

func (e *BreakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.cb.Execute(func() ([]float32, error) {
		return e.inner.Embed(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, e.cb.Name(), err)
	}
	return vec, err
}

func (e *BreakerEmbedder) State() gobreaker.State {
	return e.cb.State()
}

func (e *BreakerEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *BreakerEmbedder) ModelName() string { return e.inner.ModelName() }

// WithoutBreaker returns e with every circuit breaker layer removed. The
// other decorators are kept and share their cache and limiter with e.
func WithoutBreaker(e port.Embedder) port.Embedder {
	switch d := e.(type) {
	case *BreakerEmbedder:
		return WithoutBreaker(d.inner)
	case *CachedEmbedder:
		return NewCachedEmbedder(WithoutBreaker(d.inner), d.cache, d.logger)
	case *RateLimitedEmbedder:
		return &RateLimitedEmbedder{inner: WithoutBreaker(d.inner), limiter: d.limiter}
	case *InstrumentedEmbedder:
		return NewInstrumentedEmbedder(WithoutBreaker(d.inner))
	default:
		return e
	}
}
