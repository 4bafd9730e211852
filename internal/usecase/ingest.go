package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/darshil0/DineAI/internal/adapter/embedding"
	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/metrics"
	"github.com/darshil0/DineAI/internal/port"
)

type IngestOptions struct {
	// BatchSize bounds both the batch length and the in-flight embedding calls.
	BatchSize int
	// MaxAttempts is the number of embedding calls per item, first one included.
	MaxAttempts int
	// RetryBaseDelay is the wait after the first failure; it doubles per retry.
	RetryBaseDelay time.Duration
	// BatchPause separates consecutive batches.
	BatchPause time.Duration
}

const minCircuitWait = 10 * time.Millisecond

func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		BatchSize:      5,
		MaxAttempts:    3,
		RetryBaseDelay: 200 * time.Millisecond,
		BatchPause:     200 * time.Millisecond,
	}
}

// IngestUseCase embeds the restaurant catalog into the vector store once.
type IngestUseCase struct {
	store    port.VectorStore[domain.Restaurant]
	embedder port.Embedder
	opts     IngestOptions
	logger   zerolog.Logger

	// Progress, when set, is called after every item with the number of
	// items processed so far.
	Progress func(done, total int)
}

func NewIngestUseCase(
	store port.VectorStore[domain.Restaurant],
	embedder port.Embedder,
	opts IngestOptions,
	logger zerolog.Logger,
) *IngestUseCase {
	defaults := DefaultIngestOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}
	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}
	return &IngestUseCase{
		store:    store,
		embedder: embedder,
		opts:     opts,
		logger:   logger.With().Str("component", "ingest").Logger(),
	}
}

// IngestResult contains the results of an ingestion run.
type IngestResult struct {
	Skipped  bool
	Existing int
	Total    int
	Embedded int
	Dropped  []string
	Duration time.Duration
}

// Ingest embeds every restaurant and upserts the successes in one call.
// It does nothing when the store already holds records. Items that still
// fail after MaxAttempts are logged and left out. The only error returned
// is context cancellation.
func (u *IngestUseCase) Ingest(ctx context.Context, catalog []domain.Restaurant) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{Total: len(catalog)}

	if n := u.store.Count(); n > 0 {
		result.Skipped = true
		result.Existing = n
		u.logger.Info().Int("records", n).Msg("vector store already populated, skipping ingestion")
		return result, nil
	}

	u.logger.Info().
		Int("restaurants", len(catalog)).
		Int("batch_size", u.opts.BatchSize).
		Str("model", u.embedder.ModelName()).
		Msg("starting ingestion")

	records := make([]*port.VectorRecord[domain.Restaurant], len(catalog))
	var done atomic.Int64

	for begin := 0; begin < len(catalog); begin += u.opts.BatchSize {
		if begin > 0 {
			if err := sleepCtx(ctx, u.opts.BatchPause); err != nil {
				return nil, err
			}
		}

		end := begin + u.opts.BatchSize
		if end > len(catalog) {
			end = len(catalog)
		}

		var g errgroup.Group
		g.SetLimit(u.opts.BatchSize)
		for i := begin; i < end; i++ {
			g.Go(func() error {
				records[i] = u.embedRestaurant(ctx, catalog[i])
				if u.Progress != nil {
					u.Progress(int(done.Add(1)), len(catalog))
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u.logger.Debug().Int("batch_start", begin).Int("batch_end", end).Msg("batch embedded")
	}

	batch := make([]port.VectorRecord[domain.Restaurant], 0, len(catalog))
	for i, rec := range records {
		if rec == nil {
			result.Dropped = append(result.Dropped, catalog[i].Name)
			continue
		}
		batch = append(batch, *rec)
	}

	u.store.Upsert(batch)
	result.Embedded = len(batch)
	result.Duration = time.Since(start)

	metrics.IngestRecords.WithLabelValues("embedded").Add(float64(result.Embedded))
	metrics.IngestRecords.WithLabelValues("dropped").Add(float64(len(result.Dropped)))
	metrics.IngestDuration.Observe(result.Duration.Seconds())
	metrics.VectorStoreRecords.Set(float64(u.store.Count()))

	if len(catalog) > 0 && result.Embedded == 0 {
		u.logger.Error().
			Int("restaurants", len(catalog)).
			Msg("ingestion embedded no restaurants; recommendations will use the fallback path")
		return result, nil
	}

	u.logger.Info().
		Int("embedded", result.Embedded).
		Int("dropped", len(result.Dropped)).
		Dur("duration", result.Duration).
		Msg("ingestion complete")
	return result, nil
}

// embedRestaurant returns nil when every attempt failed.
func (u *IngestUseCase) embedRestaurant(ctx context.Context, r domain.Restaurant) *port.VectorRecord[domain.Restaurant] {
	text := RestaurantText(r)

	var vec []float32
	attempt := 0
	op := func() error {
		attempt++
		v, err := u.embedOnce(ctx, text)
		if err == nil && len(v) == 0 {
			err = embedding.ErrEmptyEmbedding
		}
		if err != nil {
			if ctx.Err() != nil || !embedding.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		vec = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.IngestRetries.Inc()
		u.logger.Debug().
			Err(err).
			Str("restaurant", r.Name).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("embedding failed, retrying")
	}

	if err := backoff.RetryNotify(op, u.retryPolicy(ctx), notify); err != nil {
		u.logger.Warn().
			Err(err).
			Str("restaurant", r.Name).
			Int("attempts", attempt).
			Msg("dropping restaurant after failed embedding")
		return nil
	}

	return &port.VectorRecord[domain.Restaurant]{
		ID:        r.RecordID(),
		Embedding: vec,
		Metadata:  r,
	}
}

// embedOnce makes one provider call. Rejections from an open circuit do not
// reach the provider, so they are waited out instead of counting as an attempt.
func (u *IngestUseCase) embedOnce(ctx context.Context, text string) ([]float32, error) {
	wait := u.opts.RetryBaseDelay
	if wait < minCircuitWait {
		wait = minCircuitWait
	}
	for {
		v, err := u.embedder.Embed(ctx, text)
		if !errors.Is(err, embedding.ErrCircuitOpen) {
			return v, err
		}
		u.logger.Debug().Err(err).Dur("retry_in", wait).Msg("embedding circuit open, waiting")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// retryPolicy waits base, 2*base, 4*base... between attempts, without jitter.
func (u *IngestUseCase) retryPolicy(ctx context.Context) backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     u.opts.RetryBaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         u.opts.RetryBaseDelay << uint(u.opts.MaxAttempts),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(u.opts.MaxAttempts-1)), ctx)
}

// RestaurantText is the canonical text embedded for a restaurant.
func RestaurantText(r domain.Restaurant) string {
	tags := "None"
	if len(r.Tags) > 0 {
		tags = strings.Join(r.Tags, ", ")
	}
	return fmt.Sprintf("Name: %s\nCuisine: %s\nPrice Tier: %s\nNeighborhood: %s\nTags: %s\nDescription: %s",
		r.Name, r.Cuisine, r.PriceTier, r.Neighborhood, tags, r.Description)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
