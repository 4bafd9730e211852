package fallback

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/port"
)

// Chain tries selectors in order and returns the first success. A selector
// that succeeds with no candidates counts as a failure when another remains.
type Chain struct {
	selectors []port.CandidateSelector
	logger    zerolog.Logger
}

var _ port.CandidateSelector = (*Chain)(nil)

func NewChain(logger zerolog.Logger, selectors ...port.CandidateSelector) *Chain {
	return &Chain{
		selectors: selectors,
		logger:    logger.With().Str("component", "fallback").Logger(),
	}
}

func (c *Chain) SelectCandidates(ctx context.Context, profile domain.UserTasteProfile, limit int) ([]domain.ScoredCandidate, error) {
	if len(c.selectors) == 0 {
		return nil, errors.New("fallback: no selectors configured")
	}

	var errs []error
	for i, s := range c.selectors {
		candidates, err := s.SelectCandidates(ctx, profile, limit)
		last := i == len(c.selectors)-1
		if err == nil && (len(candidates) > 0 || last) {
			return candidates, nil
		}
		if err == nil {
			err = errors.New("selector returned no candidates")
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if !last {
			c.logger.Warn().Err(err).Int("selector", i).Msg("fallback selector failed, trying next")
		}
	}
	return nil, errors.Join(errs...)
}
