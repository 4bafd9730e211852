package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/darshil0/DineAI/internal/adapter/llm"
	"github.com/darshil0/DineAI/internal/domain"
	"github.com/darshil0/DineAI/internal/port"
)

const systemPrompt = `You select candidate restaurants for a diner based on their taste profile.

Rules:
1. Prefer restaurants that match requested cuisines, fit the price range, and align with ambiance and dietary notes.
2. Penalize mismatched price tiers and conflicting dietary options (e.g., steakhouse for a vegetarian).
3. Only use the provided data; never invent restaurants or fields.
4. Assign each pick a match_score between 0.0 and 1.0.`

// LLMSelector asks a language model to pick candidates from the catalog.
// Picks that do not name a catalog restaurant are discarded.
type LLMSelector struct {
	model   port.LLM
	catalog []domain.Restaurant
	byID    map[string]int
	byName  map[string]int
}

var _ port.CandidateSelector = (*LLMSelector)(nil)

func NewLLMSelector(model port.LLM, catalog []domain.Restaurant) *LLMSelector {
	s := &LLMSelector{
		model:   model,
		catalog: catalog,
		byID:    make(map[string]int, len(catalog)),
		byName:  make(map[string]int, len(catalog)),
	}
	for i, r := range catalog {
		if r.ID != "" {
			s.byID[r.ID] = i
		}
		s.byName[strings.ToLower(strings.TrimSpace(r.Name))] = i
	}
	return s
}

type pick struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MatchScore float64 `json:"match_score"`
}

type pickList struct {
	Candidates []pick `json:"candidates"`
}

func (s *LLMSelector) SelectCandidates(ctx context.Context, profile domain.UserTasteProfile, limit int) ([]domain.ScoredCandidate, error) {
	prompt, err := buildPrompt(profile, s.catalog, limit)
	if err != nil {
		return nil, err
	}

	resp, err := s.model.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm selection failed: %w", err)
	}

	picks, err := parsePicks(resp)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(picks))
	out := make([]domain.ScoredCandidate, 0, len(picks))
	for _, p := range picks {
		idx, ok := s.lookup(p)
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, domain.ScoredCandidate{
			Restaurant: s.catalog[idx],
			MatchScore: clamp01(p.MatchScore),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *LLMSelector) lookup(p pick) (int, bool) {
	if p.ID != "" {
		if i, ok := s.byID[p.ID]; ok {
			return i, true
		}
	}
	i, ok := s.byName[strings.ToLower(strings.TrimSpace(p.Name))]
	return i, ok
}

func buildPrompt(profile domain.UserTasteProfile, catalog []domain.Restaurant, limit int) (string, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}
	catalogJSON, err := json.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}

	return fmt.Sprintf(`Rank the provided restaurants from best to worst match for the user taste profile.
Return the top %d candidates as JSON: {"candidates":[{"id":"...","name":"...","match_score":0.0}]}
Do not include restaurants that are not in the list.

User Taste Profile: %s
Available Restaurants: %s`, limit, profileJSON, catalogJSON), nil
}

// parsePicks accepts either {"candidates":[...]} or a bare array.
func parsePicks(resp string) ([]pick, error) {
	cleaned := llm.CleanJSON(resp)
	if cleaned == "" {
		return nil, nil
	}

	if strings.HasPrefix(cleaned, "[") {
		var picks []pick
		if err := json.Unmarshal([]byte(cleaned), &picks); err != nil {
			return nil, fmt.Errorf("failed to parse llm candidates: %w", err)
		}
		return picks, nil
	}

	var list pickList
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		return nil, fmt.Errorf("failed to parse llm candidates: %w", err)
	}
	return list.Candidates, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
