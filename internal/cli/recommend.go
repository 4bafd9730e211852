package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/darshil0/DineAI/internal/adapter/ranker"
	"github.com/darshil0/DineAI/internal/domain"
)

var (
	recCuisines  []string
	recPrice     string
	recAmbiance  []string
	recDiet      string
	recOccasions []string
	recProfile   string
	recJSON      bool
	recExplain   bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend restaurants for a taste profile",
	Long: `Embed the catalog, then rank restaurants against a taste profile given
by flags or a JSON file.

Examples:
  dineai recommend --cuisine Italian --cuisine French --price '$$$' --ambiance romantic
  dineai recommend --profile profile.json --json
  dineai recommend --cuisine Thai --diet vegetarian --explain`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	f := recommendCmd.Flags()
	f.StringSliceVar(&recCuisines, "cuisine", nil, "preferred cuisine (repeatable)")
	f.StringVar(&recPrice, "price", "", "price tier: $, $$, $$$ or $$$$")
	f.StringSliceVar(&recAmbiance, "ambiance", nil, "preferred ambiance tag (repeatable)")
	f.StringVar(&recDiet, "diet", "", "dietary notes, e.g. vegetarian")
	f.StringSliceVar(&recOccasions, "occasion", nil, "special occasion (repeatable)")
	f.StringVar(&recProfile, "profile", "", "read the profile from a JSON file (- for stdin)")
	f.BoolVar(&recJSON, "json", false, "output as JSON")
	f.BoolVar(&recExplain, "explain", false, "show the score breakdown for each candidate")
	recommendCmd.MarkFlagsMutuallyExclusive("profile", "cuisine")
	recommendCmd.MarkFlagsMutuallyExclusive("profile", "price")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	profile, err := profileFromFlags(cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.ingest(ctx, false); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	list, err := a.recommender(false).Recommend(ctx, profile)
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if recJSON {
		return writeListJSON(out, list, profile, recExplain)
	}
	printList(out, list, profile, recExplain)
	return nil
}

var profileValidator = validator.New(validator.WithRequiredStructEnabled())

func profileFromFlags(stdin io.Reader) (domain.UserTasteProfile, error) {
	var profile domain.UserTasteProfile

	if recProfile != "" {
		var data []byte
		var err error
		if recProfile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(recProfile)
		}
		if err != nil {
			return profile, fmt.Errorf("failed to read profile: %w", err)
		}
		if err := json.Unmarshal(data, &profile); err != nil {
			return profile, fmt.Errorf("invalid profile JSON: %w", err)
		}
	} else {
		profile = domain.UserTasteProfile{
			Cuisines:         recCuisines,
			PriceRange:       domain.PriceTier(strings.TrimSpace(recPrice)),
			Ambiance:         recAmbiance,
			DietaryNotes:     recDiet,
			SpecialOccasions: recOccasions,
		}
	}

	if err := profileValidator.Struct(profile); err != nil {
		return profile, fmt.Errorf("invalid profile: %w", err)
	}
	return profile, nil
}

type explainedCandidate struct {
	domain.ScoredCandidate
	Breakdown *ranker.Breakdown `json:"breakdown,omitempty"`
}

type listOutput struct {
	RequestID  string                 `json:"request_id,omitempty"`
	Source     domain.CandidateSource `json:"source"`
	Candidates []explainedCandidate   `json:"candidates"`
}

func breakdown(profile domain.UserTasteProfile, list *domain.CandidateList, c domain.ScoredCandidate) ranker.Breakdown {
	if list.Source == domain.SourceVector {
		return ranker.Explain(profile, c.Restaurant, c.EmbeddingScore)
	}
	b := ranker.Explain(profile, c.Restaurant, 0)
	b.Total = c.MatchScore
	return b
}

func writeListJSON(w io.Writer, list *domain.CandidateList, profile domain.UserTasteProfile, explain bool) error {
	out := listOutput{
		RequestID:  list.RequestID,
		Source:     list.Source,
		Candidates: make([]explainedCandidate, len(list.Candidates)),
	}
	for i, c := range list.Candidates {
		out.Candidates[i].ScoredCandidate = c
		if explain {
			b := breakdown(profile, list, c)
			out.Candidates[i].Breakdown = &b
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printList(w io.Writer, list *domain.CandidateList, profile domain.UserTasteProfile, explain bool) {
	if len(list.Candidates) == 0 {
		fmt.Fprintln(w, "No recommendations.")
		return
	}

	fmt.Fprintf(w, "Top %d restaurants (source: %s)\n\n", len(list.Candidates), list.Source)
	for i, c := range list.Candidates {
		fmt.Fprintf(w, "%2d. %-28s %-14s %-5s %.3f\n", i+1, c.Name, c.Cuisine, c.PriceTier, c.MatchScore)
		if c.Neighborhood != "" || len(c.Tags) > 0 {
			fmt.Fprintf(w, "    %s  [%s]\n", c.Neighborhood, strings.Join(c.Tags, ", "))
		}
		if explain {
			b := breakdown(profile, list, c)
			fmt.Fprintf(w, "    similarity %.3f  cuisine %.2f  price %.2f  ambiance %.2f  dietary %.2f\n",
				b.Similarity, b.Cuisine, b.Price, b.Ambiance, b.Dietary)
		}
	}
	if list.RequestID != "" {
		fmt.Fprintf(w, "\nrequest %s\n", list.RequestID)
	}
}
