package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	benchQuery string
	benchTopK  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Probe semantic retrieval quality",
	Long: `Embed the catalog and a free-text query, then print the nearest
restaurants by raw cosine similarity, without re-ranking. Useful for
judging an embedding model before serving with it.

Examples:
  dineai bench -q "quiet place for a first date with good wine"
  dineai bench -q "cheap spicy noodles" -k 5`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&benchQuery, "query", "q", "", "free-text query (required)")
	benchCmd.Flags().IntVarP(&benchTopK, "top-k", "k", 10, "number of results")
	_ = benchCmd.MarkFlagRequired("query")
}

func runBench(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.ingest(ctx, true); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if a.store.Count() == 0 {
		return fmt.Errorf("no restaurants were embedded; check the embedding provider")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "SEMANTIC RETRIEVAL BENCHMARK")
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "Restaurants embedded: %d\n", a.store.Count())
	fmt.Fprintf(out, "Model: %s (%s)\n", a.embedder.ModelName(), a.cfg.Embedding.Provider)
	fmt.Fprintf(out, "Query: %q\n", benchQuery)
	fmt.Fprintln(out, strings.Repeat("-", 70))

	vec, err := a.embedder.Embed(ctx, benchQuery)
	if err != nil {
		return fmt.Errorf("embedding error: %w", err)
	}

	matches := a.store.Query(vec, benchTopK)
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}

	total := 0.0
	for i, m := range matches {
		total += m.Score
		r := m.Record.Metadata
		fmt.Fprintf(out, "%2d. [%-4s %.3f] %s (%s, %s)\n", i+1, rating(m.Score), m.Score, r.Name, r.Cuisine, r.PriceTier)
	}

	avg := total / float64(len(matches))
	fmt.Fprintln(out, strings.Repeat("=", 70))
	fmt.Fprintf(out, "  Average similarity: %.3f\n", avg)
	fmt.Fprintf(out, "  Top-1 similarity:   %.3f\n", matches[0].Score)
	fmt.Fprintf(out, "  Status: %s\n", rating(avg))
	return nil
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}
