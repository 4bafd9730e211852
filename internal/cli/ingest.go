package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestNoProgress bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed the restaurant catalog",
	Long: `Embed every restaurant in the catalog and report what was stored.
With embedding.cache_path set, vectors are persisted so later runs of
recommend and serve skip the provider for unchanged restaurants.

Examples:
  dineai ingest
  DINEAI_EMBEDDING__PROVIDER=mock dineai ingest`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "disable the progress bar")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Embedding %d restaurants with %s...\n", len(a.catalog), a.embedder.ModelName())

	result, err := a.ingest(cmd.Context(), !ingestNoProgress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Restaurants: %d\n", result.Total)
	fmt.Printf("  Embedded:    %d\n", result.Embedded)
	fmt.Printf("  Dropped:     %d\n", len(result.Dropped))
	fmt.Printf("  Duration:    %s\n", formatDuration(result.Duration))

	if len(result.Dropped) > 0 {
		fmt.Printf("\nNot embedded:\n")
		for _, name := range result.Dropped {
			fmt.Printf("  - %s\n", name)
		}
	}

	if a.cache != nil {
		if n, err := a.cache.Count(); err == nil {
			fmt.Printf("\nEmbedding cache: %d vectors\n", n)
		}
	}
	return nil
}
