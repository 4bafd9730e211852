package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/darshil0/DineAI/config"
	"github.com/darshil0/DineAI/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dineai",
	Short: "DineAI - restaurant recommendations from a taste profile",
	Long: `DineAI embeds a restaurant catalog into a vector store, retrieves the
restaurants closest to a user's taste profile and re-ranks them with a
deterministic scoring function. When embeddings are unavailable it falls
back to metadata scoring or an LLM pick.

Example usage:
  dineai ingest                                   # Embed the catalog, warming the cache
  dineai recommend --cuisine Italian --price '$$' # Recommend from flags
  dineai serve                                    # Run the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logging.Init(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./dineai.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "working directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
