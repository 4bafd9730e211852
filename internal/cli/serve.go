package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darshil0/DineAI/internal/httpapi"
	"github.com/darshil0/DineAI/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recommendation HTTP API",
	Long: `Embed the catalog, then serve recommendations over HTTP until
interrupted. The listener opens only after ingestion finishes.

Routes:
  GET  /api/health
  POST /api/recommendations
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := newApp(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.ingest(ctx, false); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := httpapi.NewServer(a.recommender(true), a.store, httpapi.Options{
		Addr:            addr,
		RateLimit:       cfg.Server.RateLimit,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logging.WithComponent("http"))

	return srv.Run(ctx)
}
