package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/review-insights/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "review-insights",
	Short: "Venue review extraction and Q&A engine",
	Long:  "Fetches customer reviews for a venue, extracts menu items and experience aspects with per-entity sentiment via batched LLM calls, and answers free-text questions over the review corpus.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
