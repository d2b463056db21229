package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/review-insights/internal/model"
)

var (
	analyzeURL        string
	analyzeVenue      string
	analyzeMaxReviews int
	analyzeFormat     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze reviews for a single venue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAnalysis(cfg)
		if err != nil {
			return err
		}

		target := analyzeMaxReviews
		if target <= 0 {
			target = cfg.Source.TargetReviews
		}

		report, err := env.Pipeline.Analyze(ctx, analyzeVenue, analyzeURL, target)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis finished",
			zap.String("venue", report.Venue),
			zap.Int("entities", report.Result.EntitiesFound),
			zap.Int("lost_batches", report.Result.LostBatches),
		)

		return writeReport(report, analyzeFormat)
	},
}

// writeReport prints the run report to stdout as json or yaml.
func writeReport(report *model.RunReport, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		return enc.Encode(report)
	case "json", "":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return eris.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "venue review listing URL (required)")
	analyzeCmd.Flags().StringVar(&analyzeVenue, "venue", "", "venue name (required)")
	analyzeCmd.Flags().IntVar(&analyzeMaxReviews, "max-reviews", 0, "target review count (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json or yaml")
	_ = analyzeCmd.MarkFlagRequired("url")
	_ = analyzeCmd.MarkFlagRequired("venue")
	rootCmd.AddCommand(analyzeCmd)
}
