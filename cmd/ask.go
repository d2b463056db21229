package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/review-insights/internal/index"
)

var (
	askURL        string
	askMaxReviews int
	askTopN       int
)

// ask fetches and indexes a venue's reviews in-process, then answers the
// question from the index. The venue index is in-memory only, so a CLI
// invocation has to build it before querying; long-lived callers should use
// the serve command instead.
var askCmd = &cobra.Command{
	Use:   "ask <venue> <question...>",
	Short: "Answer a free-text question over a venue's reviews",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		venue := args[0]
		question := strings.Join(args[1:], " ")

		env, err := initAnalysis(cfg)
		if err != nil {
			return err
		}

		target := askMaxReviews
		if target <= 0 {
			target = cfg.Source.TargetReviews
		}

		if _, err := env.Pipeline.Index(ctx, venue, askURL, target); err != nil {
			return eris.Wrap(err, "ask: build index")
		}

		topN := askTopN
		if topN <= 0 {
			topN = cfg.Index.TopN
		}

		hits, err := env.Index.Query(venue, question, topN)
		if err != nil {
			return eris.Wrap(err, "ask: query")
		}

		out := struct {
			Venue    string               `json:"venue"`
			Question string               `json:"question"`
			Matches  []index.ScoredReview `json:"matches"`
		}{Venue: venue, Question: question, Matches: hits}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	askCmd.Flags().StringVar(&askURL, "url", "", "venue review listing URL (required)")
	askCmd.Flags().IntVar(&askMaxReviews, "max-reviews", 0, "target review count (default from config)")
	askCmd.Flags().IntVar(&askTopN, "top", 0, "number of matching reviews to return (default from config)")
	_ = askCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(askCmd)
}
