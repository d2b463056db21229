package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-insights/internal/config"
	"github.com/sells-group/review-insights/internal/fetcher"
	"github.com/sells-group/review-insights/internal/index"
	"github.com/sells-group/review-insights/internal/model"
	"github.com/sells-group/review-insights/internal/pipeline"
	"github.com/sells-group/review-insights/pkg/oracle"
)

// venueAnalyzer is the pipeline surface the commands depend on.
type venueAnalyzer interface {
	Analyze(ctx context.Context, venue, locator string, targetReviews int) (*model.RunReport, error)
	Index(ctx context.Context, venue, locator string, targetReviews int) (int, error)
}

// analysisEnv bundles the wired pipeline with the shared venue index so
// commands that analyze and commands that query see the same state.
type analysisEnv struct {
	Pipeline venueAnalyzer
	Index    *index.VenueIndex
}

// initAnalysis wires the listing source, oracle client, index, and pipeline
// from configuration.
func initAnalysis(c *config.Config) (*analysisEnv, error) {
	if c.Oracle.Key == "" {
		return nil, eris.New("oracle.key is required (set REVIEWS_ORACLE_KEY)")
	}
	if c.Source.ListingBaseURL == "" {
		return nil, eris.New("source.listing_base_url is required (set REVIEWS_SOURCE_LISTING_BASE_URL)")
	}

	src := fetcher.NewListingSource(c.Source.ListingBaseURL, c.Source.Timeout())
	f := fetcher.New(src, fetcher.Options{
		PolitenessDelay: c.Source.PolitenessDelay(),
		PageRetries:     c.Source.PageRetries,
	})

	ix := index.New()

	p := pipeline.New(f, oracle.NewClient(c.Oracle.Key), ix, pipeline.Options{
		BatchSize:    c.Pipeline.BatchSize,
		Concurrency:  c.Pipeline.Concurrency,
		MentionFloor: c.Pipeline.MentionFloor,
		MinReviews:   c.Source.MinReviews,
		Extractor: pipeline.ExtractorConfig{
			Model:             c.Oracle.Model,
			Temperature:       c.Oracle.Temperature,
			MaxTokens:         c.Oracle.MaxTokens,
			MaxAttempts:       c.Oracle.MaxAttempts,
			AttemptTimeout:    c.Oracle.AttemptTimeout(),
			RateLimitCooldown: c.Oracle.RateLimitCooldown(),
		},
	})

	return &analysisEnv{Pipeline: p, Index: ix}, nil
}
