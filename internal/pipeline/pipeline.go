package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/review-insights/internal/cost"
	"github.com/sells-group/review-insights/internal/fetcher"
	"github.com/sells-group/review-insights/internal/index"
	"github.com/sells-group/review-insights/internal/model"
	"github.com/sells-group/review-insights/internal/normalize"
	"github.com/sells-group/review-insights/pkg/oracle"
)

// ErrExtractionUnavailable means every batch failed; there is no result to
// report. Partial batch loss is not this error.
var ErrExtractionUnavailable = errors.New("pipeline: extraction unavailable, all batches failed")

// ErrNoReviews means the source yielded nothing analyzable after cleaning.
var ErrNoReviews = errors.New("pipeline: no usable reviews")

// maxConcurrency caps the batch worker pool regardless of configuration so
// concurrent callers stay inside the oracle's aggregate rate limit.
const maxConcurrency = 5

// ReviewFetcher is the acquisition dependency; satisfied by fetcher.Fetcher.
type ReviewFetcher interface {
	Fetch(ctx context.Context, locator string, targetCount int) (*fetcher.Result, error)
}

// Options tunes one analysis run.
type Options struct {
	BatchSize    int
	Concurrency  int
	MentionFloor int
	// MinReviews is the advisory floor below which the run proceeds with a
	// warning in the report.
	MinReviews int
	Extractor  ExtractorConfig
}

// Pipeline orchestrates one venue analysis end to end: acquire, normalize,
// register for Q&A, batch, extract concurrently, merge.
type Pipeline struct {
	fetcher ReviewFetcher
	client  oracle.Client
	index   *index.VenueIndex
	costs   *cost.Calculator
	opts    Options
}

// New assembles a pipeline. The index is registered before extraction
// starts, so Q&A over the corpus works even when extraction degrades.
func New(f ReviewFetcher, client oracle.Client, ix *index.VenueIndex, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 15
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Concurrency > maxConcurrency {
		opts.Concurrency = maxConcurrency
	}
	if opts.MentionFloor <= 0 {
		opts.MentionFloor = DefaultMentionFloor
	}
	if opts.MinReviews <= 0 {
		opts.MinReviews = 10
	}
	return &Pipeline{
		fetcher: f,
		client:  client,
		index:   ix,
		costs:   cost.NewCalculator(cost.DefaultRates()),
		opts:    opts,
	}
}

// Analyze runs the full pipeline for one venue and returns the run report.
// Lost batches degrade the result; only zero successful batches (or no
// source data at all) fail the run.
func (p *Pipeline) Analyze(ctx context.Context, venue, locator string, targetReviews int) (*model.RunReport, error) {
	started := time.Now()
	report := &model.RunReport{
		RunID:     uuid.New(),
		Venue:     venue,
		SourceURL: locator,
	}
	log := zap.L().With(
		zap.String("run_id", report.RunID.String()),
		zap.String("venue", venue),
	)

	log.Info("analysis started", zap.String("locator", locator), zap.Int("target_reviews", targetReviews))

	fetched, err := p.fetcher.Fetch(ctx, locator, targetReviews)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: acquire reviews")
	}
	report.PagesFetched = fetched.PagesFetched
	report.SkippedPages = fetched.SkippedPages
	report.ReachedTarget = fetched.ReachedTarget
	report.RawCount = len(fetched.Reviews)

	normalized := normalize.Normalize(fetched.Reviews)
	report.NormalizedCount = len(normalized)
	if len(normalized) == 0 {
		return nil, eris.Wrapf(ErrNoReviews, "locator %q", locator)
	}
	if len(normalized) < p.opts.MinReviews {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("only %d usable reviews (minimum %d); results may be unreliable",
				len(normalized), p.opts.MinReviews))
	}

	// Register before extraction: the Q&A path must survive a degraded or
	// failed extraction phase.
	p.index.Put(venue, normalized)

	batches := Split(normalized, p.opts.BatchSize)
	report.BatchCount = len(batches)
	log.Info("corpus prepared",
		zap.Int("raw", report.RawCount),
		zap.Int("normalized", report.NormalizedCount),
		zap.Int("batches", len(batches)),
	)

	results, err := p.extractAll(ctx, venue, batches)
	if err != nil {
		return nil, err
	}

	corpus := Merge(results, p.opts.MentionFloor)
	corpus.ReviewsProcessed = len(normalized)
	report.Result = corpus
	if corpus.LostBatches > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d of %d batches lost; results are under-complete", corpus.LostBatches, len(batches)))
	}
	report.DurationMS = time.Since(started).Milliseconds()

	var usage oracle.TokenUsage
	for _, r := range results {
		usage.Add(r.Usage)
	}
	usage.Log(p.opts.Extractor.Model, "extract")
	report.InputTokens = usage.InputTokens
	report.OutputTokens = usage.OutputTokens
	report.EstimatedCostUSD = p.costs.Estimate(p.opts.Extractor.Model, usage)

	log.Info("analysis complete",
		zap.Int("entities", corpus.EntitiesFound),
		zap.Int("lost_batches", corpus.LostBatches),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return report, nil
}

// Index acquires and normalizes a venue's reviews and registers them for
// Q&A without running extraction. Returns the indexed review count.
func (p *Pipeline) Index(ctx context.Context, venue, locator string, targetReviews int) (int, error) {
	fetched, err := p.fetcher.Fetch(ctx, locator, targetReviews)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: acquire reviews")
	}

	normalized := normalize.Normalize(fetched.Reviews)
	if len(normalized) == 0 {
		return 0, eris.Wrapf(ErrNoReviews, "locator %q", locator)
	}

	p.index.Put(venue, normalized)
	zap.L().Info("venue indexed",
		zap.String("venue", venue),
		zap.Int("reviews", len(normalized)),
	)
	return len(normalized), nil
}

// extractAll fans batches out to a bounded worker pool and joins every
// outcome before returning; the merge step never sees partial completion.
func (p *Pipeline) extractAll(ctx context.Context, venue string, batches []model.Batch) ([]*BatchResult, error) {
	ex := NewExtractor(p.client, venue, p.opts.Extractor)
	results := make([]*BatchResult, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			results[i] = ex.ExtractBatch(gctx, batch)
			return nil
		})
	}
	// Workers never return errors; failures are carried in the results.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		// Cancelled mid-run: completed batches stay merge-eligible, the
		// rest surface as failures in the merge accounting.
		zap.L().Info("extraction cancelled", zap.Error(err))
	}

	succeeded := 0
	for _, r := range results {
		if r != nil && r.Outcome != OutcomeFailure {
			succeeded++
		}
	}
	if succeeded == 0 && len(batches) > 0 {
		return nil, eris.Wrapf(ErrExtractionUnavailable, "%d batches attempted", len(batches))
	}
	return results, nil
}
