package fetcher

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/review-insights/internal/model"
	"github.com/sells-group/review-insights/internal/resilience"
)

// maxConsecutiveSkips bounds pagination when the source keeps failing
// page after page; without a successful page there is no HasMore signal
// to terminate on.
const maxConsecutiveSkips = 3

// Options configures the pagination engine.
type Options struct {
	// PolitenessDelay is the minimum interval between page fetch attempts.
	PolitenessDelay time.Duration
	// PageRetries is the attempt budget per page (including the first try).
	PageRetries int
}

// Result is the outcome of one acquisition run.
type Result struct {
	Reviews       []model.RawReview
	ReachedTarget bool
	PagesFetched  int
	SkippedPages  int
}

// Fetcher iterates a review listing page by page until a target count is
// reached or the source is exhausted. Individual page failures are retried
// with backoff, then skipped; only a dead first page aborts the run.
type Fetcher struct {
	source  Source
	limiter *rate.Limiter
	opts    Options
}

// New creates a Fetcher over the given listing source.
func New(source Source, opts Options) *Fetcher {
	if opts.PolitenessDelay <= 0 {
		opts.PolitenessDelay = 1500 * time.Millisecond
	}
	if opts.PageRetries <= 0 {
		opts.PageRetries = 3
	}
	return &Fetcher{
		source:  source,
		limiter: rate.NewLimiter(rate.Every(opts.PolitenessDelay), 1),
		opts:    opts,
	}
}

// Fetch retrieves up to targetCount reviews for the locator. The returned
// Result is valid even when the source ran out of pages early; callers
// decide whether to proceed on ReachedTarget == false.
func (f *Fetcher) Fetch(ctx context.Context, locator string, targetCount int) (*Result, error) {
	if DetectSource(locator) == SourceUnknown {
		return nil, eris.Wrapf(ErrInvalidSource, "locator %q", locator)
	}
	if targetCount <= 0 {
		return nil, eris.Errorf("fetcher: target count must be positive, got %d", targetCount)
	}

	log := zap.L().With(zap.String("locator", locator))

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    f.opts.PageRetries,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}

	res := &Result{}
	consecutiveSkips := 0

	for pageNum := 1; len(res.Reviews) < targetCount; pageNum++ {
		retryCfg.OnRetry = resilience.RetryLogger("listing", "fetch_page")

		page, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Page, error) {
			// Politeness interval applies to every attempt, retries included.
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return f.source.FetchPage(ctx, locator, pageNum)
		})
		if err != nil {
			if ctx.Err() != nil {
				// Cancellation: stop fetching, keep what we have.
				log.Info("fetch cancelled",
					zap.Int("page", pageNum),
					zap.Int("reviews", len(res.Reviews)),
				)
				break
			}
			if pageNum == 1 {
				return nil, eris.Wrapf(ErrSourceUnavailable, "first page failed after %d attempts: %v", f.opts.PageRetries, err)
			}
			// A skipped page is recorded but never aborts the run.
			res.SkippedPages++
			consecutiveSkips++
			log.Warn("skipping page after retries",
				zap.Int("page", pageNum),
				zap.Error(err),
			)
			if consecutiveSkips >= maxConsecutiveSkips {
				log.Warn("stopping pagination: too many consecutive page failures",
					zap.Int("skipped_pages", res.SkippedPages),
				)
				break
			}
			continue
		}
		consecutiveSkips = 0

		res.PagesFetched++
		res.Reviews = append(res.Reviews, page.Reviews...)

		log.Debug("page fetched",
			zap.Int("page", pageNum),
			zap.Int("page_reviews", len(page.Reviews)),
			zap.Int("total_reviews", len(res.Reviews)),
		)

		if !page.HasMore {
			break
		}
	}

	if len(res.Reviews) > targetCount {
		res.Reviews = res.Reviews[:targetCount]
	}
	res.ReachedTarget = len(res.Reviews) >= targetCount

	log.Info("fetch complete",
		zap.Int("reviews", len(res.Reviews)),
		zap.Int("pages_fetched", res.PagesFetched),
		zap.Int("skipped_pages", res.SkippedPages),
		zap.Bool("reached_target", res.ReachedTarget),
	)

	return res, nil
}
