// Package pipeline turns a normalized review corpus into merged venue
// insights: it splits the corpus into batches, runs each batch through the
// extraction oracle concurrently, and merges the per-batch entities into
// one deduplicated, sentiment-weighted result.
package pipeline

import (
	"github.com/sells-group/review-insights/internal/model"
)

// Split partitions reviews into consecutive batches of batchSize; the last
// batch holds the remainder. Batches reference the input slice, preserving
// corpus order, so concatenating them reconstructs the input exactly.
// batchSize < 1 falls back to 1.
func Split(reviews []model.NormalizedReview, batchSize int) []model.Batch {
	if len(reviews) == 0 {
		return nil
	}
	if batchSize < 1 {
		batchSize = 1
	}

	batches := make([]model.Batch, 0, (len(reviews)+batchSize-1)/batchSize)
	for start := 0; start < len(reviews); start += batchSize {
		end := start + batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batches = append(batches, model.Batch{
			Number:  len(batches) + 1,
			Start:   start,
			Reviews: reviews[start:end],
		})
	}
	return batches
}
