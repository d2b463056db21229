package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-insights/internal/model"
)

func normalized(n int) []model.NormalizedReview {
	out := make([]model.NormalizedReview, n)
	for i := range out {
		out[i] = model.NormalizedReview{Index: i, Text: fmt.Sprintf("review %d", i)}
	}
	return out
}

func TestSplit_Sizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		total     int
		batchSize int
		wantSizes []int
	}{
		{"exact multiple", 30, 15, []int{15, 15}},
		{"remainder", 32, 15, []int{15, 15, 2}},
		{"single short batch", 7, 15, []int{7}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
		{"size below one clamps", 3, 0, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			batches := Split(normalized(tt.total), tt.batchSize)
			require.Len(t, batches, len(tt.wantSizes))
			for i, b := range batches {
				assert.Len(t, b.Reviews, tt.wantSizes[i])
				assert.Equal(t, i+1, b.Number)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Split(nil, 15))
	assert.Nil(t, Split([]model.NormalizedReview{}, 15))
}

func TestSplit_ConcatenationReconstructsCorpus(t *testing.T) {
	t.Parallel()

	corpus := normalized(32)
	batches := Split(corpus, 15)

	var rebuilt []model.NormalizedReview
	for _, b := range batches {
		assert.Equal(t, b.Start, len(rebuilt))
		rebuilt = append(rebuilt, b.Reviews...)
	}
	assert.Equal(t, corpus, rebuilt)
}

func TestSplit_StartMatchesFirstReviewIndex(t *testing.T) {
	t.Parallel()

	batches := Split(normalized(40), 12)
	for _, b := range batches {
		require.NotEmpty(t, b.Reviews)
		assert.Equal(t, b.Start, b.Reviews[0].Index)
	}
}
