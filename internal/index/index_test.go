package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-insights/internal/model"
)

func corpus(texts ...string) []model.NormalizedReview {
	out := make([]model.NormalizedReview, len(texts))
	for i, t := range texts {
		out[i] = model.NormalizedReview{Index: i, Text: t}
	}
	return out
}

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"drops stop words", "what is the best pasta dish?", []string{"pasta", "dish"}},
		{"lowercases", "Is The TIRAMISU Fresh", []string{"tiramisu", "fresh"}},
		{"strips punctuation", "ramen, gyoza... sake!", []string{"ramen", "gyoza", "sake"}},
		{"drops short tokens", "a b pasta", []string{"pasta"}},
		{"all stop words", "what is it about", []string{}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractKeywords(tt.in))
		})
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "blue hill", Key("  Blue Hill "))
	assert.Equal(t, Key("BLUE HILL"), Key("blue hill"))
}

func TestQuery_NotIndexed(t *testing.T) {
	t.Parallel()

	ix := New()
	_, err := ix.Query("ghost venue", "pasta", 10)
	require.Error(t, err)
	assert.True(t, IsNotIndexed(err))

	var nie *NotIndexedError
	require.ErrorAs(t, err, &nie)
	assert.Equal(t, "ghost venue", nie.Venue)
}

func TestQuery_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Put("Blue Hill", corpus("the lamb was tender", "service was quick"))

	got, err := ix.Query("Blue Hill", "sushi", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestQuery_RanksByKeywordOccurrences(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Put("Blue Hill", corpus(
		"service was slow",
		"pasta pasta pasta, I dream of their pasta",
		"the pasta was fine",
	))

	got, err := ix.Query("Blue Hill", "how is the pasta?", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Review.Index)
	assert.Equal(t, 4, got[0].Score)
	assert.Equal(t, 2, got[1].Review.Index)
	assert.Equal(t, 1, got[1].Score)
}

func TestQuery_PhraseBonus(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Put("Blue Hill", corpus(
		"truffle everywhere, truffle on eggs, truffle fries on the side",
		"the truffle fries were perfect",
	))

	got, err := ix.Query("Blue Hill", "truffle fries", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Review 0: 3x truffle + 1x fries = 4 + phrase bonus 3 = 7.
	// Review 1: 1 + 1 + bonus 3 = 5.
	assert.Equal(t, 0, got[0].Review.Index)
	assert.Equal(t, 7, got[0].Score)
	assert.Equal(t, 5, got[1].Score)
}

func TestQuery_TiesKeepCorpusOrder(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Put("Blue Hill", corpus(
		"great ramen here",
		"ramen worth the wait",
		"decent ramen spot",
	))

	got, err := ix.Query("Blue Hill", "ramen", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, h := range got {
		assert.Equal(t, i, h.Review.Index)
	}
}

func TestQuery_TopNTruncation(t *testing.T) {
	t.Parallel()

	texts := make([]string, 60)
	for i := range texts {
		texts[i] = fmt.Sprintf("pasta review number %d", i)
	}

	ix := New()
	ix.Put("Blue Hill", corpus(texts...))

	got, err := ix.Query("Blue Hill", "pasta", 7)
	require.NoError(t, err)
	assert.Len(t, got, 7)

	// topN <= 0 falls back to the default cap.
	got, err = ix.Query("Blue Hill", "pasta", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultTopN)
}

func TestPut_ReplacesCorpusAndCopies(t *testing.T) {
	t.Parallel()

	ix := New()
	first := corpus("old review about pasta")
	ix.Put("Blue Hill", first)

	// Mutating the caller's slice must not leak into the index.
	first[0].Text = "mutated"
	got, err := ix.Query("Blue Hill", "pasta", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old review about pasta", got[0].Review.Text)

	ix.Put("blue hill", corpus("fresh corpus about ramen"))
	got, err = ix.Query("BLUE HILL", "ramen", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, ix.Size("Blue Hill"))
}

func TestVenuesAndClear(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Put("Zuni Cafe", corpus("a"))
	ix.Put("Blue Hill", corpus("b"))

	assert.Equal(t, []string{"blue hill", "zuni cafe"}, ix.Venues())

	ix.Clear()
	assert.Empty(t, ix.Venues())
	assert.Zero(t, ix.Size("Blue Hill"))
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ix := New()
	ix.Put("Blue Hill", corpus("pasta is great"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			ix.Put("Blue Hill", corpus(fmt.Sprintf("pasta run %d", n)))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = ix.Query("Blue Hill", "pasta", 10)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ix.Size("Blue Hill"))
}
