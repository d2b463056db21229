package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/review-insights/internal/model"
	"github.com/sells-group/review-insights/internal/resilience"
)

// stubSource serves scripted pages and records call counts per page.
type stubSource struct {
	pages map[int]*Page
	errs  map[int]error
	calls map[int]int
}

func newStubSource() *stubSource {
	return &stubSource{
		pages: make(map[int]*Page),
		errs:  make(map[int]error),
		calls: make(map[int]int),
	}
}

func (s *stubSource) FetchPage(_ context.Context, _ string, page int) (*Page, error) {
	s.calls[page]++
	if err, ok := s.errs[page]; ok {
		return nil, err
	}
	if p, ok := s.pages[page]; ok {
		return p, nil
	}
	return &Page{}, nil
}

func reviews(texts ...string) []model.RawReview {
	out := make([]model.RawReview, len(texts))
	for i, t := range texts {
		out[i] = model.RawReview{Text: t}
	}
	return out
}

func fastOptions() Options {
	return Options{PolitenessDelay: time.Millisecond, PageRetries: 2}
}

func TestDetectSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locator string
		want    SourceKind
	}{
		{"https://www.opentable.com/r/blue-hill", SourceOpenTable},
		{"https://www.google.com/maps/place/Blue+Hill", SourceGoogleMaps},
		{"https://maps.app.goo.gl/abc123", SourceGoogleMaps},
		{"https://goo.gl/maps/xyz", SourceGoogleMaps},
		{"https://yelp.com/biz/blue-hill", SourceUnknown},
		{"", SourceUnknown},
		{"   ", SourceUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSource(tt.locator), tt.locator)
	}
}

func TestFetch_PaginatesUntilTarget(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.pages[1] = &Page{Reviews: reviews("a", "b"), HasMore: true}
	src.pages[2] = &Page{Reviews: reviews("c", "d"), HasMore: true}
	src.pages[3] = &Page{Reviews: reviews("e", "f"), HasMore: true}

	f := New(src, fastOptions())
	res, err := f.Fetch(context.Background(), "https://opentable.com/r/x", 5)
	require.NoError(t, err)

	assert.Len(t, res.Reviews, 5) // overshoot trimmed
	assert.True(t, res.ReachedTarget)
	assert.Equal(t, 3, res.PagesFetched)
	assert.Zero(t, res.SkippedPages)
}

func TestFetch_StopsWhenSourceExhausted(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.pages[1] = &Page{Reviews: reviews("a", "b"), HasMore: true}
	src.pages[2] = &Page{Reviews: reviews("c"), HasMore: false}

	f := New(src, fastOptions())
	res, err := f.Fetch(context.Background(), "https://opentable.com/r/x", 100)
	require.NoError(t, err)

	assert.Len(t, res.Reviews, 3)
	assert.False(t, res.ReachedTarget)
	assert.Equal(t, 2, res.PagesFetched)
}

func TestFetch_SkipsFailedPageAndContinues(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.pages[1] = &Page{Reviews: reviews("a"), HasMore: true}
	src.errs[2] = resilience.NewTransientError(assert.AnError, 503)
	src.pages[3] = &Page{Reviews: reviews("b"), HasMore: false}

	f := New(src, fastOptions())
	res, err := f.Fetch(context.Background(), "https://opentable.com/r/x", 10)
	require.NoError(t, err)

	assert.Len(t, res.Reviews, 2)
	assert.Equal(t, 1, res.SkippedPages)
	assert.Equal(t, 2, res.PagesFetched)
	assert.Equal(t, 2, src.calls[2]) // retried before skipping
}

func TestFetch_FirstPageFailureIsFatal(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.errs[1] = resilience.NewTransientError(assert.AnError, 503)

	f := New(src, fastOptions())
	_, err := f.Fetch(context.Background(), "https://opentable.com/r/x", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetch_PermanentPageErrorNotRetried(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.pages[1] = &Page{Reviews: reviews("a"), HasMore: true}
	src.errs[2] = assert.AnError // permanent
	src.pages[3] = &Page{Reviews: reviews("b"), HasMore: false}

	f := New(src, fastOptions())
	res, err := f.Fetch(context.Background(), "https://opentable.com/r/x", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls[2])
	assert.Equal(t, 1, res.SkippedPages)
}

func TestFetch_StopsAfterConsecutiveSkips(t *testing.T) {
	t.Parallel()

	src := newStubSource()
	src.pages[1] = &Page{Reviews: reviews("a"), HasMore: true}
	src.errs[2] = assert.AnError
	src.errs[3] = assert.AnError
	src.errs[4] = assert.AnError
	src.pages[5] = &Page{Reviews: reviews("never reached"), HasMore: false}

	f := New(src, fastOptions())
	res, err := f.Fetch(context.Background(), "https://opentable.com/r/x", 100)
	require.NoError(t, err)

	assert.Len(t, res.Reviews, 1)
	assert.Equal(t, 3, res.SkippedPages)
	assert.Zero(t, src.calls[5])
}

func TestFetch_InvalidLocator(t *testing.T) {
	t.Parallel()

	f := New(newStubSource(), fastOptions())
	_, err := f.Fetch(context.Background(), "https://example.com/not-a-listing", 10)
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestFetch_CancellationKeepsPartialResults(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	src := newStubSource()
	src.pages[1] = &Page{Reviews: reviews("a"), HasMore: true}

	blocking := &blockingSource{inner: src, cancel: cancel, blockAt: 2}
	f := New(blocking, fastOptions())

	res, err := f.Fetch(ctx, "https://opentable.com/r/x", 10)
	require.NoError(t, err)
	assert.Len(t, res.Reviews, 1)
	assert.False(t, res.ReachedTarget)
}

// blockingSource cancels the run when a given page is requested.
type blockingSource struct {
	inner   Source
	cancel  context.CancelFunc
	blockAt int
}

func (b *blockingSource) FetchPage(ctx context.Context, locator string, page int) (*Page, error) {
	if page == b.blockAt {
		b.cancel()
		return nil, ctx.Err()
	}
	return b.inner.FetchPage(ctx, locator, page)
}

func TestListingSource_FetchPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews", r.URL.Path)
		assert.Equal(t, "https://opentable.com/r/x", r.URL.Query().Get("locator"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reviews":[{"text":"great pasta","rating":5}],"has_more":true}`))
	}))
	defer srv.Close()

	src := NewListingSource(srv.URL, time.Second)
	page, err := src.FetchPage(context.Background(), "https://opentable.com/r/x", 1)
	require.NoError(t, err)

	require.Len(t, page.Reviews, 1)
	assert.Equal(t, "great pasta", page.Reviews[0].Text)
	assert.Equal(t, 5.0, page.Reviews[0].Rating)
	assert.True(t, page.HasMore)
}

func TestListingSource_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
		rateLimit bool
	}{
		{"server error", http.StatusBadGateway, true, false},
		{"rate limited", http.StatusTooManyRequests, true, true},
		{"not found", http.StatusNotFound, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			src := NewListingSource(srv.URL, time.Second)
			_, err := src.FetchPage(context.Background(), "https://opentable.com/r/x", 1)
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			assert.Equal(t, tt.rateLimit, resilience.IsRateLimit(err))
		})
	}
}

func TestListingSource_BlockedResponseIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("<html>Checking your browser before accessing</html>"))
	}))
	defer srv.Close()

	src := NewListingSource(srv.URL, time.Second)
	_, err := src.FetchPage(context.Background(), "https://opentable.com/r/x", 1)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "cloudflare")
}

func TestListingSource_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"reviews": not json`))
	}))
	defer srv.Close()

	src := NewListingSource(srv.URL, time.Second)
	_, err := src.FetchPage(context.Background(), "https://opentable.com/r/x", 1)
	assert.Error(t, err)
}
