package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/review-insights/internal/resilience"
)

// ListingSource fetches review pages from the scraping gateway's JSON
// listing endpoint. The gateway owns the browser-automation mechanics; this
// client only speaks its paging contract.
type ListingSource struct {
	baseURL string
	http    *http.Client
}

// ListingOption configures a ListingSource.
type ListingOption func(*ListingSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ListingOption {
	return func(s *ListingSource) {
		s.http = hc
	}
}

// NewListingSource creates a listing client for the given gateway base URL.
func NewListingSource(baseURL string, timeout time.Duration, opts ...ListingOption) *ListingSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &ListingSource{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPage retrieves one page of reviews. Timeouts, 5xx, and 429 are
// wrapped as transient/rate-limit errors so the caller's retry policy can
// classify them; 4xx responses are permanent.
func (s *ListingSource) FetchPage(ctx context.Context, locator string, page int) (*Page, error) {
	reqURL := fmt.Sprintf("%s/reviews?locator=%s&page=%d", s.baseURL, url.QueryEscape(locator), page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "listing: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "review-insights/1.0")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "listing: fetch page"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "listing: read body"), resp.StatusCode)
	}

	// Review text can legally mention the block markers, so a 200 response
	// is never treated as blocked.
	if resp.StatusCode != http.StatusOK {
		if kind, blocked := DetectBlock(resp, body); blocked {
			return nil, resilience.NewTransientError(
				eris.Errorf("listing: blocked by %s protection", kind), resp.StatusCode)
		}
	}

	switch {
	case resilience.IsRateLimitHTTPStatus(resp.StatusCode):
		return nil, resilience.NewRateLimitError(eris.Errorf("listing: status %d", resp.StatusCode))
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("listing: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("listing: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, eris.Wrap(err, "listing: unmarshal page")
	}

	return &p, nil
}
