// Package fetcher acquires raw reviews from a remote listing in pages,
// tolerating transient per-page failures and enforcing a politeness interval
// between fetches.
package fetcher

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/review-insights/internal/model"
)

// Sentinel errors for the acquisition phase. Everything transient is
// absorbed by the per-page retry policy and never surfaces past Fetch.
var (
	// ErrInvalidSource means the locator does not resolve to a supported
	// listing. Fatal, never retried.
	ErrInvalidSource = errors.New("fetcher: unsupported or malformed source locator")
	// ErrSourceUnavailable means the very first page could not be fetched
	// after all retries; there is nothing to analyze.
	ErrSourceUnavailable = errors.New("fetcher: source unavailable")
)

// SourceKind identifies the listing platform behind a locator.
type SourceKind string

const (
	SourceOpenTable  SourceKind = "opentable"
	SourceGoogleMaps SourceKind = "google_maps"
	SourceUnknown    SourceKind = "unknown"
)

// DetectSource routes a locator to the listing platform that serves it.
func DetectSource(locator string) SourceKind {
	l := strings.ToLower(strings.TrimSpace(locator))
	if l == "" {
		return SourceUnknown
	}

	if strings.Contains(l, "opentable") {
		return SourceOpenTable
	}

	for _, host := range []string{"google.com/maps", "goo.gl/maps", "maps.google", "maps.app.goo.gl"} {
		if strings.Contains(l, host) {
			return SourceGoogleMaps
		}
	}

	return SourceUnknown
}

// Page is one page of raw reviews from a listing.
type Page struct {
	Reviews []model.RawReview `json:"reviews"`
	HasMore bool              `json:"has_more"`
}

// Source fetches one page of a review listing. Implementations signal
// transient failures with resilience.TransientError (or rate-limit
// variants) so the fetcher's per-page retry policy applies.
type Source interface {
	FetchPage(ctx context.Context, locator string, page int) (*Page, error)
}
