// Package index holds per-venue review corpora in memory and answers
// keyword queries against them. It exists so venue Q&A keeps working even
// when entity extraction degrades: registration happens before any oracle
// call, and queries never touch the network.
package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sells-group/review-insights/internal/model"
)

// DefaultTopN bounds how many reviews a query returns when the caller does
// not ask for a specific limit.
const DefaultTopN = 50

// NotIndexedError reports a query against a venue that was never
// registered. Distinct from a registered venue with no matching reviews,
// which is an empty (non-error) result.
type NotIndexedError struct {
	Venue string
}

func (e *NotIndexedError) Error() string {
	return fmt.Sprintf("index: venue %q is not indexed", e.Venue)
}

// IsNotIndexed reports whether err is a NotIndexedError.
func IsNotIndexed(err error) bool {
	var nie *NotIndexedError
	return errors.As(err, &nie)
}

// stopWords are ignored during keyword extraction; they carry no signal
// about dishes or venue aspects.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"do": {}, "does": {}, "did": {}, "what": {}, "which": {}, "who": {},
	"how": {}, "when": {}, "where": {}, "why": {}, "i": {}, "you": {},
	"they": {}, "it": {}, "this": {}, "that": {}, "there": {}, "about": {},
	"any": {}, "have": {}, "has": {}, "had": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "with": {}, "and": {},
	"or": {}, "good": {}, "best": {}, "like": {}, "your": {}, "their": {},
	"them": {}, "can": {}, "tell": {}, "me": {}, "us": {}, "please": {},
}

// phraseBonus rewards reviews containing the whole query as a phrase over
// reviews that merely hit individual keywords.
const phraseBonus = 3

// ScoredReview is one query hit with its relevance score.
type ScoredReview struct {
	Review model.NormalizedReview `json:"review"`
	Score  int                    `json:"score"`
}

// VenueIndex maps venue keys to their normalized review corpora. Safe for
// concurrent use; registration replaces a venue's corpus atomically.
type VenueIndex struct {
	mu     sync.RWMutex
	venues map[string][]model.NormalizedReview
}

// New creates an empty VenueIndex.
func New() *VenueIndex {
	return &VenueIndex{venues: make(map[string][]model.NormalizedReview)}
}

// Key canonicalizes a venue name for lookup: trimmed and lowercased.
func Key(venue string) string {
	return strings.ToLower(strings.TrimSpace(venue))
}

// Put registers (or replaces) a venue's review corpus. The reviews slice is
// copied so the index never aliases caller memory.
func (ix *VenueIndex) Put(venue string, reviews []model.NormalizedReview) {
	cp := make([]model.NormalizedReview, len(reviews))
	copy(cp, reviews)

	ix.mu.Lock()
	ix.venues[Key(venue)] = cp
	ix.mu.Unlock()
}

// Query scores the venue's reviews against the question's keywords and
// returns the top matches, best first. topN <= 0 falls back to DefaultTopN.
// A registered venue with no hits yields an empty, non-nil slice.
func (ix *VenueIndex) Query(venue, question string, topN int) ([]ScoredReview, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	ix.mu.RLock()
	reviews, ok := ix.venues[Key(venue)]
	ix.mu.RUnlock()
	if !ok {
		return nil, &NotIndexedError{Venue: venue}
	}

	keywords := ExtractKeywords(question)
	phrase := strings.ToLower(strings.TrimSpace(question))

	hits := make([]ScoredReview, 0, len(reviews))
	for _, r := range reviews {
		text := strings.ToLower(r.Text)

		score := 0
		for _, kw := range keywords {
			score += strings.Count(text, kw)
		}
		if phrase != "" && strings.Contains(text, phrase) {
			score += phraseBonus
		}
		if score > 0 {
			hits = append(hits, ScoredReview{Review: r, Score: score})
		}
	}

	// Stable: ties keep corpus order, so results are deterministic.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// Venues lists the registered venue keys in sorted order.
func (ix *VenueIndex) Venues() []string {
	ix.mu.RLock()
	keys := make([]string, 0, len(ix.venues))
	for k := range ix.venues {
		keys = append(keys, k)
	}
	ix.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Size reports how many reviews a venue has indexed, zero when absent.
func (ix *VenueIndex) Size(venue string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.venues[Key(venue)])
}

// Clear drops all registered venues.
func (ix *VenueIndex) Clear() {
	ix.mu.Lock()
	ix.venues = make(map[string][]model.NormalizedReview)
	ix.mu.Unlock()
}

// ExtractKeywords tokenizes a question into lowercase keywords, dropping
// stop words and tokens shorter than two runes.
func ExtractKeywords(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
