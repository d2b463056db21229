// Package normalize cleans raw review text before it is costed against the
// extraction oracle: control characters and pictographs are stripped, smart
// quotes straightened, whitespace collapsed, exact duplicates removed, and
// the retained reviews are assigned dense, stable corpus indices.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/sells-group/review-insights/internal/model"
)

// maxReviewLen caps a single review's length; longer reviews are truncated
// with an ellipsis to protect the oracle's input budget.
const maxReviewLen = 1000

// pictographs covers the common emoji blocks that leak JSON-breaking bytes
// into prompts.
var pictographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1}, // misc symbols, dingbats
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E6, Hi: 0x1F1FF, Stride: 1}, // regional indicators (flags)
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1}, // symbols & pictographs
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1}, // emoticons
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1}, // transport & map
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1}, // supplemental symbols
	},
}

// cleaner straightens smart quotes, maps line breaks and tabs to spaces,
// then removes remaining control/format runes and pictographs.
var cleaner = transform.Chain(
	runes.Map(func(r rune) rune {
		switch r {
		case '“', '”':
			return '"'
		case '‘', '’':
			return '\''
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}),
	runes.Remove(runes.In(unicode.C)),
	runes.Remove(runes.In(pictographs)),
)

// CleanText normalizes a single review's text. Returns "" for reviews that
// are empty after cleaning; absent data is valid, not an error.
func CleanText(text string) string {
	cleaned, _, err := transform.String(cleaner, text)
	if err != nil {
		// The chain never fails on valid UTF-8; fall back to the raw text
		// rather than dropping the review.
		cleaned = text
	}

	// Collapse whitespace runs and trim.
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if r := []rune(cleaned); len(r) > maxReviewLen {
		cleaned = string(r[:maxReviewLen-3]) + "..."
	}

	return cleaned
}

// Normalize cleans raw reviews, drops the ones that normalize to empty
// text, removes exact duplicates (case-sensitive, post-clean) keeping the
// first occurrence, and assigns dense zero-based indices to the retained
// set. Normalizing an already-normalized sequence yields the same sequence.
func Normalize(raw []model.RawReview) []model.NormalizedReview {
	out := make([]model.NormalizedReview, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		text := CleanText(r.Text)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, model.NormalizedReview{
			Index:  len(out),
			Text:   text,
			Rating: r.Rating,
		})
	}

	return out
}
