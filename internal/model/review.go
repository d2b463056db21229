// Package model defines the data types that flow through the analysis
// pipeline: raw and normalized reviews, extraction batches, entities, and
// the corpus-level result exposed to downstream consumers.
package model

// RawReview is a single review record as returned by a listing source.
// Immutable once produced by the fetcher.
type RawReview struct {
	Text     string  `json:"text"`
	Rating   float64 `json:"rating,omitempty"` // 1-5 stars, 0 when absent
	Date     string  `json:"date,omitempty"`
	Reviewer string  `json:"reviewer,omitempty"`
}

// NormalizedReview is a cleaned, deduplicated review with its stable corpus
// index. Indices are dense, zero-based, and assigned over the retained set
// after empty-drop and exact-duplicate removal.
type NormalizedReview struct {
	Index  int     `json:"index"`
	Text   string  `json:"text"`
	Rating float64 `json:"rating,omitempty"`
}

// Batch is an ordered, non-overlapping slice of normalized reviews sent to
// the oracle in one call. Start is the corpus index of the first review;
// prompts number reviews relative to the batch and the extraction stage adds
// Start back when mapping cited indices to corpus indices.
type Batch struct {
	Number  int
	Start   int
	Reviews []NormalizedReview
}
