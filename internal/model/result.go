package model

import "github.com/google/uuid"

// BatchFailure records a batch that was permanently lost after retries.
type BatchFailure struct {
	Batch  int    `json:"batch"`
	Reason string `json:"reason"`
}

// CorpusResult is the merged, corpus-level extraction result. A result with
// LostBatches > 0 is usable but under-complete; callers must not treat it as
// exhaustive.
type CorpusResult struct {
	MenuItems []MergedEntity `json:"menu_items"`
	Drinks    []MergedEntity `json:"drinks"`
	Aspects   []MergedEntity `json:"aspects"`

	ReviewsProcessed int            `json:"reviews_processed"`
	EntitiesFound    int            `json:"entities_found"`
	LostBatches      int            `json:"lost_batches"`
	BatchFailures    []BatchFailure `json:"batch_failures,omitempty"`
}

// RunReport is the single structured value exposed to downstream consumers
// (report builders, chart generators, chat connectors) after one analysis run.
type RunReport struct {
	RunID     uuid.UUID `json:"run_id"`
	Venue     string    `json:"venue"`
	SourceURL string    `json:"source_url"`

	PagesFetched  int  `json:"pages_fetched"`
	SkippedPages  int  `json:"skipped_pages,omitempty"`
	ReachedTarget bool `json:"reached_target"`

	RawCount        int `json:"raw_count"`
	NormalizedCount int `json:"normalized_count"`
	BatchCount      int `json:"batch_count"`

	Result *CorpusResult `json:"result"`

	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`

	DurationMS int64    `json:"duration_ms"`
	Warnings   []string `json:"warnings,omitempty"`
}
