package model

// EntityKind separates the three extraction namespaces. Entities with the
// same name but different kinds never merge.
type EntityKind string

const (
	KindMenuItem EntityKind = "menu-item"
	KindDrink    EntityKind = "drink"
	KindAspect   EntityKind = "aspect"
)

// Sentiment scale boundaries. Scores are continuous in [-1, 1]; the labels
// follow the scale the extraction prompt instructs the oracle to use.
const (
	SentimentPositiveMin = 0.6
	SentimentNeutralMin  = 0.0
)

// SentimentLabel buckets a continuous sentiment score.
func SentimentLabel(s float64) string {
	switch {
	case s >= SentimentPositiveMin:
		return "positive"
	case s >= SentimentNeutralMin:
		return "neutral"
	default:
		return "negative"
	}
}

// ExtractedEntity is a validated per-batch extraction: name is lower-cased
// and trimmed, sentiment is clamped into [-1, 1], and SourceReviews holds
// corpus-level indices of the reviews citing the entity.
type ExtractedEntity struct {
	Name          string     `json:"name"`
	Kind          EntityKind `json:"kind"`
	Sentiment     float64    `json:"sentiment"`
	Category      string     `json:"category,omitempty"`
	SourceReviews []int      `json:"source_reviews"`
}

// MergedEntity is the corpus-level view of an entity after cross-batch
// merging. MentionCount is the number of distinct source reviews; Sentiment
// is the mention-count-weighted mean of per-batch sentiment values.
type MergedEntity struct {
	Name          string     `json:"name"`
	Kind          EntityKind `json:"kind"`
	Sentiment     float64    `json:"sentiment"`
	Label         string     `json:"sentiment_label"`
	Category      string     `json:"category,omitempty"`
	MentionCount  int        `json:"mention_count"`
	SourceReviews []int      `json:"source_reviews"`
	LowConfidence bool       `json:"low_confidence,omitempty"`
}
