package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/review-insights/internal/model"
	"github.com/sells-group/review-insights/internal/resilience"
	"github.com/sells-group/review-insights/pkg/oracle"
)

// Outcome classifies one batch extraction.
type Outcome string

const (
	// OutcomeSuccess: the payload parsed and every entity validated.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial: the payload parsed but some entities were discarded
	// during validation; the surviving entities are still merged.
	OutcomePartial Outcome = "partial"
	// OutcomeFailure: no usable payload; the batch is lost.
	OutcomeFailure Outcome = "failure"
)

// BatchResult is the outcome of extracting one batch.
type BatchResult struct {
	Batch     int
	Outcome   Outcome
	Entities  []model.ExtractedEntity
	Discarded int
	Reason    string
	Usage     oracle.TokenUsage
}

// genericNames are entities with no real referent; accepting them would
// give the merge step meaningless mass.
var genericNames = map[string]struct{}{
	"food": {}, "meal": {}, "dish": {}, "service": {},
	"it": {}, "good": {}, "bad": {},
}

// ExtractorConfig parameterizes the oracle calls.
type ExtractorConfig struct {
	Model             string
	Temperature       float64
	MaxTokens         int64
	MaxAttempts       int
	AttemptTimeout    time.Duration
	InitialBackoff    time.Duration
	RateLimitCooldown time.Duration
}

// Extractor runs review batches through the extraction oracle and validates
// the structured responses. One Extractor is safe for concurrent batches.
type Extractor struct {
	client oracle.Client
	venue  string
	cfg    ExtractorConfig
}

// NewExtractor creates an extractor for one venue's run.
func NewExtractor(client oracle.Client, venue string, cfg ExtractorConfig) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 120 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Extractor{client: client, venue: venue, cfg: cfg}
}

// ExtractBatch sends one batch to the oracle and returns its validated
// entities. The returned result is never nil; a dead batch comes back as
// OutcomeFailure with the reason recorded.
func (e *Extractor) ExtractBatch(ctx context.Context, batch model.Batch) *BatchResult {
	log := zap.L().With(zap.Int("batch", batch.Number))
	res := &BatchResult{Batch: batch.Number}

	resp, err := e.complete(ctx, buildPrompt(e.venue, batch))
	if err != nil {
		res.Outcome = OutcomeFailure
		res.Reason = eris.ToString(err, false)
		log.Warn("batch extraction failed", zap.Error(err))
		return res
	}
	res.Usage.Add(resp.Usage)

	payload, perr := parsePayload(resp.Text)
	if perr != nil {
		// Malformed output is not a transport fault: one re-ask with a
		// stricter formatting instruction, then the batch is lost.
		log.Warn("unparseable oracle response, re-asking", zap.Error(perr))
		resp, err = e.complete(ctx, buildPrompt(e.venue, batch)+strictReformatSuffix)
		if err != nil {
			res.Outcome = OutcomeFailure
			res.Reason = eris.ToString(err, false)
			return res
		}
		res.Usage.Add(resp.Usage)
		if payload, perr = parsePayload(resp.Text); perr != nil {
			res.Outcome = OutcomeFailure
			res.Reason = fmt.Sprintf("unparseable response after reformat retry: %v", perr)
			log.Warn("batch lost to malformed output", zap.Error(perr))
			return res
		}
	}

	res.Entities, res.Discarded = validatePayload(payload, batch)
	if res.Discarded > 0 {
		res.Outcome = OutcomePartial
		res.Reason = fmt.Sprintf("%d invalid entities discarded", res.Discarded)
	} else {
		res.Outcome = OutcomeSuccess
	}

	log.Debug("batch extracted",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("entities", len(res.Entities)),
		zap.Int("discarded", res.Discarded),
	)
	return res
}

// complete calls the oracle with the run's retry policy: rate limits wait
// out a fixed cooldown, other transient faults back off exponentially.
func (e *Extractor) complete(ctx context.Context, prompt string) (*oracle.Response, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts:       e.cfg.MaxAttempts,
		InitialBackoff:    e.cfg.InitialBackoff,
		MaxBackoff:        30 * time.Second,
		Multiplier:        2.0,
		JitterFraction:    0.25,
		RateLimitCooldown: e.cfg.RateLimitCooldown,
		OnRetry:           resilience.RetryLogger("oracle", "extract"),
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*oracle.Response, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()

		return e.client.Complete(attemptCtx, oracle.Request{
			Model:       e.cfg.Model,
			MaxTokens:   e.cfg.MaxTokens,
			Temperature: e.cfg.Temperature,
			Prompt:      prompt,
		})
	})
}

// rawEntity mirrors the oracle's per-entity JSON shape. Numbers are decoded
// as json.Number so a float where an int was expected does not kill the
// whole payload.
type rawEntity struct {
	Name           string        `json:"name"`
	Sentiment      json.Number   `json:"sentiment"`
	Category       string        `json:"category"`
	Description    string        `json:"description"`
	RelatedReviews []json.Number `json:"related_reviews"`
}

type rawPayload struct {
	FoodItems []rawEntity `json:"food_items"`
	Drinks    []rawEntity `json:"drinks"`
	Aspects   []rawEntity `json:"aspects"`
}

// parsePayload leniently decodes the oracle's response: markdown fences and
// prose around the JSON object are stripped before unmarshaling.
func parsePayload(text string) (*rawPayload, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("no JSON object in response")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var p rawPayload
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrap(err, "decode payload")
	}
	return &p, nil
}

// cleanJSON strips markdown code fences and any prose surrounding the
// outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

// validatePayload converts the raw payload into validated entities,
// returning the survivors and the count of entities discarded as noise or
// malformed. Review indices come back batch-relative and are translated to
// corpus indices here.
func validatePayload(p *rawPayload, batch model.Batch) ([]model.ExtractedEntity, int) {
	var out []model.ExtractedEntity
	discarded := 0

	accept := func(raw rawEntity, kind model.EntityKind) {
		ent, ok := validateEntity(raw, kind, batch)
		if !ok {
			discarded++
			return
		}
		out = append(out, ent)
	}

	for _, r := range p.FoodItems {
		accept(r, model.KindMenuItem)
	}
	for _, r := range p.Drinks {
		accept(r, model.KindDrink)
	}
	for _, r := range p.Aspects {
		accept(r, model.KindAspect)
	}
	return out, discarded
}

func validateEntity(raw rawEntity, kind model.EntityKind, batch model.Batch) (model.ExtractedEntity, bool) {
	name := strings.ToLower(strings.TrimSpace(raw.Name))
	if name == "" {
		return model.ExtractedEntity{}, false
	}
	if _, generic := genericNames[name]; generic {
		return model.ExtractedEntity{}, false
	}

	sentiment, err := raw.Sentiment.Float64()
	if err != nil {
		return model.ExtractedEntity{}, false
	}
	switch {
	case sentiment < -2.0 || sentiment > 2.0:
		// Wildly out of range: the oracle misread the scale entirely.
		return model.ExtractedEntity{}, false
	case sentiment < -1.0:
		sentiment = -1.0
	case sentiment > 1.0:
		sentiment = 1.0
	}

	// Batch-relative indices become corpus indices; out-of-range and
	// duplicate references are dropped, not fatal.
	seen := make(map[int]struct{}, len(raw.RelatedReviews))
	sources := make([]int, 0, len(raw.RelatedReviews))
	for _, n := range raw.RelatedReviews {
		rel, err := n.Int64()
		if err != nil {
			if f, ferr := n.Float64(); ferr == nil && f == float64(int64(f)) {
				rel = int64(f)
			} else {
				continue
			}
		}
		if rel < 0 || rel >= int64(len(batch.Reviews)) {
			continue
		}
		idx := batch.Start + int(rel)
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		sources = append(sources, idx)
	}

	return model.ExtractedEntity{
		Name:          name,
		Kind:          kind,
		Sentiment:     sentiment,
		Category:      strings.ToLower(strings.TrimSpace(raw.Category)),
		SourceReviews: sources,
	}, true
}

const strictReformatSuffix = `

IMPORTANT: Your previous response could not be parsed. Respond with ONLY the JSON object described above. No markdown fences, no commentary, no text before or after the JSON.`

// buildPrompt renders the unified extraction prompt for one batch. Reviews
// are numbered batch-relative; validatePayload translates the indices back.
func buildPrompt(venue string, batch model.Batch) string {
	if venue == "" {
		venue = "the venue"
	}

	var b strings.Builder
	for i, r := range batch.Reviews {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Review %d]: %s", i, r.Text)
	}

	return fmt.Sprintf(`You are analyzing customer reviews for %s. Extract BOTH menu items AND aspects in ONE PASS.

REVIEWS:
%s

YOUR TASK - Extract THREE things simultaneously:
1. **MENU ITEMS** (food & drinks mentioned)
2. **ASPECTS** (what customers care about: service, ambience, etc.)
3. **SENTIMENT** for each

SENTIMENT SCALE (IMPORTANT):
- **Positive (0.6 to 1.0):** Customer clearly enjoyed/praised this item or aspect
- **Neutral (0.0 to 0.59):** Mixed feelings, okay but not exceptional, or simply mentioned without strong opinion
- **Negative (-1.0 to -0.01):** Customer complained, criticized, or expressed disappointment

Examples:
- "The pasta was absolutely divine!" -> 0.85 (Positive)
- "The pasta was decent, nothing special" -> 0.3 (Neutral)
- "The pasta was undercooked and bland" -> -0.6 (Negative)

RULES:

**MENU ITEMS:**
- Specific items only: "salmon sushi", "miso soup", "sake"
- Separate food from drinks
- Lowercase names
- Calculate sentiment per item using the scale above

**ASPECTS:**
- What customers discuss: "service speed", "food quality", "ambience", "value"
- Be specific: "service speed" not just "service"
- Cuisine-specific welcome: "freshness", "authenticity", "presentation"
- Lowercase names
- Calculate sentiment per aspect using the scale above

**REVIEW LINKING:**
- For EACH item/aspect, list which review NUMBERS mention it
- Use ONLY the review index numbers: 0, 1, 2, etc.
- DO NOT include review text in your response

OUTPUT (JSON):
{
  "food_items": [
    {"name": "salmon aburi sushi", "sentiment": 0.85, "category": "sushi", "related_reviews": [0, 5]}
  ],
  "drinks": [
    {"name": "sake", "sentiment": 0.7, "category": "alcohol", "related_reviews": [3]}
  ],
  "aspects": [
    {"name": "service speed", "sentiment": 0.65, "description": "How quickly food arrives", "related_reviews": [1, 2, 7]}
  ]
}

CRITICAL:
- related_reviews must be an array of NUMBERS ONLY: [0, 1, 5]
- DO NOT include review text or quotes
- Output ONLY valid JSON, no other text
- Use the sentiment scale: >= 0.6 positive, 0-0.59 neutral, < 0 negative

Extract everything:`, venue, b.String())
}
