package pipeline

import (
	"sort"

	"github.com/sells-group/review-insights/internal/model"
)

// DefaultMentionFloor marks entities below this many distinct citing
// reviews as low-confidence. They are kept, not dropped: rare complaints
// are still real complaints.
const DefaultMentionFloor = 2

// Merge folds per-batch extraction results into one CorpusResult. Entities
// group by normalized name within their kind; names never merge across
// kinds. Deterministic regardless of batch completion order.
func Merge(results []*BatchResult, mentionFloor int) *model.CorpusResult {
	if mentionFloor <= 0 {
		mentionFloor = DefaultMentionFloor
	}

	type group struct {
		kind        model.EntityKind
		name        string
		category    string
		sources     map[int]struct{}
		weightedSum float64
		weightTotal float64
	}

	groups := make(map[model.EntityKind]map[string]*group)
	out := &model.CorpusResult{}

	for _, br := range results {
		if br == nil || br.Outcome == OutcomeFailure {
			continue
		}
		for _, ent := range br.Entities {
			byName := groups[ent.Kind]
			if byName == nil {
				byName = make(map[string]*group)
				groups[ent.Kind] = byName
			}
			g := byName[ent.Name]
			if g == nil {
				g = &group{kind: ent.Kind, name: ent.Name, sources: make(map[int]struct{})}
				byName[ent.Name] = g
			}

			for _, idx := range ent.SourceReviews {
				g.sources[idx] = struct{}{}
			}
			// Weight each contribution by its citation count so a batch
			// with more supporting reviews pulls the mean harder. An
			// uncited entity still evidences one mention.
			w := float64(len(ent.SourceReviews))
			if w == 0 {
				w = 1
			}
			g.weightedSum += ent.Sentiment * w
			g.weightTotal += w
			if g.category == "" {
				g.category = ent.Category
			}
		}
	}

	finish := func(kind model.EntityKind) []model.MergedEntity {
		byName := groups[kind]
		merged := make([]model.MergedEntity, 0, len(byName))
		for _, g := range byName {
			sources := make([]int, 0, len(g.sources))
			for idx := range g.sources {
				sources = append(sources, idx)
			}
			sort.Ints(sources)

			mentions := len(sources)
			if mentions == 0 {
				mentions = 1
			}

			sentiment := g.weightedSum / g.weightTotal

			merged = append(merged, model.MergedEntity{
				Name:          g.name,
				Kind:          kind,
				Category:      g.category,
				Sentiment:     sentiment,
				Label:         model.SentimentLabel(sentiment),
				MentionCount:  mentions,
				SourceReviews: sources,
				LowConfidence: mentions < mentionFloor,
			})
		}

		sort.Slice(merged, func(i, j int) bool {
			if merged[i].MentionCount != merged[j].MentionCount {
				return merged[i].MentionCount > merged[j].MentionCount
			}
			return merged[i].Name < merged[j].Name
		})
		return merged
	}

	out.MenuItems = finish(model.KindMenuItem)
	out.Drinks = finish(model.KindDrink)
	out.Aspects = finish(model.KindAspect)
	out.EntitiesFound = len(out.MenuItems) + len(out.Drinks) + len(out.Aspects)

	for _, br := range results {
		if br == nil {
			continue
		}
		if br.Outcome == OutcomeFailure {
			out.LostBatches++
			out.BatchFailures = append(out.BatchFailures, model.BatchFailure{
				Batch:  br.Batch,
				Reason: br.Reason,
			})
		}
	}
	sort.Slice(out.BatchFailures, func(i, j int) bool {
		return out.BatchFailures[i].Batch < out.BatchFailures[j].Batch
	})

	return out
}
