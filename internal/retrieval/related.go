package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgallion1/docqa/internal/entity"
	"github.com/dgallion1/docqa/internal/index"
)

// RelatedPage is one page judged similar to a target page within the
// same document. Page is 1-indexed for display.
type RelatedPage struct {
	Page            int     `json:"page"`
	Score           float64 `json:"score"`
	HighlightedText string  `json:"highlighted_text"`
}

// RelatedPages finds the topK pages most similar to the given 0-indexed
// page by comparing stored page embeddings. Embeddings are normalized
// at ingestion, so cosine similarity reduces to a dot product.
func (e *Engine) RelatedPages(ctx context.Context, collection string, pageID, topK int) ([]RelatedPage, error) {
	if topK <= 0 {
		topK = 2
	}
	points, err := e.searcher.Scroll(ctx, collection, 64)
	if err != nil {
		return nil, fmt.Errorf("related pages for %s: %w", collection, err)
	}

	var target []float32
	for _, p := range points {
		if p.Payload.Page == pageID {
			target = p.Vector
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("page %d not found in %s", pageID, collection)
	}

	type scored struct {
		pageID int
		score  float64
		text   string
	}
	var others []scored
	for _, p := range points {
		if p.Payload.Page == pageID {
			continue
		}
		others = append(others, scored{
			pageID: p.Payload.Page,
			score:  dot(target, p.Vector),
			text:   p.Payload.Text,
		})
	}
	sort.SliceStable(others, func(i, j int) bool { return others[i].score > others[j].score })
	if len(others) > topK {
		others = others[:topK]
	}

	related := make([]RelatedPage, len(others))
	for i, o := range others {
		entities := pageEntities(points, o.pageID)
		related[i] = RelatedPage{
			Page:            o.pageID + 1,
			Score:           round4(o.score),
			HighlightedText: entity.HighlightAll(o.text, entities),
		}
	}
	return related, nil
}

// pageEntities gathers the entity strings already extracted for a
// page's chunks at ingestion time.
func pageEntities(points []index.ScrollPoint, pageID int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range points {
		if p.Payload.Page != pageID {
			continue
		}
		for _, c := range p.Payload.Chunks {
			for _, e := range c.Entities {
				if _, ok := seen[e]; ok {
					continue
				}
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
