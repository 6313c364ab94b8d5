package retrieval

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// candidate is one chunk under consideration for a query, carrying
// every place its content was found.
type candidate struct {
	text     string
	entities []string
	score    float64
	sources  []source
}

// source is one physical occurrence of a candidate's content: a chunk
// in one collection, spanning one or two 0-indexed pages.
type source struct {
	collection string
	pages      []int
	chunkID    int
}

// dedupe merges candidates whose content is near-identical, either
// within one document or across collections. The survivor keeps its
// own text and entities and absorbs the duplicate's provenance; it is
// considered merged once it carries more than one occurrence. Running
// dedupe on an already-deduplicated set changes nothing.
func dedupe(candidates []candidate, threshold float64) []candidate {
	dice := metrics.NewSorensenDice()

	var (
		unique []candidate
		norms  []string
		exact  = make(map[string]int)
	)
	for _, cand := range candidates {
		norm := normalizeText(cand.text)

		// Exact fingerprint match short-circuits the similarity scan.
		if at, ok := exact[norm]; ok {
			unique[at].sources = append(unique[at].sources, cand.sources...)
			continue
		}

		merged := false
		for i, existing := range norms {
			if strutil.Similarity(norm, existing, dice) >= threshold {
				unique[i].sources = append(unique[i].sources, cand.sources...)
				merged = true
				break
			}
		}
		if merged {
			continue
		}

		exact[norm] = len(unique)
		norms = append(norms, norm)
		unique = append(unique, cand)
	}
	return unique
}

// normalizeText collapses case and whitespace so formatting noise does
// not defeat duplicate detection.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
