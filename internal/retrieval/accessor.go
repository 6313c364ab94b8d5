package retrieval

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/document"
)

// Accessor presents one query's ranked results as a read-only view
// addressed by rank, so answer assembly does not depend on the
// engine's internal record shape. It never mutates or re-ranks.
type Accessor struct {
	results []document.SearchResult
}

func NewAccessor(results []document.SearchResult) *Accessor {
	return &Accessor{results: results}
}

// Get returns the record at a 1-indexed rank; ok is false when no
// record holds that rank.
func (a *Accessor) Get(rank int) (document.SearchResult, bool) {
	for _, r := range a.results {
		if r.Rank == rank {
			return r, true
		}
	}
	return document.SearchResult{}, false
}

// GetField returns one named field of the record at a rank. Field
// names mirror the serialized record keys.
func (a *Accessor) GetField(rank int, field string) (any, bool) {
	r, ok := a.Get(rank)
	if !ok {
		return nil, false
	}
	switch field {
	case "rank":
		return r.Rank, true
	case "score":
		return r.Score, true
	case "text":
		return r.Text, true
	case "highlighted_text":
		return r.HighlightedText, true
	case "entities":
		return r.Entities, true
	case "pages":
		return r.Pages, true
	case "is_merged":
		return r.IsMerged, true
	default:
		return nil, false
	}
}

// All returns the full ordered result list.
func (a *Accessor) All() []document.SearchResult {
	return a.results
}

// IsEmpty reports whether there is nothing usable: no records at all,
// or only the no-result sentinel.
func (a *Accessor) IsEmpty() bool {
	if len(a.results) == 0 {
		return true
	}
	return len(a.results) == 1 && a.results[0].NoResult
}

// FilterByScore returns the records at or above a minimum score,
// preserving rank order.
func (a *Accessor) FilterByScore(minScore float64) []document.SearchResult {
	var out []document.SearchResult
	for _, r := range a.results {
		if r.NoResult {
			continue
		}
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

// FilterByEntity returns the records whose entities contain the
// keyword, case-insensitively.
func (a *Accessor) FilterByEntity(keyword string) []document.SearchResult {
	keyword = strings.ToLower(keyword)
	var out []document.SearchResult
	for _, r := range a.results {
		for _, e := range r.Entities {
			if strings.Contains(strings.ToLower(e), keyword) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// ToMarkdown renders the results as a markdown report with provenance
// and merged-source annotations.
func (a *Accessor) ToMarkdown() string {
	var b strings.Builder
	b.WriteString("# Search results\n")

	if a.IsEmpty() {
		b.WriteString("\nNo relevant passages found.\n")
		return b.String()
	}

	for _, r := range a.results {
		fmt.Fprintf(&b, "\n## Result %d (score: %.4f)\n", r.Rank, r.Score)

		if r.IsMerged {
			fmt.Fprintf(&b, "**Merged from %d sources:**\n", len(r.Pages))
			for _, p := range r.Pages {
				fmt.Fprintf(&b, "- %s, page %d\n", p.Collection, p.Page)
			}
		} else if len(r.Pages) > 0 {
			fmt.Fprintf(&b, "**Source:** %s, page %d\n", r.Pages[0].Collection, r.Pages[0].Page)
		}

		if len(r.Entities) > 0 {
			fmt.Fprintf(&b, "\n**Entities:** %s\n", strings.Join(r.Entities, ", "))
		}
		b.WriteString("\n" + r.HighlightedText + "\n\n---\n")
	}
	return b.String()
}
