package entity

import (
	"sort"
	"strings"
)

// Highlight wraps spans carrying explicit offsets in **bold** markers.
// Replacement proceeds right to left so earlier insertions do not
// invalidate later offsets. Spans without offsets (NER) are skipped, as
// are spans already adjacent to bold markers or overlapping a span that
// was just wrapped.
func Highlight(text string, spans []Span) string {
	offset := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		offset = append(offset, s)
	}
	sort.SliceStable(offset, func(i, j int) bool { return offset[i].Start > offset[j].Start })

	wrappedFrom := len(text) + 1
	for _, s := range offset {
		if s.End > wrappedFrom {
			continue // overlaps a span already wrapped to its right
		}
		if alreadyBold(text, s.Start, s.End) {
			wrappedFrom = s.Start
			continue
		}
		text = text[:s.Start] + "**" + text[s.Start:s.End] + "**" + text[s.End:]
		wrappedFrom = s.Start
	}
	return text
}

// HighlightAll is the offset-free variant: every occurrence of every
// entity string is wrapped, skipping matches already adjacent to an
// asterisk so nothing is double-marked.
func HighlightAll(text string, entities []string) string {
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		pos := 0
		for {
			i := strings.Index(text[pos:], e)
			if i < 0 {
				break
			}
			i += pos
			end := i + len(e)
			if adjacentStar(text, i, end) {
				pos = end
				continue
			}
			text = text[:i] + "**" + e + "**" + text[end:]
			pos = end + 4
		}
	}
	return text
}

// Strip removes all bold markers, reversing Highlight/HighlightAll.
func Strip(text string) string {
	return strings.ReplaceAll(text, "**", "")
}

func alreadyBold(text string, start, end int) bool {
	return start >= 2 && text[start-2:start] == "**" &&
		end+2 <= len(text) && text[end:end+2] == "**"
}

func adjacentStar(text string, start, end int) bool {
	if start > 0 && text[start-1] == '*' {
		return true
	}
	if end < len(text) && text[end] == '*' {
		return true
	}
	return false
}
