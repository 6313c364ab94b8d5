package entity

import (
	"context"
	"net/mail"
	"regexp"
	"sort"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Span is one extracted entity. Start/End are byte offsets into the
// (truncated) input text; -1 when the source offset is unknown.
type Span struct {
	Type  string
	Value string
	Start int
	End   int
}

const (
	TypeEmail = "email"
	TypePhone = "phone"
	TypeNER   = "ner"
)

// Recognizer finds named entities in text. Implemented by an external
// model capability; may be nil when no NER service is configured.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]string, error)
}

// Extractor merges named-entity recognition with deterministic email
// and phone matchers.
type Extractor struct {
	ner         Recognizer
	phoneRegion string // default region hint; "ZZ" matches international form only
}

func NewExtractor(ner Recognizer, phoneRegion string) *Extractor {
	if phoneRegion == "" {
		phoneRegion = "ZZ"
	}
	return &Extractor{ner: ner, phoneRegion: phoneRegion}
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?[0-9][0-9()\-\s.]{5,18}[0-9]`)
)

// Extract returns entity spans found in text, truncated to maxLen runes
// first to bound cost on huge chunks. Recognizer failures degrade to
// matcher-only results rather than failing the chunk.
func (e *Extractor) Extract(ctx context.Context, text string, maxLen int) []Span {
	text = truncateRunes(text, maxLen)

	var spans []Span
	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		v := text[loc[0]:loc[1]]
		if _, err := mail.ParseAddress(v); err != nil {
			continue
		}
		spans = append(spans, Span{Type: TypeEmail, Value: v, Start: loc[0], End: loc[1]})
	}

	for _, loc := range phoneRe.FindAllStringIndex(text, -1) {
		raw := strings.TrimSpace(text[loc[0]:loc[1]])
		num, err := phonenumbers.Parse(raw, e.phoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(num) {
			continue
		}
		spans = append(spans, Span{Type: TypePhone, Value: raw, Start: loc[0], End: loc[0] + len(raw)})
	}

	if e.ner != nil {
		words, err := e.ner.Recognize(ctx, text)
		if err == nil {
			for _, w := range words {
				w = strings.TrimSpace(w)
				if w == "" {
					continue
				}
				spans = append(spans, Span{Type: TypeNER, Value: w, Start: -1, End: -1})
			}
		}
	}

	return spans
}

// Values flattens spans into a deduplicated list of entity strings,
// longest first so that offset-free highlighting wraps whole entities
// before their substrings.
func Values(spans []Span) []string {
	seen := make(map[string]struct{}, len(spans))
	var out []string
	for _, s := range spans {
		if _, ok := seen[s.Value]; ok {
			continue
		}
		seen[s.Value] = struct{}{}
		out = append(out, s.Value)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}
