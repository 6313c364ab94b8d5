package pageload

import (
	"bufio"
	"io"
	"strings"
)

// wordsPerPage bounds the size of synthesized pages for formats that
// have no physical page structure.
const wordsPerPage = 300

// TextLoader handles plain text files. Paragraphs are grouped into
// pages of roughly wordsPerPage words; a paragraph never splits across
// two pages.
type TextLoader struct{}

func (l *TextLoader) Pages(r io.Reader, filename string) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return groupParagraphs(paragraphs, wordsPerPage), nil
}

// groupParagraphs packs paragraphs into pages without exceeding the
// word budget, except that a single oversized paragraph becomes its
// own page.
func groupParagraphs(paragraphs []string, budget int) []string {
	var (
		pages   []string
		current []string
		words   int
	)
	flush := func() {
		if len(current) > 0 {
			pages = append(pages, strings.Join(current, "\n\n"))
			current = nil
			words = 0
		}
	}
	for _, para := range paragraphs {
		n := len(strings.Fields(para))
		if n == 0 {
			continue
		}
		if words > 0 && words+n > budget {
			flush()
		}
		current = append(current, para)
		words += n
	}
	flush()
	return pages
}
