package pageload

import (
	"strings"
	"testing"
)

func TestTextLoader_ParagraphsStayTogether(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	l := &TextLoader{}
	pages, err := l.Pages(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// All three paragraphs fit in one page budget.
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if !strings.Contains(pages[0], "First paragraph line one.\nFirst paragraph line two.") {
		t.Errorf("multi-line paragraph was split: %q", pages[0])
	}
	if !strings.Contains(pages[0], "Third paragraph.") {
		t.Errorf("missing paragraph: %q", pages[0])
	}
}

func TestTextLoader_WordBudgetSplitsPages(t *testing.T) {
	para := strings.Repeat("word ", 200)
	input := para + "\n\n" + para + "\n\n" + para
	l := &TextLoader{}
	pages, err := l.Pages(strings.NewReader(input), "long.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 200-word paragraphs against a 300-word budget: one per page.
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if n := len(strings.Fields(p)); n != 200 {
			t.Errorf("page %d: expected 200 words, got %d", i, n)
		}
	}
}

func TestTextLoader_EmptyInput(t *testing.T) {
	l := &TextLoader{}
	pages, err := l.Pages(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(pages))
	}
}

func TestTextLoader_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two."
	l := &TextLoader{}
	pages, err := l.Pages(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if strings.Contains(pages[0], "\n\n\n") {
		t.Errorf("empty paragraphs leaked into page: %q", pages[0])
	}
}

func TestTextLoader_WhitespaceOnlyLines(t *testing.T) {
	// Lines with only whitespace should be treated as blank.
	input := "Para one.\n   \nPara two."
	l := &TextLoader{}
	pages, err := l.Pages(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0] != "Para one.\n\nPara two." {
		t.Errorf("unexpected page text: %q", pages[0])
	}
}

func TestForFile_SupportedAndUnsupported(t *testing.T) {
	for _, name := range []string{"a.txt", "b.md", "c.csv", "d.html", "e.pdf", "f.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("expected loader for %s, got %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("expected %s to be supported", name)
		}
	}
	if _, err := ForFile("image.png"); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("image.png") {
		t.Error("png should not be supported")
	}
}
