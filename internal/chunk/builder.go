package chunk

import "strings"

// Strategy selects how a page is cut into word windows.
type Strategy string

const (
	// StrategyEqualWindows splits each page into a fixed number of
	// roughly equal word windows.
	StrategyEqualWindows Strategy = "equal"
	// StrategySliding walks each page with a fixed-size window that
	// backs up by Overlap words between steps.
	StrategySliding Strategy = "sliding"
)

// Config controls chunking behavior.
type Config struct {
	Strategy Strategy

	Windows   int // window count per page (equal strategy)
	ChunkSize int // window size in words (sliding strategy)
	Overlap   int // back-reference in words (sliding strategy)

	MinWords int // windows shorter than this are discarded, not padded

	// PageOverlap appends a prefix of the next page to the window that
	// reaches the end of its page, carrying context across artificial
	// page breaks. The prefix is next-page words / OverlapDivisor, at
	// least MinOverlapWords, and the chunk records both page ids.
	PageOverlap     bool
	OverlapDivisor  int
	MinOverlapWords int
}

// DefaultConfig returns the canonical policy: three equal windows per
// page, 20-word minimum, 20% next-page overlap.
func DefaultConfig() Config {
	return Config{
		Strategy:        StrategyEqualWindows,
		Windows:         3,
		ChunkSize:       120,
		Overlap:         20,
		MinWords:        20,
		PageOverlap:     true,
		OverlapDivisor:  5,
		MinOverlapWords: 20,
	}
}

// Piece is one chunk of text plus the 0-based page ids it spans.
// Pages[0] is always the page the text originates from.
type Piece struct {
	Text  string
	Pages []int
}

// Split segments ordered page texts into retrievable pieces. It is
// deterministic and idempotent; pages that are empty or shorter than
// the minimum word count produce no pieces. A document with zero
// usable pages yields an empty (non-nil error free) result.
func Split(pages []string, cfg Config) []Piece {
	cfg = cfg.withDefaults()

	var pieces []Piece
	for pageID, pageText := range pages {
		words := strings.Fields(pageText)
		if len(words) < cfg.MinWords {
			continue
		}

		for _, w := range pageWindows(len(words), cfg) {
			window := words[w.start:w.end]
			if len(window) < cfg.MinWords {
				continue
			}

			text := strings.Join(window, " ")
			pagesInvolved := []int{pageID}

			// The window that reaches the page end may bleed into the
			// next page.
			if cfg.PageOverlap && w.end == len(words) && pageID+1 < len(pages) {
				if prefix := nextPagePrefix(pages[pageID+1], cfg); prefix != "" {
					text += " " + prefix
					pagesInvolved = append(pagesInvolved, pageID+1)
				}
			}

			pieces = append(pieces, Piece{Text: text, Pages: pagesInvolved})
		}
	}
	return pieces
}

type window struct {
	start, end int
}

func pageWindows(totalWords int, cfg Config) []window {
	switch cfg.Strategy {
	case StrategySliding:
		step := cfg.ChunkSize - cfg.Overlap
		if step <= 0 {
			step = cfg.ChunkSize
		}
		var ws []window
		for start := 0; start < totalWords; start += step {
			end := start + cfg.ChunkSize
			if end >= totalWords {
				ws = append(ws, window{start, totalWords})
				break
			}
			ws = append(ws, window{start, end})
		}
		return ws
	default:
		size := totalWords / cfg.Windows
		if size < cfg.MinWords {
			size = cfg.MinWords
		}
		ws := make([]window, 0, cfg.Windows)
		for i := 0; i < cfg.Windows; i++ {
			start := i * size
			if start >= totalWords {
				break
			}
			end := start + size
			if i == cfg.Windows-1 || end > totalWords {
				end = totalWords
			}
			ws = append(ws, window{start, end})
		}
		return ws
	}
}

func nextPagePrefix(nextPage string, cfg Config) string {
	nextWords := strings.Fields(nextPage)
	if len(nextWords) == 0 {
		return ""
	}
	size := len(nextWords) / cfg.OverlapDivisor
	if size < cfg.MinOverlapWords {
		size = cfg.MinOverlapWords
	}
	if size > len(nextWords) {
		size = len(nextWords)
	}
	return strings.Join(nextWords[:size], " ")
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.Windows <= 0 {
		c.Windows = d.Windows
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.Overlap < 0 {
		c.Overlap = d.Overlap
	}
	if c.MinWords <= 0 {
		c.MinWords = d.MinWords
	}
	if c.OverlapDivisor <= 0 {
		c.OverlapDivisor = d.OverlapDivisor
	}
	if c.MinOverlapWords <= 0 {
		c.MinOverlapWords = d.MinOverlapWords
	}
	return c
}
