package document

// Page is the largest indexed unit of a document and the unit of
// coarse-grained vector search. Page ids are 0-based and stable.
type Page struct {
	ID     int
	Text   string
	Chunks []Chunk
}

// Chunk is a sub-page passage, the unit ultimately returned to the
// caller as answer-grounding evidence. A chunk is immutable once built.
type Chunk struct {
	ChunkID  int      // unique within the owning page
	Text     string   // never empty or whitespace-only
	Entities []string // extracted spans, longest first
	Pages    []int    // 0-based page ids this chunk spans; Pages[0] is the home page
}

// PageRef is the provenance of a returned passage: where it came from,
// with the page number already converted to 1-indexed display form.
type PageRef struct {
	Collection string `json:"collection"`
	Page       int    `json:"page"`
	ChunkID    int    `json:"chunk_id"`
}

// SearchResult is one ranked output record of a query. Produced fresh
// per query, never cached.
type SearchResult struct {
	Rank            int       `json:"rank"`
	Score           float64   `json:"score"`
	Text            string    `json:"text"`
	HighlightedText string    `json:"highlighted_text"`
	Entities        []string  `json:"entities"`
	Pages           []PageRef `json:"pages"`
	IsMerged        bool      `json:"is_merged"`

	// NoResult marks the sentinel record returned when no passage
	// survived filtering, so callers can tell "nothing relevant"
	// from "not yet queried".
	NoResult bool `json:"no_result,omitempty"`
}
