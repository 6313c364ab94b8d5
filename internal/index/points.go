package index

import (
	"fmt"
	"strings"
)

// ChunkPayload is one retrievable chunk nested inside its home page's
// payload. Pages are 0-based document page ids; Pages[0] is the page
// the chunk originates from.
type ChunkPayload struct {
	ChunkID  int      `json:"chunk_id"`
	Text     string   `json:"text"`
	Entities []string `json:"entities"`
	Pages    []int    `json:"pages"`
}

// PagePayload is the payload stored with every page point. Type is
// always "page"; search filters on it so future point kinds cannot
// leak into page-level results.
type PagePayload struct {
	Type   string         `json:"type"`
	Page   int            `json:"page"`
	Text   string         `json:"text"`
	Chunks []ChunkPayload `json:"chunks"`
}

// PagePoint pairs a page payload with its embedding vector. The point
// id is assigned at upsert time.
type PagePoint struct {
	Vector  []float32
	Payload PagePayload
}

// Validate reports structural problems that would corrupt retrieval if
// the point were stored: wrong payload type, negative page ids, chunks
// with blank text, or chunks whose home page differs from the point's.
func (p PagePoint) Validate(vectorSize int) error {
	if p.Payload.Type != PointTypePage {
		return fmt.Errorf("payload type %q, want %q", p.Payload.Type, PointTypePage)
	}
	if p.Payload.Page < 0 {
		return fmt.Errorf("negative page id %d", p.Payload.Page)
	}
	if len(p.Vector) != vectorSize {
		return fmt.Errorf("vector size %d, want %d", len(p.Vector), vectorSize)
	}
	for _, c := range p.Payload.Chunks {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("chunk %d on page %d has blank text", c.ChunkID, p.Payload.Page)
		}
		if len(c.Pages) == 0 || c.Pages[0] != p.Payload.Page {
			return fmt.Errorf("chunk %d home page %v does not match point page %d", c.ChunkID, c.Pages, p.Payload.Page)
		}
	}
	return nil
}

// PointTypePage is the payload type tag for page-level points.
const PointTypePage = "page"

// ScoredPage is one page-level search hit.
type ScoredPage struct {
	ID      string
	Score   float64
	Payload PagePayload
}

// ScrollPoint is one page returned by a payload scan, optionally
// carrying its stored vector.
type ScrollPoint struct {
	ID      string
	Vector  []float32
	Payload PagePayload
}
