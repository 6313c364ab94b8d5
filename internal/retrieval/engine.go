package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/entity"
	"github.com/dgallion1/docqa/internal/index"
)

// Embedder produces one unit-normalized query vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores passages against a query, one score per passage in
// input order.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Searcher runs page-level vector search against one collection.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]index.ScoredPage, error)
	Scroll(ctx context.Context, collection string, batchSize int) ([]index.ScrollPoint, error)
}

// Config tunes one engine instance. Zero values fall back to defaults.
type Config struct {
	PageLimit      int     // pages fetched per collection before chunk expansion
	TopK           int     // ranked results returned
	ChunkThreshold float64 // minimum rerank score, applied after reranking
	DedupThreshold float64 // text-similarity ratio treated as duplicate
	MaxConcurrent  int     // collection searches in flight at once
}

func (c Config) withDefaults() Config {
	if c.PageLimit <= 0 {
		c.PageLimit = 20
	}
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.ChunkThreshold <= 0 {
		c.ChunkThreshold = 0.5
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = 0.92
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	return c
}

// Engine answers queries over a set of document collections. It is
// stateless across queries; the embedder and reranker are process-wide
// collaborators shared between concurrent callers.
type Engine struct {
	cfg      Config
	embedder Embedder
	reranker Reranker
	searcher Searcher
	log      *slog.Logger
}

func NewEngine(cfg Config, embedder Embedder, reranker Reranker, searcher Searcher, log *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		embedder: embedder,
		reranker: reranker,
		searcher: searcher,
		log:      log,
	}
}

// Search runs the full query pipeline: embed the query once, search
// every collection's pages concurrently, collect nested chunks, merge
// duplicates, rerank, filter, and rank the survivors. Collections that
// fail or do not exist are skipped and reported in skipped; only a
// whole-pipeline failure (embedding or reranking unavailable) returns
// an error. An exhausted result set yields the no-result sentinel.
func (e *Engine) Search(ctx context.Context, query string, collections []string) ([]document.SearchResult, []string, error) {
	queryVec, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	perCollection := make([][]candidate, len(collections))
	var skipped []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for i, col := range collections {
		i, col := i, col
		g.Go(func() error {
			pages, err := e.searcher.Search(gctx, col, queryVec, e.cfg.PageLimit)
			if err != nil {
				// One failed collection never aborts the query.
				if errors.Is(err, index.ErrNotFound) {
					e.log.Info("collection not indexed, skipping", "collection", col)
				} else {
					e.log.Warn("collection search failed, skipping", "collection", col, "error", err)
				}
				perCollection[i] = nil
				return nil
			}
			perCollection[i] = collectCandidates(col, pages)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Flatten in input collection order so the candidate sequence does
	// not depend on goroutine completion order.
	var candidates []candidate
	for i, cands := range perCollection {
		if cands == nil {
			skipped = append(skipped, collections[i])
			continue
		}
		candidates = append(candidates, cands...)
	}

	if len(candidates) == 0 {
		return sentinel(), skipped, nil
	}

	// Duplicates merge before reranking so identical content is scored
	// once and carries all of its provenance.
	candidates = dedupe(candidates, e.cfg.DedupThreshold)

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.text
	}
	scores, err := e.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("rerank %d candidates: %w", len(candidates), err)
	}
	for i := range candidates {
		candidates[i].score = scores[i]
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var kept []candidate
	for _, c := range candidates {
		if c.score < e.cfg.ChunkThreshold {
			continue
		}
		kept = append(kept, c)
		if len(kept) == e.cfg.TopK {
			break
		}
	}
	if len(kept) == 0 {
		return sentinel(), skipped, nil
	}

	return format(kept), skipped, nil
}

// collectCandidates expands page hits into chunk candidates with
// provenance. Blank chunks are dropped here so they never reach the
// reranker.
func collectCandidates(collection string, pages []index.ScoredPage) []candidate {
	cands := make([]candidate, 0, len(pages))
	for _, page := range pages {
		for _, chunk := range page.Payload.Chunks {
			text := strings.TrimSpace(chunk.Text)
			if text == "" {
				continue
			}
			pageIDs := chunk.Pages
			if len(pageIDs) == 0 {
				pageIDs = []int{page.Payload.Page}
			}
			cands = append(cands, candidate{
				text:     text,
				entities: chunk.Entities,
				sources: []source{{
					collection: collection,
					pages:      pageIDs,
					chunkID:    chunk.ChunkID,
				}},
			})
		}
	}
	return cands
}

// format turns surviving candidates into ranked output records. Page
// ids switch from internal 0-indexed to display 1-indexed here and
// nowhere else.
func format(kept []candidate) []document.SearchResult {
	results := make([]document.SearchResult, len(kept))
	for i, c := range kept {
		var refs []document.PageRef
		for _, src := range c.sources {
			for _, pageID := range src.pages {
				refs = append(refs, document.PageRef{
					Collection: src.collection,
					Page:       pageID + 1,
					ChunkID:    src.chunkID,
				})
			}
		}
		results[i] = document.SearchResult{
			Rank:            i + 1,
			Score:           round4(c.score),
			Text:            c.text,
			HighlightedText: entity.HighlightAll(c.text, c.entities),
			Entities:        c.entities,
			Pages:           refs,
			IsMerged:        len(c.sources) > 1,
		}
	}
	return results
}

// sentinel is the single no-result record returned when nothing
// survives, so callers can tell "nothing relevant" from "not queried".
func sentinel() []document.SearchResult {
	return []document.SearchResult{{NoResult: true}}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
