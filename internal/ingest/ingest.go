package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/docqa/internal/chunk"
	"github.com/dgallion1/docqa/internal/entity"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/infer"
)

// ErrNoContent reports a document whose pages produced zero indexable
// chunks. Ingestion records nothing and the caller decides how to
// surface the condition.
var ErrNoContent = errors.New("document has no indexable content")

// Store is the slice of the vector store that ingestion needs.
type Store interface {
	ResetCollection(ctx context.Context, collection string) error
	UpsertPages(ctx context.Context, collection string, points []index.PagePoint) error
}

// Embedder batch-embeds texts into unit vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingestor turns extracted page texts into page points ready for the
// vector store: chunking, entity extraction, and page embedding.
type Ingestor struct {
	store        Store
	embedder     Embedder
	extractor    *entity.Extractor
	chunkCfg     chunk.Config
	entityMaxLen int
	log          *slog.Logger
}

func NewIngestor(store Store, embedder Embedder, extractor *entity.Extractor, chunkCfg chunk.Config, entityMaxLen int, log *slog.Logger) *Ingestor {
	if entityMaxLen <= 0 {
		entityMaxLen = 1200
	}
	return &Ingestor{
		store:        store,
		embedder:     embedder,
		extractor:    extractor,
		chunkCfg:     chunkCfg,
		entityMaxLen: entityMaxLen,
		log:          log,
	}
}

// Prepared is the chunked form of a document, ready for embedding.
// Only pages that produced at least one chunk are present.
type Prepared struct {
	PageIDs   []int
	PageTexts []string
	Chunks    map[int][]index.ChunkPayload
}

// TotalChunks counts the chunks across every kept page.
func (p *Prepared) TotalChunks() int {
	var n int
	for _, cs := range p.Chunks {
		n += len(cs)
	}
	return n
}

// Prepare chunks every page and extracts entities per chunk. Pages
// that yield no chunks are dropped so the index never holds filler
// records. A document with zero usable pages returns ErrNoContent.
func (ing *Ingestor) Prepare(ctx context.Context, pages []string) (*Prepared, error) {
	pieces := chunk.Split(pages, ing.chunkCfg)

	// Group chunks under their home page; chunk ids are dense per page.
	chunksByPage := make(map[int][]index.ChunkPayload)
	for _, piece := range pieces {
		home := piece.Pages[0]
		spans := ing.extractor.Extract(ctx, piece.Text, ing.entityMaxLen)
		chunksByPage[home] = append(chunksByPage[home], index.ChunkPayload{
			ChunkID:  len(chunksByPage[home]),
			Text:     piece.Text,
			Entities: entity.Values(spans),
			Pages:    piece.Pages,
		})
	}

	prep := &Prepared{Chunks: chunksByPage}
	for pageID, text := range pages {
		if len(chunksByPage[pageID]) == 0 {
			if strings.TrimSpace(text) != "" {
				ing.log.Debug("page produced no chunks, skipping", "page", pageID)
			}
			continue
		}
		prep.PageIDs = append(prep.PageIDs, pageID)
		prep.PageTexts = append(prep.PageTexts, text)
	}
	if len(prep.PageIDs) == 0 {
		return nil, ErrNoContent
	}
	return prep, nil
}

// EmbedPrepared embeds the kept page texts and assembles one point per
// page. Transient embedding failures are retried with backoff.
func (ing *Ingestor) EmbedPrepared(ctx context.Context, prep *Prepared) ([]index.PagePoint, error) {
	vectors, err := ing.embedWithRetry(ctx, prep.PageTexts)
	if err != nil {
		return nil, fmt.Errorf("embed %d pages: %w", len(prep.PageTexts), err)
	}

	points := make([]index.PagePoint, len(prep.PageIDs))
	for i, pageID := range prep.PageIDs {
		points[i] = index.PagePoint{
			Vector: vectors[i],
			Payload: index.PagePayload{
				Type:   index.PointTypePage,
				Page:   pageID,
				Text:   prep.PageTexts[i],
				Chunks: prep.Chunks[pageID],
			},
		}
	}
	return points, nil
}

// BuildPoints runs Prepare and EmbedPrepared in one step.
func (ing *Ingestor) BuildPoints(ctx context.Context, pages []string) ([]index.PagePoint, error) {
	prep, err := ing.Prepare(ctx, pages)
	if err != nil {
		return nil, err
	}
	return ing.EmbedPrepared(ctx, prep)
}

// IngestPages builds points for a document's pages and commits them
// to the named collection in one session.
func (ing *Ingestor) IngestPages(ctx context.Context, collection string, pages []string) (int, error) {
	points, err := ing.BuildPoints(ctx, pages)
	if err != nil {
		return 0, err
	}

	session := ing.NewSession(collection)
	session.Stage(points...)
	if err := session.Commit(ctx); err != nil {
		return 0, err
	}
	return len(points), nil
}

// embedWithRetry retries transient embedding failures with backoff.
func (ing *Ingestor) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= infer.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := infer.Backoff(attempt - 1)
			ing.log.Warn("embedding failed, retrying", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		vectors, err := ing.embedder.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !infer.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
