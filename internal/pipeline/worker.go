package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docqa/internal/ingest"
	"github.com/dgallion1/docqa/internal/pageload"
)

// Worker processes a single ingestion job end to end: load pages,
// chunk, embed, commit to the vector store.
type Worker struct {
	ingestor      *ingest.Ingestor
	log           *slog.Logger
	ingestTimeout time.Duration
	pdfFallback   bool
}

func NewWorker(ingestor *ingest.Ingestor, log *slog.Logger, ingestTimeout time.Duration, pdfFallback bool) *Worker {
	return &Worker{
		ingestor:      ingestor,
		log:           log,
		ingestTimeout: ingestTimeout,
		pdfFallback:   pdfFallback,
	}
}

// Process runs the full ingest pipeline for a job. Every job gets its
// own timeout budget, much longer than a query's, so a huge document
// cannot occupy a worker forever. A timed-out job is reported as
// timeout, distinct from a generic failure; because the collection is
// only reset at commit time, an interrupted job leaves any previous
// upload of the document intact.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "collection", job.Collection)

	ctx, cancel := context.WithTimeout(ctx, w.ingestTimeout)
	defer cancel()

	// Phase 1: Load pages.
	job.SetStatus(StatusLoading, "loading pages")
	loader, err := pageload.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		w.fail(job, "loading", err)
		return
	}
	if pl, ok := loader.(*pageload.PDFLoader); ok {
		pl.FallbackPdftotext = w.pdfFallback
	}
	pages, err := loader.Pages(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("page extraction failed", "error", err)
		w.fail(job, "loading", fmt.Errorf("load pages: %w", err))
		return
	}
	job.ReleaseFileData()
	job.SetTotalPages(len(pages))
	log.Info("pages loaded", "pages", len(pages))

	// Phase 2: Chunk and extract entities.
	job.SetStatus(StatusChunking, "chunking pages")
	prep, err := w.ingestor.Prepare(ctx, pages)
	if err != nil {
		if errors.Is(err, ingest.ErrNoContent) {
			log.Warn("document has no indexable content")
		} else {
			log.Error("chunking failed", "error", err)
		}
		w.fail(job, "chunking", err)
		return
	}
	job.SetTotalChunks(prep.TotalChunks())
	log.Info("chunked document", "chunks", prep.TotalChunks())

	// Phase 3: Embed pages.
	job.SetStatus(StatusEmbedding, "embedding pages")
	points, err := w.ingestor.EmbedPrepared(ctx, prep)
	if err != nil {
		log.Error("embedding failed", "error", err)
		w.fail(job, "embedding", err)
		return
	}

	// Phase 4: Commit. Reset-then-upsert replaces any earlier upload
	// of the same document wholesale.
	job.SetStatus(StatusIndexing, "writing to vector store")
	session := w.ingestor.NewSession(job.Collection)
	session.Stage(points...)
	if err := session.Commit(ctx); err != nil {
		log.Error("commit failed", "error", err)
		w.fail(job, "indexing", err)
		return
	}

	job.SetPagesIndexed(len(points))
	job.SetStatus(StatusCompleted, "done")
	log.Info("ingestion complete", "pages_indexed", len(points))
}

func (w *Worker) fail(job *Job, phase string, err error) {
	job.AddError(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		job.SetStatus(StatusTimeout, phase)
		return
	}
	job.SetStatus(StatusFailed, phase)
}
