package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/docqa/internal/chunk"
	"github.com/dgallion1/docqa/internal/entity"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/infer"
)

type fakeStore struct {
	calls    []string
	upserted map[string][]index.PagePoint
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserted: make(map[string][]index.PagePoint)}
}

func (f *fakeStore) ResetCollection(ctx context.Context, collection string) error {
	f.calls = append(f.calls, "reset "+collection)
	if f.err != nil {
		return f.err
	}
	f.upserted[collection] = nil
	return nil
}

func (f *fakeStore) UpsertPages(ctx context.Context, collection string, points []index.PagePoint) error {
	f.calls = append(f.calls, "upsert "+collection)
	if f.err != nil {
		return f.err
	}
	f.upserted[collection] = append(f.upserted[collection], points...)
	return nil
}

type fakeEmbedder struct {
	failures int // retryable failures before succeeding
	calls    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &infer.RetryableError{StatusCode: 503, Message: "overloaded"}
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func testIngestor(store Store, embedder Embedder) *Ingestor {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIngestor(store, embedder, entity.NewExtractor(nil, "US"), chunk.DefaultConfig(), 1200, log)
}

func pageOfWords(prefix string, n int) string {
	words := make([]string, n)
	for i := 0; i < n; i++ {
		words[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(words, " ")
}

func TestBuildPoints_SkipsPagesWithoutChunks(t *testing.T) {
	ing := testIngestor(newFakeStore(), &fakeEmbedder{})
	pages := []string{
		pageOfWords("a", 90),
		"too short",
		"",
		pageOfWords("b", 60),
	}

	points, err := ing.BuildPoints(context.Background(), pages)
	if err != nil {
		t.Fatalf("build points: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points (chunkless pages skipped), got %d", len(points))
	}
	if points[0].Payload.Page != 0 || points[1].Payload.Page != 3 {
		t.Errorf("wrong pages kept: %d, %d", points[0].Payload.Page, points[1].Payload.Page)
	}
	for _, p := range points {
		if len(p.Payload.Chunks) == 0 {
			t.Errorf("page %d persisted with zero chunks", p.Payload.Page)
		}
		if err := p.Validate(3); err != nil {
			t.Errorf("page %d: invalid point: %v", p.Payload.Page, err)
		}
	}
}

func TestBuildPoints_ChunkIDsDensePerPage(t *testing.T) {
	ing := testIngestor(newFakeStore(), &fakeEmbedder{})
	points, err := ing.BuildPoints(context.Background(), []string{pageOfWords("a", 90)})
	if err != nil {
		t.Fatalf("build points: %v", err)
	}
	chunks := points[0].Payload.Chunks
	for i, c := range chunks {
		if c.ChunkID != i {
			t.Errorf("chunk %d has id %d", i, c.ChunkID)
		}
	}
}

func TestBuildPoints_ExtractsEntities(t *testing.T) {
	ing := testIngestor(newFakeStore(), &fakeEmbedder{})
	page := pageOfWords("w", 25) + " reach us at jane@example.com today"

	points, err := ing.BuildPoints(context.Background(), []string{page})
	if err != nil {
		t.Fatalf("build points: %v", err)
	}
	var found bool
	for _, c := range points[0].Payload.Chunks {
		for _, e := range c.Entities {
			if e == "jane@example.com" {
				found = true
			}
		}
	}
	if !found {
		t.Error("email entity not attached to any chunk")
	}
}

func TestBuildPoints_NoContent(t *testing.T) {
	ing := testIngestor(newFakeStore(), &fakeEmbedder{})
	_, err := ing.BuildPoints(context.Background(), []string{"", "   ", "tiny"})
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
}

func TestBuildPoints_RetriesTransientEmbedFailures(t *testing.T) {
	embedder := &fakeEmbedder{failures: 2}
	ing := testIngestor(newFakeStore(), embedder)

	_, err := ing.BuildPoints(context.Background(), []string{pageOfWords("a", 60)})
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if embedder.calls != 3 {
		t.Errorf("expected 3 embed attempts, got %d", embedder.calls)
	}
}

func TestIngestPages_ResetBeforeUpsert(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(store, &fakeEmbedder{})

	n, err := ing.IngestPages(context.Background(), "doc_a.txt", []string{pageOfWords("a", 60)})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 point, got %d", n)
	}
	want := []string{"reset doc_a.txt", "upsert doc_a.txt"}
	if len(store.calls) != 2 || store.calls[0] != want[0] || store.calls[1] != want[1] {
		t.Errorf("expected %v, got %v", want, store.calls)
	}
}

func TestIngestPages_ReplacesPriorUpload(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(store, &fakeEmbedder{})

	if _, err := ing.IngestPages(context.Background(), "doc_a.txt", []string{pageOfWords("old", 60)}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := ing.IngestPages(context.Background(), "doc_a.txt", []string{pageOfWords("new", 60)}); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	for _, p := range store.upserted["doc_a.txt"] {
		for _, c := range p.Payload.Chunks {
			if strings.Contains(c.Text, "old0") {
				t.Error("chunk from the first upload survived re-ingestion")
			}
		}
	}
}

func TestSession_CommitOnce(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(store, &fakeEmbedder{})
	points, err := ing.BuildPoints(context.Background(), []string{pageOfWords("a", 60)})
	if err != nil {
		t.Fatalf("build points: %v", err)
	}

	s := ing.NewSession("doc_a.txt")
	s.Stage(points...)
	if err := s.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.Commit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second commit: expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_AbandonLeavesStoreUntouched(t *testing.T) {
	store := newFakeStore()
	ing := testIngestor(store, &fakeEmbedder{})

	s := ing.NewSession("doc_a.txt")
	s.Stage(index.PagePoint{})
	s.Abandon()

	if len(store.calls) != 0 {
		t.Errorf("abandon must not touch the store, saw %v", store.calls)
	}
	if err := s.Commit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("commit after abandon: expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_CommitNothingStaged(t *testing.T) {
	ing := testIngestor(newFakeStore(), &fakeEmbedder{})
	s := ing.NewSession("doc_a.txt")
	if err := s.Commit(context.Background()); !errors.Is(err, ErrNoContent) {
		t.Errorf("expected ErrNoContent, got %v", err)
	}
}
