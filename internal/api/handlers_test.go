package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docqa/internal/chunk"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/entity"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/infer"
	"github.com/dgallion1/docqa/internal/ingest"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/retrieval"
)

const testAPIKey = "test-key"

type fakeEngine struct {
	results     []document.SearchResult
	skipped     []string
	searchErr   error
	related     []retrieval.RelatedPage
	relatedErr  error
	lastQuery   string
	lastCols    []string
	lastPageID  int
	lastRelated string
}

func (f *fakeEngine) Search(ctx context.Context, query string, collections []string) ([]document.SearchResult, []string, error) {
	f.lastQuery = query
	f.lastCols = collections
	if f.searchErr != nil {
		return nil, nil, f.searchErr
	}
	return f.results, f.skipped, nil
}

func (f *fakeEngine) RelatedPages(ctx context.Context, collection string, pageID, topK int) ([]retrieval.RelatedPage, error) {
	f.lastRelated = collection
	f.lastPageID = pageID
	return f.related, f.relatedErr
}

type fakeDocs struct {
	collections []string
	deleted     []string
	listErr     error
}

func (f *fakeDocs) ListCollections(ctx context.Context) ([]string, error) {
	return f.collections, f.listErr
}

func (f *fakeDocs) DeleteCollection(ctx context.Context, collection string) error {
	f.deleted = append(f.deleted, collection)
	return nil
}

type fakeIngestStore struct{}

func (fakeIngestStore) ResetCollection(ctx context.Context, collection string) error { return nil }
func (fakeIngestStore) UpsertPages(ctx context.Context, collection string, points []index.PagePoint) error {
	return nil
}

type fakeIngestEmbedder struct{}

func (fakeIngestEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 0, 0}
	}
	return vecs, nil
}

func testConfig() config.Config {
	return config.Config{
		APIKey:         testAPIKey,
		MaxUploadBytes: 1 << 20,
		MaxQueueSize:   4,
		WorkerCount:    1,
		QueryTimeout:   5 * time.Second,
		JobTTL:         time.Hour,
	}
}

func newTestServer(t *testing.T, eng QueryEngine, docs DocumentStore) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	ingestor := ingest.NewIngestor(fakeIngestStore{}, fakeIngestEmbedder{}, entity.NewExtractor(nil, "US"), chunk.DefaultConfig(), 0, log)
	orch := pipeline.NewOrchestrator(cfg, ingestor, log)
	return NewServer(orch, eng, docs, infer.NewStats(time.Hour), log, cfg), orch
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testAPIKey, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestQuery_ReturnsResultsAndSkipped(t *testing.T) {
	eng := &fakeEngine{
		results: []document.SearchResult{{
			Rank:  1,
			Score: 0.91,
			Text:  "found passage",
			Pages: []document.PageRef{{Collection: "doc_a.pdf", Page: 3, ChunkID: 0}},
		}},
		skipped: []string{"doc_missing.pdf"},
	}
	srv, _ := newTestServer(t, eng, &fakeDocs{})

	body := `{"query":"what is the policy?","documents":["a.pdf","doc_b.pdf"]}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if eng.lastQuery != "what is the policy?" {
		t.Errorf("query = %q", eng.lastQuery)
	}
	// Bare names gain the collection prefix; prefixed names pass through.
	if len(eng.lastCols) != 2 || eng.lastCols[0] != "doc_a.pdf" || eng.lastCols[1] != "doc_b.pdf" {
		t.Errorf("collections = %v", eng.lastCols)
	}

	var resp struct {
		Results []document.SearchResult `json:"results"`
		Count   int                     `json:"count"`
		Skipped []string                `json:"skipped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Results) != 1 {
		t.Errorf("count = %d, results = %d", resp.Count, len(resp.Results))
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "doc_missing.pdf" {
		t.Errorf("skipped = %v", resp.Skipped)
	}
}

func TestQuery_DefaultsToAllDocuments(t *testing.T) {
	eng := &fakeEngine{results: []document.SearchResult{{NoResult: true}}}
	docs := &fakeDocs{collections: []string{"doc_x.txt", "doc_y.md"}}
	srv, _ := newTestServer(t, eng, docs)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"anything"}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(eng.lastCols) != 2 {
		t.Errorf("collections = %v", eng.lastCols)
	}
	// The sentinel counts as zero results.
	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 0 {
		t.Errorf("count = %d, want 0 for sentinel", resp.Count)
	}
}

func TestQuery_BlankQueryRejected(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})
	req := authed(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"   "}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQuery_NoDocumentsIndexed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})
	req := authed(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"query":"q"}`)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestQuery_MarkdownView(t *testing.T) {
	eng := &fakeEngine{
		results: []document.SearchResult{{
			Rank:            1,
			Score:           0.88,
			Text:            "plain",
			HighlightedText: "**plain**",
			Pages:           []document.PageRef{{Collection: "doc_a.txt", Page: 1}},
		}},
	}
	srv, _ := newTestServer(t, eng, &fakeDocs{})

	body := `{"query":"q","documents":["a.txt"],"markdown":true}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp struct {
		Markdown string `json:"markdown"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Markdown, "# Search results") {
		t.Errorf("markdown = %q", resp.Markdown)
	}
}

func TestListDocuments(t *testing.T) {
	docs := &fakeDocs{collections: []string{"doc_report.pdf", "doc_notes.txt"}}
	srv, _ := newTestServer(t, &fakeEngine{}, docs)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Documents []struct {
			Name       string `json:"name"`
			Collection string `json:"collection"`
		} `json:"documents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Documents) != 2 {
		t.Fatalf("documents = %v", resp.Documents)
	}
	if resp.Documents[0].Name != "report.pdf" || resp.Documents[0].Collection != "doc_report.pdf" {
		t.Errorf("first document = %+v", resp.Documents[0])
	}
}

func TestDeleteDocument_MapsNameToCollection(t *testing.T) {
	docs := &fakeDocs{}
	srv, _ := newTestServer(t, &fakeEngine{}, docs)

	req := authed(httptest.NewRequest(http.MethodDelete, "/api/documents/report.pdf", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(docs.deleted) != 1 || docs.deleted[0] != "doc_report.pdf" {
		t.Errorf("deleted = %v", docs.deleted)
	}
}

func TestRelatedPages_ConvertsPageIndex(t *testing.T) {
	eng := &fakeEngine{
		related: []retrieval.RelatedPage{{Page: 4, Score: 0.77, HighlightedText: "similar text"}},
	}
	srv, _ := newTestServer(t, eng, &fakeDocs{})

	req := authed(httptest.NewRequest(http.MethodGet, "/api/documents/report.pdf/pages/3/related?top_k=5", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if eng.lastRelated != "doc_report.pdf" {
		t.Errorf("collection = %q", eng.lastRelated)
	}
	// URL page 3 is display-indexed; the engine works 0-indexed.
	if eng.lastPageID != 2 {
		t.Errorf("pageID = %d, want 2", eng.lastPageID)
	}
}

func TestRelatedPages_BadPageParam(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})
	for _, page := range []string{"0", "-1", "abc"} {
		req := authed(httptest.NewRequest(http.MethodGet, "/api/documents/a.txt/pages/"+page+"/related", nil))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("page %q: status = %d, want 400", page, rec.Code)
		}
	}
}

func TestRelatedPages_MissingDocument(t *testing.T) {
	eng := &fakeEngine{relatedErr: fmt.Errorf("scroll: %w", index.ErrNotFound)}
	srv, _ := newTestServer(t, eng, &fakeDocs{})

	req := authed(httptest.NewRequest(http.MethodGet, "/api/documents/gone.txt/pages/1/related", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload_QueuesJob(t *testing.T) {
	srv, orch := newTestServer(t, &fakeEngine{}, &fakeDocs{})

	body, contentType := multipartUpload(t, "file", "notes.txt", "Some document text here.")
	req := authed(httptest.NewRequest(http.MethodPost, "/api/documents", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID      string `json:"job_id"`
		Collection string `json:"collection"`
		Status     string `json:"status"`
		PollURL    string `json:"poll_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.Collection != "doc_notes.txt" || resp.Status != "queued" {
		t.Errorf("response = %+v", resp)
	}
	if resp.PollURL != "/api/ingest/"+resp.JobID+"/status" {
		t.Errorf("poll_url = %q", resp.PollURL)
	}
	if orch.GetJob(resp.JobID) == nil {
		t.Error("job not registered in store")
	}
	if orch.QueueDepth() != 1 {
		t.Errorf("queue depth = %d", orch.QueueDepth())
	}
}

func TestUpload_UnsupportedExtension(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})

	body, contentType := multipartUpload(t, "file", "image.png", "binary")
	req := authed(httptest.NewRequest(http.MethodPost, "/api/documents", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestStatus(t *testing.T) {
	srv, orch := newTestServer(t, &fakeEngine{}, &fakeDocs{})

	job := orch.NewJob("report.pdf", []byte("data"))
	if err := orch.Submit(job); err != nil {
		t.Fatal(err)
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/ingest/"+job.ID+"/status", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap pipeline.JobSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.ID != job.ID || snap.Status != pipeline.StatusQueued {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Progress.Errors == nil {
		t.Error("errors should serialize as an empty array, not null")
	}
}

func TestIngestStatus_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeDocs{})
	req := authed(httptest.NewRequest(http.MethodGet, "/api/ingest/nope/status", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
