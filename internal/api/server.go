package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/infer"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/retrieval"
)

// QueryEngine answers queries and page-similarity lookups. Satisfied by
// *retrieval.Engine.
type QueryEngine interface {
	Search(ctx context.Context, query string, collections []string) ([]document.SearchResult, []string, error)
	RelatedPages(ctx context.Context, collection string, pageID, topK int) ([]retrieval.RelatedPage, error)
}

// DocumentStore manages indexed document collections. Satisfied by
// *index.Client.
type DocumentStore interface {
	ListCollections(ctx context.Context) ([]string, error)
	DeleteCollection(ctx context.Context, collection string) error
}

// Server is the HTTP API server for docqa.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	engine       QueryEngine
	docs         DocumentStore
	stats        *infer.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, engine QueryEngine, docs DocumentStore, stats *infer.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		engine:       engine,
		docs:         docs,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleUpload)
		r.Post("/api/documents/batch", s.handleBatchUpload)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents/{name}", s.handleDeleteDocument)
		r.Get("/api/documents/{name}/pages/{page}/related", s.handleRelatedPages)

		r.Post("/api/query", s.handleQuery)
		r.Get("/api/stats/infer", s.handleInferStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
