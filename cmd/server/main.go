package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docqa/internal/api"
	"github.com/dgallion1/docqa/internal/chunk"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/entity"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/infer"
	"github.com/dgallion1/docqa/internal/ingest"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/retrieval"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	stats := infer.NewStats(cfg.StatsWindow)
	embedder := infer.NewEmbedClient(cfg.EmbedURL, stats)
	reranker := infer.NewRerankClient(cfg.RerankURL, cfg.RerankBatch, stats)
	ner := infer.NewNERClient(cfg.NERURL, stats)
	store := index.NewClient(cfg.QdrantURL, cfg.VectorSize, cfg.Distance)

	// Initialize ingestion and retrieval.
	extractor := entity.NewExtractor(ner, cfg.PhoneRegion)
	ingestor := ingest.NewIngestor(store, embedder, extractor, chunk.DefaultConfig(), cfg.EntityMaxLen, log)
	engine := retrieval.NewEngine(retrieval.Config{
		PageLimit:      cfg.PageLimit,
		TopK:           cfg.TopK,
		ChunkThreshold: cfg.ChunkThreshold,
		DedupThreshold: cfg.DedupThreshold,
		MaxConcurrent:  cfg.MaxConcurrentSearch,
	}, embedder, reranker, store, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, ingestor, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, engine, store, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		embedder.Close()
		reranker.Close()
		ner.Close()
		store.Close()
	}()

	log.Info("starting docqa", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
