package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Vector store connection
	QdrantURL  string
	VectorSize int
	Distance   string

	// Inference services
	EmbedURL  string
	RerankURL string
	NERURL    string

	// Auth
	APIKey string

	// Retrieval
	PageLimit           int
	TopK                int
	ChunkThreshold      float64
	DedupThreshold      float64
	RerankBatch         int
	MaxConcurrentSearch int
	QueryTimeout        time.Duration

	// Entity extraction
	EntityMaxLen int
	PhoneRegion  string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL        time.Duration
	IngestTimeout time.Duration

	// Inference stats window
	StatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		QdrantURL:  envOr("QDRANT_URL", "http://localhost:6333"),
		VectorSize: envInt("VECTOR_SIZE", 1024),
		Distance:   envOr("DISTANCE", "Cosine"),

		EmbedURL:  envOr("EMBED_URL", "http://localhost:8001"),
		RerankURL: envOr("RERANK_URL", "http://localhost:8002"),
		NERURL:    envOr("NER_URL", "http://localhost:8003"),

		APIKey: os.Getenv("DOCQA_API_KEY"),

		PageLimit:           envInt("PAGE_LIMIT", 20),
		TopK:                envInt("TOP_K", 10),
		ChunkThreshold:      envFloat("CHUNK_THRESHOLD", 0.5),
		DedupThreshold:      envFloat("DEDUP_THRESHOLD", 0.92),
		RerankBatch:         envInt("RERANK_BATCH", 32),
		MaxConcurrentSearch: envInt("MAX_CONCURRENT_SEARCH", 4),
		QueryTimeout:        envDuration("QUERY_TIMEOUT", 10*time.Second),

		EntityMaxLen: envInt("ENTITY_MAX_LEN", 1200),
		PhoneRegion:  envOr("PHONE_REGION", "US"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL:        envDuration("JOB_TTL", 1*time.Hour),
		IngestTimeout: envDuration("INGEST_TIMEOUT", 30*time.Minute),

		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.VectorSize <= 0 {
		cfg.VectorSize = 1024
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 20
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.RerankBatch <= 0 {
		cfg.RerankBatch = 32
	}
	if cfg.MaxConcurrentSearch <= 0 {
		cfg.MaxConcurrentSearch = 4
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = 30 * time.Minute
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCQA_API_KEY is required")
	}
	if c.QdrantURL == "" {
		return fmt.Errorf("QDRANT_URL is required")
	}
	if c.ChunkThreshold < 0 || c.ChunkThreshold > 1 {
		return fmt.Errorf("CHUNK_THRESHOLD must be in [0,1], got %v", c.ChunkThreshold)
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be in (0,1], got %v", c.DedupThreshold)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
