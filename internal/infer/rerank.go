package infer

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RerankClient calls the cross-encoder reranking service. Large
// candidate sets are scored in fixed-size batches; scores are mapped
// back by index so the result always aligns with the input order.
type RerankClient struct {
	baseURL    string
	batchSize  int
	httpClient *http.Client
	stats      *Stats
}

func NewRerankClient(baseURL string, batchSize int, stats *Stats) *RerankClient {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &RerankClient{
		baseURL:   baseURL,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		stats: stats,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

// Rerank scores every text against the query, returning one relevance
// score per input text, in input order.
func (c *RerankClient) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	scores := make([]float64, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		callStart := time.Now()
		var resp rerankResponse
		err := postJSON(ctx, c.httpClient, c.baseURL+"/rerank", rerankRequest{
			Query:     query,
			Documents: texts[start:end],
		}, &resp)
		c.stats.Record(OpRerank, time.Since(callStart).Milliseconds())
		if err != nil {
			return nil, fmt.Errorf("rerank batch %d-%d: %w", start, end, err)
		}
		if len(resp.Scores) != end-start {
			return nil, fmt.Errorf("rerank: got %d scores for %d documents", len(resp.Scores), end-start)
		}
		copy(scores[start:end], resp.Scores)
	}
	return scores, nil
}

// Close releases resources.
func (c *RerankClient) Close() {
	c.httpClient.CloseIdleConnections()
}
