package infer

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// EmbedClient calls the embedding service. Vectors come back
// normalized so cosine similarity reduces to a dot product.
type EmbedClient struct {
	baseURL    string
	httpClient *http.Client
	stats      *Stats
}

func NewEmbedClient(baseURL string, stats *Stats) *EmbedClient {
	return &EmbedClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		stats: stats,
	}
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Normalize bool     `json:"normalize"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per input text, in input order.
func (c *EmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	var resp embedResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/embed", embedRequest{
		Texts:     texts,
		Normalize: true,
	}, &resp)
	c.stats.Record(OpEmbed, time.Since(start).Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// EmbedOne embeds a single text.
func (c *EmbedClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Close releases resources.
func (c *EmbedClient) Close() {
	c.httpClient.CloseIdleConnections()
}
