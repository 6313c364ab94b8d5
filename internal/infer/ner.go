package infer

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// NERClient calls the named-entity recognition service.
type NERClient struct {
	baseURL    string
	httpClient *http.Client
	stats      *Stats
}

func NewNERClient(baseURL string, stats *Stats) *NERClient {
	return &NERClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		stats: stats,
	}
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Entities []string `json:"entities"`
}

// Recognize returns the entity strings found in text.
func (c *NERClient) Recognize(ctx context.Context, text string) ([]string, error) {
	start := time.Now()
	var resp nerResponse
	err := postJSON(ctx, c.httpClient, c.baseURL+"/ner", nerRequest{Text: text}, &resp)
	c.stats.Record(OpNER, time.Since(start).Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("recognize entities: %w", err)
	}
	return resp.Entities, nil
}

// Close releases resources.
func (c *NERClient) Close() {
	c.httpClient.CloseIdleConnections()
}
