package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports that a collection does not exist in the store.
var ErrNotFound = errors.New("collection not found")

// Client is a typed HTTP client for a Qdrant vector store. Pages are
// the only point kind it writes: each point carries a page embedding
// and a payload nesting the page's chunks.
type Client struct {
	baseURL    string
	vectorSize int
	distance   string
	httpClient *http.Client
}

func NewClient(baseURL string, vectorSize int, distance string) *Client {
	return &Client{
		baseURL:    baseURL,
		vectorSize: vectorSize,
		distance:   distance,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// CollectionExists checks for a collection without mutating anything.
func (c *Client) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var resp struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
	}
	err := c.do(ctx, http.MethodGet, c.collectionPath(collection), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateCollection creates an empty collection with the client's
// vector geometry.
func (c *Client) CreateCollection(ctx context.Context, collection string) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": c.distance,
		},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionPath(collection), body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

// DeleteCollection removes a collection. Deleting a collection that
// does not exist is not an error.
func (c *Client) DeleteCollection(ctx context.Context, collection string) error {
	err := c.do(ctx, http.MethodDelete, c.collectionPath(collection), nil, nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

// ResetCollection deletes any existing collection of that name and
// creates a fresh one, so re-ingesting a document fully replaces it.
// The sequence is idempotent.
func (c *Client) ResetCollection(ctx context.Context, collection string) error {
	if err := c.DeleteCollection(ctx, collection); err != nil {
		return err
	}
	return c.CreateCollection(ctx, collection)
}

// ListCollections returns the names of collections owned by this
// service (those carrying the document prefix).
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var names []string
	for _, col := range resp.Result.Collections {
		if _, ok := DocumentName(col.Name); ok {
			names = append(names, col.Name)
		}
	}
	return names, nil
}

type upsertPoint struct {
	ID      string      `json:"id"`
	Vector  []float32   `json:"vector"`
	Payload PagePayload `json:"payload"`
}

// UpsertPages validates and writes page points, waiting for the store
// to apply them so a completed ingest is immediately searchable. Point
// ids are freshly generated; replacement happens at collection level
// via ResetCollection, never by id collision.
func (c *Client) UpsertPages(ctx context.Context, collection string, points []PagePoint) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]upsertPoint, len(points))
	for i, p := range points {
		if err := p.Validate(c.vectorSize); err != nil {
			return fmt.Errorf("invalid point %d: %w", i, err)
		}
		payload[i] = upsertPoint{
			ID:      uuid.NewString(),
			Vector:  p.Vector,
			Payload: p.Payload,
		}
	}
	body := map[string]any{"points": payload}
	path := c.collectionPath(collection) + "/points?wait=true"
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Search runs a page-level vector search, filtered to page points.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPage, error) {
	body := map[string]any{
		"vector": vector,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "type", "match": map[string]any{"value": PointTypePage}},
			},
		},
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any         `json:"id"`
			Score   float64     `json:"score"`
			Payload PagePayload `json:"payload"`
		} `json:"result"`
	}
	path := c.collectionPath(collection) + "/points/search"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	hits := make([]ScoredPage, len(resp.Result))
	for i, r := range resp.Result {
		hits[i] = ScoredPage{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		}
	}
	return hits, nil
}

// Scroll walks every page point in a collection in batches, following
// the store's pagination cursor. Vectors are included so callers can
// compute similarity locally.
func (c *Client) Scroll(ctx context.Context, collection string, batchSize int) ([]ScrollPoint, error) {
	if batchSize <= 0 {
		batchSize = 64
	}
	var (
		points []ScrollPoint
		offset any
	)
	for {
		body := map[string]any{
			"limit":        batchSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID      any         `json:"id"`
					Vector  []float32   `json:"vector"`
					Payload PagePayload `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		path := c.collectionPath(collection) + "/points/scroll"
		if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
			return nil, fmt.Errorf("scroll %s: %w", collection, err)
		}
		for _, p := range resp.Result.Points {
			points = append(points, ScrollPoint{
				ID:      fmt.Sprint(p.ID),
				Vector:  p.Vector,
				Payload: p.Payload,
			})
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			return points, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (c *Client) collectionPath(collection string) string {
	return "/collections/" + url.PathEscape(collection)
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vector store status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	if respBody != nil {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
