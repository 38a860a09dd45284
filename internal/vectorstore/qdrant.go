package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// errNotFound is returned for 404 responses, which Qdrant sends for
// collections that do not exist yet.
var errNotFound = errors.New("qdrant: not found")

// QdrantClient interfaces with the Qdrant REST API for vector operations.
type QdrantClient struct {
	baseURL    string
	httpClient *http.Client
	dimension  int
}

func NewQdrantClient(baseURL string, dimension int) *QdrantClient {
	return &QdrantClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dimension: dimension,
	}
}

// Point represents a vector point in Qdrant.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResult is a single scored result from Qdrant.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Filter is a Qdrant payload filter with "must" conditions only.
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// Condition matches a payload key against an exact value.
type Condition struct {
	Key   string     `json:"key"`
	Match MatchValue `json:"match"`
}

type MatchValue struct {
	Value any `json:"value"`
}

// MatchKey builds a filter requiring payload[key] == value.
func MatchKey(key string, value any) *Filter {
	return &Filter{Must: []Condition{{Key: key, Match: MatchValue{Value: value}}}}
}

// HealthCheck verifies Qdrant connectivity.
func (c *QdrantClient) HealthCheck(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", resp.StatusCode)
	}
	return nil
}

// EnsureCollection creates a collection if it doesn't exist.
func (c *QdrantClient) EnsureCollection(ctx context.Context, name string) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.dimension,
			"distance": "Cosine",
		},
	}
	if _, err := c.send(ctx, http.MethodPut, "/collections/"+name, body); err != nil {
		return err
	}

	// Payload index for dedup lookups.
	index := map[string]any{
		"field_name":   "content_key",
		"field_schema": "keyword",
	}
	_, err = c.send(ctx, http.MethodPut, "/collections/"+name+"/index", index)
	return err
}

// CollectionExists checks if a collection exists.
func (c *QdrantClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// DeleteCollection drops a collection. Missing collections are not an error.
func (c *QdrantClient) DeleteCollection(ctx context.Context, name string) error {
	_, err := c.send(ctx, http.MethodDelete, "/collections/"+name, nil)
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

// Upsert inserts or updates vector points in a collection.
func (c *QdrantClient) Upsert(ctx context.Context, collection string, points []Point) error {
	body := map[string]any{
		"points": points,
	}
	_, err := c.send(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	return err
}

// Search finds the nearest vectors in a collection.
func (c *QdrantClient) Search(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]SearchResult, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		body["filter"] = filter
	}

	respBody, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []SearchResult `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return resp.Result, nil
}

// Scroll pages through the points of a collection matching filter. offset is
// the cursor returned by the previous call; nil starts from the beginning.
func (c *QdrantClient) Scroll(ctx context.Context, collection string, filter *Filter, limit int, offset any) ([]SearchResult, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if filter != nil {
		body["filter"] = filter
	}
	if offset != nil {
		body["offset"] = offset
	}

	respBody, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		Result struct {
			Points         []SearchResult `json:"points"`
			NextPageOffset any            `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode scroll response: %w", err)
	}
	return resp.Result.Points, resp.Result.NextPageOffset, nil
}

// Count returns the exact number of points matching filter.
func (c *QdrantClient) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	body := map[string]any{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}

	respBody, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/count", body)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return resp.Result.Count, nil
}

// DeletePoints removes points by their IDs from a collection.
func (c *QdrantClient) DeletePoints(ctx context.Context, collection string, ids []string) error {
	body := map[string]any{
		"points": ids,
	}
	_, err := c.send(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", body)
	return err
}

func (c *QdrantClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// send performs a request and returns the body of a successful response.
func (c *QdrantClient) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("qdrant %s %s: %w", method, path, errNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
