package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

// HTTPMemory talks to a remote memory service over its JSON API.
type HTTPMemory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMemory(baseURL string, timeout time.Duration) *HTTPMemory {
	return &HTTPMemory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (m *HTTPMemory) Retrieve(ctx context.Context, userID, query string, limit int, threshold float64) ([]string, error) {
	req := models.RetrieveRequest{
		UserID:    userID,
		Query:     query,
		Limit:     limit,
		Threshold: &threshold,
	}
	var resp models.RetrieveResponse
	if err := m.post(ctx, "/api/memory/retrieve", req, &resp); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Memories))
	for _, mem := range resp.Memories {
		out = append(out, mem.Content)
	}
	return out, nil
}

func (m *HTTPMemory) Process(ctx context.Context, in *models.Interaction) error {
	req := models.ProcessInteractionRequest{
		UserID:            in.UserID,
		ConversationID:    in.ConversationID,
		UserMessage:       in.UserMessage,
		AssistantResponse: in.AssistantResponse,
		ResponseTime:      in.ResponseTime,
		ToolsUsed:         in.ToolsUsed,
		Context:           in.Context,
		Source:            in.Source,
	}
	var resp models.ProcessInteractionResponse
	return m.post(ctx, "/api/learning/process_interaction", req, &resp)
}

func (m *HTTPMemory) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
