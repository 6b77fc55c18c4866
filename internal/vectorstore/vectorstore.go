// Package vectorstore is a thin REST client to an external vector
// database used for semantic search over message content. No vector-db
// Go client exists anywhere in the retrieval corpus, so this talks
// directly over net/http — the same direct-HTTP-call shape the teacher
// uses to reach the Anthropic API in its webhook synthesis path.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client upserts and queries message embeddings against an external
// vector database's REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type upsertRequest struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Text     string `json:"text"`
}

// Upsert embeds and stores one message's content, keyed by message ID,
// scoped to the owning user.
func (c *Client) Upsert(ctx context.Context, userID, messageID, text string) error {
	body := upsertRequest{ID: messageID, UserID: userID, Text: text}
	_, err := c.doJSON(ctx, http.MethodPut, "/v1/vectors/"+messageID, body, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %s: %w", messageID, err)
	}
	return nil
}

// QueryResult is one ranked hit from a similarity query.
type QueryResult struct {
	MessageID string  `json:"id"`
	Score     float64 `json:"score"`
}

type queryRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	TopK   int    `json:"top_k"`
}

type queryResponse struct {
	Results []QueryResult `json:"results"`
}

// Query returns the topK messages most semantically similar to text,
// scoped to userID.
func (c *Client) Query(ctx context.Context, userID, text string, topK int) ([]QueryResult, error) {
	var resp queryResponse
	_, err := c.doJSON(ctx, http.MethodPost, "/v1/vectors/query", queryRequest{UserID: userID, Text: text, TopK: topK}, &resp)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	return resp.Results, nil
}

// Delete removes a message's embedding, called when a message is deleted
// upstream of the feed (platform-side deletion is out of scope, but a
// local purge path may call this).
func (c *Client) Delete(ctx context.Context, messageID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/v1/vectors/"+messageID, nil, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: delete %s: %w", messageID, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
