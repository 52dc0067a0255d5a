package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"millionx-backend/application/ports"
	"millionx-backend/application/queries"
)

// Client is a thin wrapper over the REST API for the terminal UI.
// Authentication uses a bearer session token obtained from a magic link.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates an API client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		// Content generation can hold a request open for a while
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// ListSessions fetches a page of saved sessions
func (c *Client) ListSessions(ctx context.Context, page, pageSize int) ([]ports.SessionSummary, error) {
	var out []ports.SessionSummary
	path := fmt.Sprintf("/api/v1/sessions?page=%d&page_size=%d", page, pageSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartTopic creates a new exploration session
func (c *Client) StartTopic(ctx context.Context, topic string) (*queries.SessionDTO, error) {
	var out queries.SessionDTO
	body := map[string]string{"topic": topic}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches a full session
func (c *Client) GetSession(ctx context.Context, sessionID string) (*queries.SessionDTO, error) {
	var out queries.SessionDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sessions/"+sessionID, nil, nil)
}

// GetGraphView fetches the visible window around the active node
func (c *Client) GetGraphView(ctx context.Context, sessionID, activeNodeID string) (*queries.GraphViewResult, error) {
	var out queries.GraphViewResult
	path := "/api/v1/sessions/" + sessionID + "/graph"
	if activeNodeID != "" {
		path += "?active=" + activeNodeID
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnsureContent returns the node's explanation, generating it if needed
func (c *Client) EnsureContent(ctx context.Context, sessionID, nodeID string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	path := "/api/v1/sessions/" + sessionID + "/nodes/" + nodeID + "/content"
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Expand asks for prerequisite child topics of a node
func (c *Client) Expand(ctx context.Context, sessionID, nodeID, mode string) ([]queries.NodeDTO, error) {
	var out struct {
		Children []queries.NodeDTO `json:"children"`
	}
	path := "/api/v1/sessions/" + sessionID + "/nodes/" + nodeID + "/expand"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"mode": mode}, &out); err != nil {
		return nil, err
	}
	return out.Children, nil
}

// Chat sends a follow-up question about a node
func (c *Client) Chat(ctx context.Context, sessionID, nodeID, question string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	path := "/api/v1/sessions/" + sessionID + "/nodes/" + nodeID + "/chat"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"question": question}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// SyncCursors aligns the chat and graph cursors
func (c *Client) SyncCursors(ctx context.Context, sessionID, direction string) error {
	path := "/api/v1/sessions/" + sessionID + "/cursors/sync"
	return c.do(ctx, http.MethodPost, path, map[string]string{"direction": direction}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	// Successful responses use the APIResponse envelope; failures use
	// the error body written by errors.WriteHTTP.
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, string(raw))
	}

	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("%s: %s", envelope.Error.Type, envelope.Error.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}
