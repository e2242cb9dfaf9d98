package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/history"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/sse"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
)

// errNoTerminal is returned when a stream ends without done or error.
var errNoTerminal = errors.New("stream ended before the reply finished")

// apiClient talks to a running syntra server.
type apiClient struct {
	base   string
	token  string
	client *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, client: http.DefaultClient}
}

type streamRequest struct {
	Messages   []history.Prior `json:"messages"`
	NewMessage string          `json:"newMessage"`
	ChatID     string          `json:"chatId,omitempty"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp, nil
}

func responseError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// history fetches a chat's messages as prior turns for a new request.
func (c *apiClient) history(ctx context.Context, chatID string) ([]history.Prior, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var msgs []store.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	prior := make([]history.Prior, 0, len(msgs))
	for _, m := range msgs {
		if history.ValidateRole(string(m.Role)) != nil {
			continue
		}
		prior = append(prior, history.Prior{Role: string(m.Role), Content: m.Content})
	}
	return prior, nil
}

// stream posts req and hands each decoded event to handle. It returns the chat
// id reported by the server.
func (c *apiClient) stream(ctx context.Context, req streamRequest, handle func(sse.Event) error) (string, error) {
	if req.Messages == nil {
		req.Messages = []history.Prior{}
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/chat/stream", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	chatID := resp.Header.Get("X-Chat-ID")

	dec := sse.NewDecoder(resp.Body)
	for {
		event, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return chatID, errNoTerminal
		}
		if err != nil {
			return chatID, fmt.Errorf("read stream: %w", err)
		}
		if err := handle(event); err != nil {
			return chatID, err
		}
		if event.Type.Terminal() {
			return chatID, nil
		}
	}
}
