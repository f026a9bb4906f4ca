// Package mem0 is a MemoryGateway backed by the Mem0 hosted memory API.
package mem0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
	"github.com/omkar861856/agentic-honeypot32/internal/integrations/paramstore"
)

const defaultBaseURL = "https://api.mem0.ai"

type searchRequest struct {
	Query   string            `json:"query"`
	UserID  string            `json:"user_id"`
	Filters map[string]string `json:"filters,omitempty"`
}

type addRequest struct {
	Messages []domain.MemoryMessage `json:"messages"`
	UserID   string                 `json:"user_id"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

// HTTPStatusError captures non-2xx responses from Mem0.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("mem0: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      paramstore.Getter
	paramPrefix string
	staticKey   string

	mu     sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

// NewClient creates a Client. Unless WithAPIKey is given, the key is read from
// SSM at <paramPrefix>/mem0-token on first use.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey == "" && (c.getter == nil || c.paramPrefix == "") {
		return nil, errors.New("mem0: an API key or a paramstore getter with prefix is required")
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.staticKey != "" {
		return c.staticKey, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := paramstore.Secret(ctx, c.getter, paramstore.Join(c.paramPrefix, "mem0-token"))
	if err != nil {
		return "", fmt.Errorf("mem0: resolve api key: %w", err)
	}
	c.apiKey = key
	return key, nil
}

func endpoint(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + path
}

// Search returns memories for the conversation matching query. The response
// may be a bare array or an object with a "results" field.
func (c *Client) Search(ctx context.Context, query, conversationID string) ([]domain.MemoryEntry, error) {
	raw, err := c.post(ctx, "/v1/memories/search/", searchRequest{
		Query:   query,
		UserID:  conversationID,
		Filters: map[string]string{"user_id": conversationID},
	})
	if err != nil {
		return nil, fmt.Errorf("mem0: search: %w", err)
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("mem0: search: %w", err)
	}
	return entries, nil
}

// Add appends messages under the conversation. The returned ids are ignored.
func (c *Client) Add(ctx context.Context, conversationID string, messages []domain.MemoryMessage, metadata map[string]string) error {
	if len(messages) == 0 {
		return errors.New("mem0: add: no messages")
	}
	if _, err := c.post(ctx, "/v1/memories/", addRequest{
		Messages: messages,
		UserID:   conversationID,
		Metadata: metadata,
	}); err != nil {
		return fmt.Errorf("mem0: add: %w", err)
	}
	return nil
}

func decodeEntries(raw []byte) ([]domain.MemoryEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var entries []domain.MemoryEntry
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return entries, nil
	}
	var wrapped struct {
		Results []domain.MemoryEntry `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return wrapped.Results, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := endpoint(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
