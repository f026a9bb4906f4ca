// Package gemini generates persona replies with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/omkar861856/agentic-honeypot32/internal/integrations/paramstore"
)

const (
	defaultModel      = "gemini-2.0-flash"
	systemInstruction = "You play a scam-baiting persona. Respond with a single JSON object and nothing else."
)

// StatusError carries the HTTP status of a failed Gemini call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// contentGenerator is satisfied by (*genai.Client).Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	model       string
	temperature float32
	getter      paramstore.Getter
	paramPrefix string
	staticKey   string
	connect     func(ctx context.Context, apiKey string) (contentGenerator, error)

	mu  sync.Mutex
	gen contentGenerator
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithAPIKey supplies the key directly instead of reading it from SSM.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

// NewClient creates a Client. Unless WithAPIKey is given, the key is read from
// SSM at <paramPrefix>/gemini-token on first use.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		model:       defaultModel,
		temperature: 0.7,
		getter:      ps,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
		connect:     connectGenAI,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey == "" && (c.getter == nil || c.paramPrefix == "") {
		return nil, errors.New("gemini: an API key or a paramstore getter with prefix is required")
	}
	return c, nil
}

func connectGenAI(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client.Models, nil
}

// resolve connects on first success; a failed key lookup or connect is retried
// on the next call.
func (c *Client) resolve(ctx context.Context) (contentGenerator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != nil {
		return c.gen, nil
	}
	key := c.staticKey
	if key == "" {
		var err error
		key, err = paramstore.Secret(ctx, c.getter, paramstore.Join(c.paramPrefix, "gemini-token"))
		if err != nil {
			return nil, fmt.Errorf("gemini: resolve api key: %w", err)
		}
	}
	gen, err := c.connect(ctx, key)
	if err != nil {
		return nil, err
	}
	c.gen = gen
	return gen, nil
}

// Generate asks the model for a JSON reply to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("gemini: prompt must not be empty")
	}
	gen, err := c.resolve(ctx)
	if err != nil {
		return "", err
	}

	resp, err := gen.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(c.temperature),
	})
	if err != nil {
		return "", wrapError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}
	return resp.Text(), nil
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return fmt.Errorf("gemini: generate content: %w", &StatusError{StatusCode: apiErr.Code, Message: apiErr.Message})
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return fmt.Errorf("gemini: generate content: %w", &StatusError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message})
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}
