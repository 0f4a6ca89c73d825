// Package openrouter generates pitches through OpenRouter's OpenAI-compatible
// API using the go-openai SDK.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"pitchcraft/internal/integrations/paramstore"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "google/gemini-2.0-flash-001"
	defaultTokens  = 4096
)

// StatusError carries the upstream HTTP status so callers can tell rate
// limiting apart from other failures.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter: upstream status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	httpClient  *http.Client
	tokens      paramstore.TokenGetter
	paramPrefix string
	staticKey   string

	once   sync.Once
	client *openai.Client
	err    error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if u := strings.TrimSpace(baseURL); u != "" {
			c.baseURL = u
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets a fixed key and skips the parameter store lookup.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

// NewClient creates a Client. Without WithAPIKey the key is read from
// paramPrefix+"/openrouter-token" on first use.
func NewClient(tokens paramstore.TokenGetter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     DefaultBaseURL,
		model:       defaultModel,
		maxTokens:   defaultTokens,
		tokens:      tokens,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey != "" {
		return c, nil
	}
	if c.tokens == nil {
		return nil, errors.New("openrouter: token getter must not be nil")
	}
	if c.paramPrefix == "" {
		return nil, errors.New("openrouter: parameter prefix must not be empty")
	}
	return c, nil
}

func (c *Client) Name() string { return "openrouter" }

func (c *Client) sdk(ctx context.Context) (*openai.Client, error) {
	c.once.Do(func() {
		key := c.staticKey
		if key == "" {
			var err error
			key, err = c.tokens.GetToken(ctx, c.paramPrefix+"/openrouter-token")
			if err != nil {
				c.err = fmt.Errorf("openrouter: fetch token from paramstore: %w", err)
				return
			}
		}
		cfg := openai.DefaultConfig(key)
		cfg.BaseURL = c.baseURL
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.client = openai.NewClientWithConfig(cfg)
	})
	return c.client, c.err
}

// Generate sends prompt as a single user message and returns the first
// choice. No choices yields an empty string.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return fmt.Errorf("openrouter: request failed: %w", err)
}
