// Package gemini is a focused client for the Gemini generateContent endpoint.
package gemini

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
	"sync"
	"time"

	"pitchcraft/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second
)

var ErrMissingAPIKey = errors.New("gemini: API key is not configured")

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
	Error *errorPayload `json:"error,omitempty"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// HTTPStatusError captures non-2xx upstream responses without a provider
// error payload. URL never contains the API key.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// APIError is the error payload the provider reports in the response body.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: API error %d (%s): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) HTTPStatusCode() int {
	if e.Code != 0 {
		return e.Code
	}
	return e.StatusCode
}

// Client sends single-prompt generation requests.
type Client struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	tokens      paramstore.TokenGetter
	paramPrefix string
	staticKey   string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
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

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

// WithAPIKey sets a fixed key and skips the parameter store lookup.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

// NewClient creates a Client. Unless WithAPIKey is given, the key is read
// from tokens at paramPrefix+"/gemini-token" on first use and reused for the
// lifetime of the process. A client without any key source still constructs;
// Generate then reports ErrMissingAPIKey.
func NewClient(tokens paramstore.TokenGetter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		tokens:      tokens,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey == "" && c.tokens != nil && c.paramPrefix == "" {
		return nil, errors.New("gemini: parameter prefix must not be empty")
	}
	return c, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.staticKey != "" {
		return c.staticKey, nil
	}
	if c.tokens == nil {
		return "", ErrMissingAPIKey
	}
	c.keyOnce.Do(func() {
		key, err := c.tokens.GetToken(ctx, c.paramPrefix+"/gemini-token")
		if err != nil {
			c.keyErr = fmt.Errorf("%w: %v", ErrMissingAPIKey, err)
			return
		}
		c.apiKey = key
	})
	if c.keyErr != nil {
		return "", c.keyErr
	}
	return c.apiKey, nil
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/%s:generateContent", base, c.model)
}

// Generate sends prompt and returns candidates[0].content.parts[0].text. A
// response without that path yields an empty string and no error.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := c.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(apiKey), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req, endpoint)
	if err != nil {
		return "", err
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if payload.Error != nil {
		return "", &APIError{StatusCode: http.StatusOK, Code: payload.Error.Code, Message: payload.Error.Message, Status: payload.Error.Status}
	}
	return firstText(payload), nil
}

func firstText(payload generateResponse) string {
	if len(payload.Candidates) == 0 {
		return ""
	}
	cand := payload.Candidates[0].Content
	if cand == nil || len(cand.Parts) == 0 {
		return ""
	}
	return cand.Parts[0].Text
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		// *url.Error would echo the query string, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("gemini: request to %s failed: %w", endpoint, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		var payload generateResponse
		if json.Unmarshal(buf, &payload) == nil && payload.Error != nil {
			return nil, &APIError{
				StatusCode: res.StatusCode,
				Code:       payload.Error.Code,
				Message:    payload.Error.Message,
				Status:     payload.Error.Status,
			}
		}
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response body: %w", err)
	}
	return buf, nil
}
