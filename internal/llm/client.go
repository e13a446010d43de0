// Package llm provides the reasoning-service clients trainers consult for
// decisions, the decision prompts, and strict parsing of their replies.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-haiku-4-5-20251001"
)

// ErrNotConfigured is returned when no credentials are available.
var ErrNotConfigured = errors.New("llm: client not configured")

// ErrRateLimited is returned when the local per-minute budget is spent.
var ErrRateLimited = errors.New("llm: local rate limit exceeded")

// StatusError is a non-success reply from a reasoning service.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Reasoner completes a system+user prompt pair.
type Reasoner interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Client wraps the Anthropic Messages API.
type Client struct {
	apiKey     string
	url        string
	model      string
	maxTokens  int
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.url = url }
}

// WithModel overrides the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRateLimit sets the per-minute call budget. Zero disables the limit.
func WithRateLimit(perMin int) ClientOption {
	return func(c *Client) { c.maxPerMin = perMin }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an Anthropic client.
// Returns nil if apiKey is empty (reasoning disabled).
func NewClient(apiKey string, opts ...ClientOption) *Client {
	if apiKey == "" {
		return nil
	}
	c := &Client{
		apiKey:    apiKey,
		url:       apiURL,
		model:     defaultModel,
		maxTokens: 300,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxPerMin: 120,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Name identifies the backend in logs and metrics.
func (c *Client) Name() string { return "anthropic" }

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the API request body.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// response is the API response body.
type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a prompt and returns the response text. Non-200 replies
// yield a *StatusError.
func (c *Client) Complete(ctx context.Context, system, userPrompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	if !c.allow() {
		return "", fmt.Errorf("%w (%d calls/min)", ErrRateLimited, c.maxPerMin)
	}

	req := request{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: c.Name(), Code: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("anthropic call",
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)

	return apiResp.Content[0].Text, nil
}

func (c *Client) allow() bool {
	if c.maxPerMin <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return false
	}
	c.callCount++
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
