// Package llm is a client for the Perplexity chat completion API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.perplexity.ai"

	maxTokens   = 4000
	temperature = 0.2
	topP        = 0.9

	maxDetailBytes = 64 << 10
)

// Client sends completion requests. The API key is supplied per call since
// each session logs in with its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the public Perplexity endpoint.
func NewClient() *Client {
	return &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithTimeout bounds each request. Zero means no timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.httpClient.Timeout = d
	return c
}

// Complete sends messages to model and returns the assistant reply.
// Every failure is an *Error. Nothing is retried.
func (c *Client) Complete(ctx context.Context, messages []Message, model, apiKey string) (string, error) {
	if apiKey == "" {
		return "", &Error{Kind: Unauthenticated, Detail: "no API key"}
	}

	body, err := json.Marshal(ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: NetworkError, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: NetworkError, Err: err}
		}
		return "", &Error{Kind: ServerError, Status: resp.StatusCode, Detail: "decoding response: " + err.Error()}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", &Error{Kind: ServerError, Status: resp.StatusCode, Detail: "response has no message content"}
	}
	return *parsed.Choices[0].Message.Content, nil
}

func statusError(status int, detail string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: Unauthenticated, Status: status, Detail: detail}
	case status >= 400 && status < 500:
		return &Error{Kind: BadRequest, Status: status, Detail: detail}
	default:
		return &Error{Kind: ServerError, Status: status, Detail: detail}
	}
}
