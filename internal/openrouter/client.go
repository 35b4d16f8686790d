// Package openrouter is a generation backend for the OpenRouter
// OpenAI-compatible chat completions API.
package openrouter

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

	"github.com/MikeSquared-Agency/closer/internal/llm"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-3.5-sonnet"
	backendName    = "openrouter"
)

type Client struct {
	apiKey   string
	model    string
	baseURL  string
	siteName string
	client   *http.Client
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:   apiKey,
		model:    model,
		baseURL:  DefaultBaseURL,
		siteName: "closer",
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// SetBaseURL points the client at another OpenAI-compatible endpoint.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type response struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements llm.Generator with a single attempt.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	if c.apiKey == "" {
		return "", llm.NewError(backendName, llm.KindBackend, 0, errors.New("api key not configured"))
	}

	body, err := json.Marshal(request{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", llm.NewError(backendName, llm.KindMalformed, 0, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", llm.NewError(backendName, llm.KindTransport, 0, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", c.siteName)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", llm.NewError(backendName, llm.KindTransport, 0, fmt.Errorf("api call: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", llm.NewError(backendName, llm.KindTransport, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", llm.NewError(backendName, llm.KindForStatus(resp.StatusCode), resp.StatusCode, errors.New(strings.TrimSpace(string(respBody))))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", llm.NewError(backendName, llm.KindMalformed, resp.StatusCode, fmt.Errorf("unmarshal response: %w", err))
	}
	if out.Error != nil {
		return "", llm.NewError(backendName, llm.KindForStatus(out.Error.Code), out.Error.Code, errors.New(out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", llm.NewError(backendName, llm.KindMalformed, resp.StatusCode, errors.New("no choices returned"))
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", llm.NewError(backendName, llm.KindMalformed, resp.StatusCode, errors.New("empty completion"))
	}
	return text, nil
}
