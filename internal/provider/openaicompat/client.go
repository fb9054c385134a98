// Package openaicompat implements provider.Completer against any
// OpenAI-compatible chat-completions endpoint.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flemzord/threadpilot/internal/convo"
	"github.com/flemzord/threadpilot/internal/provider"
)

// maxResponseBytes bounds reads of API responses.
const maxResponseBytes = 10 << 20

var tracer = otel.Tracer("github.com/flemzord/threadpilot/internal/provider/openaicompat")

// Chat-completions wire types.

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// Client calls a chat-completions endpoint over plain HTTP.
type Client struct {
	config Config
	apiKey string
	http   *http.Client
}

// Compile-time interface guard.
var _ provider.Completer = (*Client)(nil)

// New creates a client from config. The API key is taken from config.APIKey,
// or from the environment variable named by config.APIKeyEnv.
func New(cfg Config) (*Client, error) {
	cfg.Defaults()

	apiKey := cfg.APIKey
	if apiKey == "" && cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openaicompat: no API key (set api_key or api_key_env)")
	}

	return &Client{
		config: cfg,
		apiKey: apiKey,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Complete implements provider.Completer.
func (c *Client) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	ctx, span := tracer.Start(ctx, "provider.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.config.Model),
		attribute.Int("llm.prior_turns", len(req.Turns)),
	)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	body := chatRequest{
		Model:     c.config.Model,
		Messages:  buildMessages(req),
		MaxTokens: maxTokens,
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		span.RecordError(err)
		return provider.Response{}, err
	}

	if resp.Error != nil {
		err := fmt.Errorf("openaicompat: upstream error (%s): %s", resp.Error.Type, resp.Error.Message)
		span.RecordError(err)
		return provider.Response{}, err
	}
	if len(resp.Choices) == 0 {
		return provider.Response{}, fmt.Errorf("openaicompat: response contains no choices")
	}

	return provider.Response{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// buildMessages flattens the request into the wire message list: system
// prompt first, then prior turns in order, then the new user text.
func buildMessages(req provider.Request) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Turns)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, turn := range req.Turns {
		role := "user"
		if turn.Role == convo.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Content})
	}
	return append(messages, chatMessage{Role: "user", Content: req.UserText})
}

// do sends the request and decodes the response envelope.
func (c *Client) do(ctx context.Context, body chatRequest) (*chatResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("openaicompat: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("openaicompat: read response: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("openaicompat: decode response (HTTP %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK && resp.Error == nil {
		return nil, fmt.Errorf("openaicompat: HTTP %d from upstream", httpResp.StatusCode)
	}

	return &resp, nil
}
