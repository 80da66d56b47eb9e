package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client implements Completer and Embedder against an OpenAI-compatible API.
type Client struct {
	baseURL         string
	apiKey          string
	completionModel string
	embeddingModel  string
	dimensions      int
	temperature     float64
	maxRetries      int
	httpClient      *http.Client
	logger          *zap.Logger
}

// Options configures the client.
type Options struct {
	BaseURL         string
	APIKey          string
	CompletionModel string
	EmbeddingModel  string
	Dimensions      int
	Temperature     float64
	Timeout         time.Duration
	MaxRetries      int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// retryableError marks responses worth another attempt (429, 5xx, transport errors).
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// NewClient creates a new client. Zero-valued options fall back to OpenAI defaults.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = "text-embedding-3-small"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          opts.APIKey,
		completionModel: opts.CompletionModel,
		embeddingModel:  opts.EmbeddingModel,
		dimensions:      opts.Dimensions,
		temperature:     opts.Temperature,
		maxRetries:      opts.MaxRetries,
		httpClient:      &http.Client{Timeout: opts.Timeout},
		logger:          logger,
	}
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int { return c.dimensions }

// CompleteJSON sends a chat completion constrained to the request schema and returns the message content.
func (c *Client) CompleteJSON(ctx context.Context, req JSONRequest) (string, error) {
	body := chatRequest{
		Model:       c.completionModel,
		Temperature: c.temperature,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: req.SchemaName, Strict: true, Schema: req.Schema},
		}
	}

	var out chatResponse
	if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	choice := out.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return "", errors.New("completion truncated (finish_reason=length)")
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", errors.New("empty completion content")
	}
	return choice.Message.Content, nil
}

// Embed returns one embedding per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"model": c.embeddingModel,
		"input": texts,
	}
	if c.dimensions > 0 {
		body["dimensions"] = c.dimensions
	}

	var out embeddingResponse
	if err := c.post(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(out.Data), len(texts))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// post sends a JSON request with exponential backoff on retryable failures.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt - 1)
			var re *retryableError
			if errors.As(lastErr, &re) && re.retryAfter > 0 {
				delay = re.retryAfter
			}
			c.logger.Debug("retrying llm request", zap.String("path", path), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.do(ctx, path, data, out)
		if lastErr == nil {
			return nil
		}
		var re *retryableError
		if !errors.As(lastErr, &re) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, data []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryableError{err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		re := &retryableError{err: fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(payload), 300))}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			re.retryAfter = time.Duration(secs) * time.Second
		}
		return re
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(payload), 300))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func retryDelay(attempt int) time.Duration {
	base := 500 * time.Millisecond
	// exponential backoff capped at 10s
	d := base << attempt
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
