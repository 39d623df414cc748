// Package llm provides HTTP clients for the OpenAI-compatible generation
// and embedding endpoints. Both are hard dependencies of the miss path:
// failures surface as upstream errors, never as silent fallbacks.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/answercache/answercache/pkg/observability"
)

// Config holds configuration for the backend client.
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Client talks to an OpenAI-compatible API. Embedding calls are retried
// with exponential backoff; completion calls run behind a circuit breaker
// so a failing backend sheds load quickly.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     observability.Logger
}

// NewClient creates a backend client. Defaults are applied for every field
// except the API key, whose absence is reported by Configured and rejected
// at call time.
func NewClient(config Config, logger observability.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-3-small"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "llm-completions",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger.WithPrefix("llm-client"),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed converts text to an embedding vector. Transient failures (network
// errors, 429, 5xx) are retried with exponential backoff; client errors are
// permanent.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.RandomizationFactor = 0.5
	b.Multiplier = 1.5
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	var embedding []float32
	operation := func() error {
		reqBody := embeddingRequest{
			Input: text,
			Model: c.config.EmbeddingModel,
		}

		body, status, err := c.post(ctx, "/embeddings", reqBody)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if status != http.StatusOK {
			err := fmt.Errorf("%w: embeddings status %d: %s", ErrUpstream, status, truncate(body, 200))
			if retryableStatus(status) {
				return err
			}
			return backoff.Permanent(err)
		}

		var resp embeddingResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: parse embeddings response: %v", ErrUpstream, err))
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("%w: no embedding data in response", ErrUpstream))
		}

		embedding = resp.Data[0].Embedding
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return embedding, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends a single-turn prompt to the chat completions endpoint and
// returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		reqBody := chatRequest{
			Model: c.config.ChatModel,
			Messages: []chatMessage{
				{Role: "user", Content: prompt},
			},
		}

		body, status, err := c.post(ctx, "/chat/completions", reqBody)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: completions status %d: %s", ErrUpstream, status, truncate(body, 200))
		}

		var resp chatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: parse completions response: %v", ErrUpstream, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("%w: no choices in response", ErrUpstream)
		}

		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return "", err
	}

	return result.(string), nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
