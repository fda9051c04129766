// Package llm wraps a langchaingo model with retry and JSON handling used by
// every LLM-backed stage of the pipeline.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/mikeboe/research-pipeline/pkg/pipeline"
)

// DefaultMaxRetries bounds completion retries on empty or malformed
// responses.
const DefaultMaxRetries = 3

// Client wraps an llms.Model with structured-output retry logic.
type Client struct {
	Model        llms.Model
	DefaultModel string
	MaxRetries   int
	Logger       *slog.Logger
}

// NewGoogleClient builds a Client backed by the Google AI API.
func NewGoogleClient(ctx context.Context, apiKey, defaultModel string) (*Client, error) {
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(defaultModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init Google AI client: %w", err)
	}
	return NewClient(model, defaultModel), nil
}

// NewClient builds a Client around an existing model. Useful for tests.
func NewClient(model llms.Model, defaultModel string) *Client {
	return &Client{
		Model:        model,
		DefaultModel: defaultModel,
		MaxRetries:   DefaultMaxRetries,
		Logger:       slog.Default(),
	}
}

// Complete generates a completion for a single prompt.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...func(*pipeline.CompletionOptions)) (string, error) {
	o := c.options(opts)

	callOpts := []llms.CallOption{
		llms.WithModel(o.Model),
		llms.WithTemperature(o.Temperature),
	}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}
	if o.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := c.Model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// CompleteJSON generates a completion in JSON mode and unmarshals it into
// out. Empty or malformed responses are retried up to MaxRetries times with
// linear backoff before returning a terminal error.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, out any, opts ...func(*pipeline.CompletionOptions)) error {
	opts = append(opts, pipeline.WithJSONMode())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries(); attempt++ {
		if attempt > 0 {
			c.Logger.Warn("Retrying LLM JSON generation", "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-time.After(time.Second * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		content, err := c.Complete(ctx, prompt, opts...)
		if err != nil {
			lastErr = err
			continue
		}
		if content == "" {
			lastErr = fmt.Errorf("llm returned empty response")
			continue
		}

		if err := ExtractJSON(content, out); err != nil {
			lastErr = fmt.Errorf("json extraction failed: %w", err)
			continue
		}
		return nil
	}

	return fmt.Errorf("json completion failed after %d attempts: %w", c.maxRetries(), lastErr)
}

func (c *Client) options(opts []func(*pipeline.CompletionOptions)) pipeline.CompletionOptions {
	o := pipeline.CompletionOptions{
		Model:       c.DefaultModel,
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Model == "" {
		o.Model = c.DefaultModel
	}
	return o
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultMaxRetries
}
