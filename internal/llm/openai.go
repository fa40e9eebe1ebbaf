package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripweaver/tripweaver/internal/types"
)

var _ Client = (*OpenAIClient)(nil)

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint with
// bearer-token auth. Structured completions use the provider's strict
// JSON-schema response format.
type OpenAIClient struct {
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAIClient(opts Options, logger *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		opts:       opts.withDefaults(),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (c *OpenAIClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.opts.APIKey}
}

func (c *OpenAIClient) baseRequest(prompt string, stream bool) map[string]any {
	return map[string]any{
		"model":                 c.opts.Model,
		"messages":              []chatMessage{{Role: "user", Content: prompt}},
		"max_completion_tokens": c.opts.MaxTokens,
		"temperature":           c.opts.Temperature,
		"top_p":                 c.opts.TopP,
		"stream":                stream,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "Complete", trace.WithAttributes(
		attribute.String("llm.model", c.opts.Model),
		attribute.Int("llm.prompt_length", len(prompt)),
	))
	defer span.End()

	var content string
	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		resp, err := postJSON(attemptCtx, c.httpClient, c.opts.BaseURL+"/chat/completions", c.headers(), c.baseRequest(prompt, false))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		content, err = readContent(resp.Body)
		return err
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "LLM completion failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	span.SetStatus(codes.Ok, "completed")
	return content, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "Stream", trace.WithAttributes(
		attribute.String("llm.model", c.opts.Model),
	))
	defer span.End()

	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		resp, err := postJSON(attemptCtx, c.httpClient, c.opts.BaseURL+"/chat/completions", c.headers(), c.baseRequest(prompt, true))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return consumeSSE(resp.Body, fn)
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "LLM stream failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream failed")
		return err
	}
	span.SetStatus(codes.Ok, "stream finished")
	return nil
}

func (c *OpenAIClient) CompleteStructured(ctx context.Context, prompt string, schema *Schema, out any) error {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "CompleteStructured", trace.WithAttributes(
		attribute.String("llm.model", c.opts.Model),
	))
	defer span.End()

	request := c.baseRequest(prompt, false)
	request["response_format"] = map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "response",
			"strict": true,
			"schema": schema.Strict(),
		},
	}

	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		resp, err := postJSON(attemptCtx, c.httpClient, c.opts.BaseURL+"/chat/completions", c.headers(), request)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		content, err := readContent(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(stripJSONFences(content)), out); err != nil {
			return types.NewLLMError(types.LLMSchemaViolation, fmt.Errorf("decoding structured response: %w", err))
		}
		return nil
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "LLM structured completion failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "structured completion failed")
		return err
	}
	span.SetStatus(codes.Ok, "completed")
	return nil
}
