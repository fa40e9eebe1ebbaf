package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/tripweaver/tripweaver/internal/types"
)

var _ Client = (*GeminiClient)(nil)

// GeminiClient adapts the Gemini SDK to the same contract as the HTTP
// providers. Structured completions use the SDK's response-schema mode.
type GeminiClient struct {
	client *genai.Client
	opts   Options
	logger *slog.Logger
}

func NewGeminiClient(ctx context.Context, opts Options, logger *slog.Logger) (*GeminiClient, error) {
	opts = opts.withDefaults()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, opts: opts, logger: logger}, nil
}

func (c *GeminiClient) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.opts.Temperature)),
		TopP:            genai.Ptr(float32(c.opts.TopP)),
		MaxOutputTokens: int32(c.opts.MaxTokens),
	}
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "Complete", trace.WithAttributes(
		attribute.String("llm.model", c.opts.Model),
		attribute.Int("llm.prompt_length", len(prompt)),
	))
	defer span.End()

	var content string
	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		resp, err := c.client.Models.GenerateContent(attemptCtx, c.opts.Model, genai.Text(prompt), c.generateConfig())
		if err != nil {
			return err
		}
		content = resp.Text()
		return nil
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

func (c *GeminiClient) Stream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "Stream", trace.WithAttributes(
		attribute.String("llm.model", c.opts.Model),
	))
	defer span.End()

	streamCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	for resp, err := range c.client.Models.GenerateContentStream(streamCtx, c.opts.Model, genai.Text(prompt), c.generateConfig()) {
		if err != nil {
			tagged, _ := classify(streamCtx, err)
			c.logger.ErrorContext(ctx, "LLM stream failed", slog.Any("error", tagged))
			span.RecordError(tagged)
			span.SetStatus(codes.Error, "stream failed")
			return tagged
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		if err := fn(chunk); err != nil {
			if err == ErrStopStream {
				break
			}
			span.RecordError(err)
			return err
		}
	}
	span.SetStatus(codes.Ok, "stream finished")
	return nil
}

func (c *GeminiClient) CompleteStructured(ctx context.Context, prompt string, schema *Schema, out any) error {
	ctx, span := otel.Tracer("LLMClient").Start(ctx, "CompleteStructured", trace.WithAttributes(
		attribute.String("llm.model", c.opts.Model),
	))
	defer span.End()

	cfg := c.generateConfig()
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = toGenaiSchema(schema.Strict())

	err := withRetry(ctx, c.opts.MaxRetries, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		resp, err := c.client.Models.GenerateContent(attemptCtx, c.opts.Model, genai.Text(prompt), cfg)
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(stripJSONFences(resp.Text())), out); err != nil {
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

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGenaiSchema(s.Items),
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	}
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = toGenaiSchema(v)
		}
	}
	return out
}
