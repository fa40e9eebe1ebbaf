package llm

import (
	"context"
	"errors"
	"time"
)

// ErrStopStream can be returned from a stream callback to stop consuming
// chunks early without surfacing an error to the caller.
var ErrStopStream = errors.New("stop stream")

// Client is the uniform contract over LLM providers. All calls honor ctx
// cancellation. Complete and CompleteStructured retry transient failures
// internally; errors escape only once the retry budget is spent. Stream is
// retried by the HTTP providers; the Gemini client streams in a single
// attempt.
type Client interface {
	// Complete returns the whole response for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// Stream invokes fn for every response chunk as it arrives. The stream
	// is finite and not restartable; returning ErrStopStream from fn aborts
	// the underlying request without error.
	Stream(ctx context.Context, prompt string, fn func(chunk string) error) error

	// CompleteStructured asks the provider for JSON conforming to schema and
	// unmarshals the response into out. Malformed payloads are retried and
	// eventually surfaced as a schema-violation error.
	CompleteStructured(ctx context.Context, prompt string, schema *Schema, out any) error
}

// Options carries provider-independent client settings.
type Options struct {
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
	TopP        float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	return o
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
