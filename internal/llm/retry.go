package llm

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tripweaver/tripweaver/internal/types"
)

const maxBackoffInterval = 30 * time.Second

// newBackOff builds the per-request retry policy: 1s, 2s, 4s, ... capped at
// maxBackoffInterval, bounded by maxRetries attempts, aborted on ctx done.
func newBackOff(ctx context.Context, maxRetries int) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = maxBackoffInterval
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	retries := maxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
}

// classify converts a raw failure into the tagged LLM error taxonomy and
// decides whether another attempt may help.
func classify(ctx context.Context, err error) (*types.LLMError, bool) {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.NewLLMError(types.LLMTimeout, err), false
		}
		return types.NewLLMError(types.LLMCancelled, err), false
	}

	var llmErr *types.LLMError
	if errors.As(err, &llmErr) {
		switch llmErr.Kind {
		case types.LLMUpstream5xx, types.LLMSchemaViolation, types.LLMTimeout:
			return llmErr, true
		default:
			return llmErr, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return types.NewLLMError(types.LLMTimeout, err), true
		}
		return types.NewLLMError(types.LLMUpstream5xx, err), true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewLLMError(types.LLMTimeout, err), true
	}

	// Treat unknown transport failures as retryable connection errors.
	return types.NewLLMError(types.LLMUpstream5xx, err), true
}

// withRetry runs op under the retry policy, translating errors through the
// taxonomy. Permanent failures and exhausted budgets both surface as the
// classified *types.LLMError.
func withRetry(ctx context.Context, maxRetries int, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		tagged, retryable := classify(ctx, err)
		if !retryable {
			return backoff.Permanent(tagged)
		}
		return tagged
	}, newBackOff(ctx, maxRetries))
}
