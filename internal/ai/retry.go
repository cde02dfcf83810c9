package ai

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// EmbedBatchWithRetry wraps EmbedBatch in bounded exponential backoff.
// Transient provider failures (429, 5xx, network) are retried up to
// maxRetries additional attempts; other 4xx responses fail immediately
// and should be treated as permanent for the document being processed.
func (c *OpenAICompatibleClient) EmbedBatchWithRetry(
	ctx context.Context,
	cfg EmbeddingConfig,
	texts []string,
	maxRetries int,
) ([][]float32, Usage, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var vectors [][]float32
	var usage Usage

	operation := func() error {
		var err error
		vectors, usage, err = c.EmbedBatch(ctx, cfg, texts)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Retryable() {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second

	err := backoff.Retry(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx),
	)
	if err != nil {
		return nil, Usage{}, err
	}
	return vectors, usage, nil
}
