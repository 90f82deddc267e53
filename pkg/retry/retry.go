// Package retry runs collaborator operations under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted wraps the last error once the retry budget is spent.
var ErrExhausted = errors.New("retry budget exhausted")

// Permanent marks err as non-retryable; Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context is
// cancelled, or MaxRetries retries have failed.
func Do(ctx context.Context, cfg Config, logger *slog.Logger, op func() error) error {
	_, err := DoWithData(ctx, cfg, logger, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](ctx context.Context, cfg Config, logger *slog.Logger, op func() (T, error)) (T, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(cfg.backOff(), uint64(cfg.MaxRetries)),
		ctx,
	)

	attempts := 0
	permanent := false
	result, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempts++
			v, err := op()
			var perr *backoff.PermanentError
			if errors.As(err, &perr) {
				permanent = true
			}
			return v, err
		},
		policy,
		func(err error, wait time.Duration) {
			logger.Warn("operation failed, retrying", "attempt", attempts, "wait", wait, "error", err)
		},
	)
	if err != nil {
		if permanent || ctx.Err() != nil {
			return result, err
		}
		return result, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	return result, nil
}
