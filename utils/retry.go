package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// Retry 固定间隔重试，最多执行 attempts 次；onRetry 可为 nil
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, onRetry func(err error, wait time.Duration)) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)
	if onRetry == nil {
		return backoff.Retry(fn, b)
	}
	return backoff.RetryNotify(fn, b, onRetry)
}
