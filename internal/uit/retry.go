package uit

import (
	"context"
	"time"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.uber.org/zap"
)

const (
	DefaultRetries    = 1
	DefaultRetryDelay = time.Second
)

type RetryPolicy struct {
	Retries int
	Delay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: DefaultRetries, Delay: DefaultRetryDelay}
}

// Retry runs fn until it succeeds, fails with a non-transient error, or policy.Retries extra
// attempts have been spent on transient faults. The delay is waited before every retry.
func Retry[T any](ctx context.Context, logger *zap.Logger, policy RetryPolicy, method string, args []any, fn func(context.Context) (T, error)) (T, error) {
	logger = logutil.WithContext(ctx, logger)

	var zero T
	var lastErr error
	attempts := 0
	for attempts <= policy.Retries {
		result, err := fn(ctx)
		attempts++
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempts > policy.Retries {
			break
		}

		logger.Info("transient routing fault detected, retrying",
			zap.String("method", method),
			zap.Int("remaining", policy.Retries-attempts+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.Delay):
		}
	}

	return zero, &MaxRetriesError{Method: method, Args: args, Attempts: attempts, Err: lastErr}
}
