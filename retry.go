package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sethvargo/go-retry"
)

// retryDriver runs the attempt loop for a single command invocation:
// resolve a backoff curve from a RetryPolicy, then repeatedly call fn
// until it succeeds, exhausts MaxAttempts, or fn's error classifies as
// non-retryable. Kept as its own type, separate from the breaker and
// bulkhead, so the engine can interleave cache and breaker steps between
// attempts.
type retryDriver[T any] struct {
	policy RetryPolicy
}

func newRetryDriver[T any](policy RetryPolicy) *retryDriver[T] {
	return &retryDriver[T]{policy: policy}
}

// backoff builds a go-retry Backoff from the policy's strategy, applying
// MaxDelay capping and a fixed jitter percentage to avoid thundering-herd
// retries against a recovering dependency.
func (d *retryDriver[T]) backoff() (retry.Backoff, error) {
	var b retry.Backoff

	switch d.policy.Strategy {
	case BackoffConstant:
		b = retry.NewConstant(d.policy.InitialDelay)
	case BackoffFibonacci:
		b = retry.NewFibonacci(d.policy.InitialDelay)
	case BackoffExponential, "":
		b = retry.NewExponential(d.policy.InitialDelay)
		if m := d.policy.Multiplier; m > 0 && m != 2 {
			// go-retry's exponential curve always doubles; any other
			// multiplier is applied here instead.
			delay := float64(d.policy.InitialDelay)
			b = retry.BackoffFunc(func() (time.Duration, bool) {
				cur := time.Duration(delay)
				if next := delay * m; next < math.MaxInt64/2 {
					delay = next
				}
				return cur, false
			})
		}
	default:
		return nil, fmt.Errorf("retry: unknown backoff strategy %q", d.policy.Strategy)
	}

	if d.policy.MaxDelay > 0 {
		b = retry.WithCappedDuration(d.policy.MaxDelay, b)
	}
	b = retry.WithJitterPercent(10, b)
	if d.policy.MaxAttempts > 0 {
		// One retry.Do invocation of fn is one attempt; MaxAttempts counts
		// the first try plus retries, so WithMaxRetries takes MaxAttempts-1.
		b = retry.WithMaxRetries(uint64(d.policy.MaxAttempts-1), b)
	}

	return b, nil
}

// attemptFunc performs one attempt, given the 1-based attempt number.
type attemptFunc[T any] func(ctx context.Context, attempt int) (T, error)

// Run executes fn under the driver's backoff policy. commandName is used
// only for log context. The returned error, on exhaustion, wraps the
// last attempt's error together with ErrMaxAttemptsExhausted; when ctx is
// cancelled before the loop completes, it wraps ErrCancelled, ctx's error
// and the last attempt's error.
func (d *retryDriver[T]) Run(ctx context.Context, commandName string, fn attemptFunc[T]) (T, error) {
	var zero T

	b, err := d.backoff()
	if err != nil {
		return zero, err
	}

	logger := d.policy.Logger
	classifier := d.policy.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	attempt := 0
	var result T
	var lastErr error

	runErr := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		res, err := fn(ctx, attempt)
		if err == nil {
			result = res
			return nil
		}
		lastErr = err

		kind := classifier.Classify(err)
		if kind != KindRetryable && kind != KindTimeout {
			if logger != nil {
				logger.Warn("command attempt failed, not retrying",
					"command", commandName, "attempt", attempt, "kind", kind.String(), "cause", rootCause(err))
			}
			return err
		}
		if attempt >= d.policy.MaxAttempts {
			return err
		}

		if logger != nil {
			logger.Warn("command attempt failed, retrying",
				"command", commandName, "attempt", attempt, "kind", kind.String(), "error", err)
		}
		return retry.RetryableError(err)
	})

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(runErr, ctxErr) {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w: %w", ErrCancelled, ctxErr, lastErr)
			}
			return zero, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		if lastErr == nil {
			lastErr = runErr
		}
		if attempt >= d.policy.MaxAttempts {
			if logger != nil {
				logger.Warn("command attempts exhausted",
					"command", commandName, "attempts", attempt, "cause", rootCause(lastErr))
			}
			return zero, fmt.Errorf("%w: %w", ErrMaxAttemptsExhausted, lastErr)
		}
		return zero, lastErr
	}

	return result, nil
}
