package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"
)

// breaker wraps gobreaker.CircuitBreaker with per-command naming, state
// and counters translated into this package's own BreakerState and
// BreakerCounts types, so callers never need to import gobreaker
// directly.
type breaker[T any] struct {
	name   string
	policy BreakerPolicy
	cb     *gobreaker.CircuitBreaker[T]
}

func newBreaker[T any](name string, policy BreakerPolicy) *breaker[T] {
	b := &breaker[T]{name: name, policy: policy}

	classifier := policy.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    policy.RollingWindow,
		Timeout:     policy.SleepWindow,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < policy.MinRequestVolume {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio*100 >= policy.ErrorThresholdPercent
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// NonRetryable errors don't count against the failure rate.
			return classifier.Classify(err) == KindNonRetryable
		},
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		if policy.Logger != nil {
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			policy.Logger.Log(context.Background(), level, "circuit breaker state changed",
				"command", name, "from", convertGobreakerState(from).String(), "to", convertGobreakerState(to).String())
		}
		if policy.OnStateChange != nil {
			policy.OnStateChange(name, convertGobreakerState(from), convertGobreakerState(to))
		}
	}

	b.cb = gobreaker.NewCircuitBreaker[T](settings)
	return b
}

func convertGobreakerState(s gobreaker.State) BreakerState {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Execute runs fn through the breaker. When the breaker is OPEN, fn is
// never invoked and the returned error wraps ErrShortCircuited.
func (b *breaker[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	if !b.policy.Enabled {
		return fn(ctx)
	}
	if b.policy.ForcedClosed {
		return fn(ctx)
	}
	if b.policy.ForcedOpen {
		var zero T
		return zero, fmt.Errorf("%w: command %q forced open", ErrShortCircuited, b.name)
	}

	result, err := b.cb.Execute(func() (T, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: command %q: %w", ErrShortCircuited, b.name, err)
		}
		return zero, err
	}
	return result, nil
}

// State reports the breaker's current state.
func (b *breaker[T]) State() BreakerState {
	return convertGobreakerState(b.cb.State())
}

// Counts reports the breaker's current rolling counters.
func (b *breaker[T]) Counts() BreakerCounts {
	c := b.cb.Counts()
	return BreakerCounts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}
