package command

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestRetryDriverSucceedsWithoutRetrying(t *testing.T) {
	driver := newRetryDriver[int](RetryPolicy{
		MaxAttempts:  3,
		Strategy:     BackoffConstant,
		InitialDelay: time.Millisecond,
		Classifier:   DefaultClassifier(),
		Logger:       slog.Default(),
	})

	calls := 0
	result, err := driver.Run(context.Background(), "test", func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestRetryDriverRetriesRetryableFailures(t *testing.T) {
	driver := newRetryDriver[string](RetryPolicy{
		MaxAttempts:  4,
		Strategy:     BackoffConstant,
		InitialDelay: time.Millisecond,
		Classifier:   DefaultClassifier(),
		Logger:       slog.Default(),
	})

	calls := 0
	result, err := driver.Run(context.Background(), "test", func(ctx context.Context, attempt int) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "done" {
		t.Fatalf("expected 'done', got %q", result)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

func TestRetryDriverStopsOnNonRetryable(t *testing.T) {
	driver := newRetryDriver[string](RetryPolicy{
		MaxAttempts:  5,
		Strategy:     BackoffConstant,
		InitialDelay: time.Millisecond,
		Classifier:   DefaultClassifier(),
		Logger:       slog.Default(),
	})

	calls := 0
	_, err := driver.Run(context.Background(), "test", func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", NonRetryable(errors.New("fatal"))
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable failure, got %d", calls)
	}
}

func TestRetryDriverExhaustsAttempts(t *testing.T) {
	driver := newRetryDriver[string](RetryPolicy{
		MaxAttempts:  3,
		Strategy:     BackoffConstant,
		InitialDelay: time.Millisecond,
		Classifier:   DefaultClassifier(),
		Logger:       slog.Default(),
	})

	calls := 0
	_, err := driver.Run(context.Background(), "test", func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrMaxAttemptsExhausted) {
		t.Fatalf("expected ErrMaxAttemptsExhausted, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", calls)
	}
}

func TestRetryDriverHonorsCancellation(t *testing.T) {
	driver := newRetryDriver[string](RetryPolicy{
		MaxAttempts:  10,
		Strategy:     BackoffConstant,
		InitialDelay: 50 * time.Millisecond,
		Classifier:   DefaultClassifier(),
		Logger:       slog.Default(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := driver.Run(ctx, "test", func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls == 0 {
		t.Fatal("expected at least one attempt before cancellation")
	}
}
