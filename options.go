package command

import (
	"log/slog"
	"time"
)

// IsolationMode selects how a command's bulkhead bounds concurrency.
type IsolationMode string

const (
	// IsolationThreadPool lets a submission that finds every slot busy wait
	// in a bounded queue (PoolPolicy.MaxQueuedRequests) for a free slot.
	// There is no separate worker pool: the attempt still runs on the
	// submitting goroutine, as in semaphore mode.
	IsolationThreadPool IsolationMode = "thread"
	// IsolationSemaphore runs the attempt inline on the submitting
	// goroutine, gated by a counting semaphore.
	IsolationSemaphore IsolationMode = "semaphore"
)

// BackoffStrategy selects the retry driver's delay curve.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffConstant    BackoffStrategy = "constant"
	BackoffFibonacci   BackoffStrategy = "fibonacci"
)

// ExecutionPolicy bounds the per-attempt latency budget and selects the
// bulkhead isolation strategy.
type ExecutionPolicy struct {
	// PerAttemptTimeout is the mandatory, non-negotiable latency budget for
	// a single attempt. Default 8000ms.
	PerAttemptTimeout time.Duration
	// Isolation selects thread-pool or semaphore bulkhead mode.
	Isolation IsolationMode
	// FallbackEnabled flags whether a fallback value should apply on
	// terminal failure. This engine does not compute fallback values
	// itself; downstream callers consult this flag to decide whether to
	// substitute a default value once Execute returns an error.
	FallbackEnabled bool
}

// DefaultExecutionPolicy returns the package's documented default
// execution policy.
func DefaultExecutionPolicy() ExecutionPolicy {
	return ExecutionPolicy{
		PerAttemptTimeout: 8000 * time.Millisecond,
		Isolation:         IsolationThreadPool,
		FallbackEnabled:   false,
	}
}

// BreakerPolicy configures the circuit breaker.
type BreakerPolicy struct {
	// Enabled turns the breaker on. Forced-open/forced-closed always win
	// over the rolling-window computation when set.
	Enabled bool
	// ErrorThresholdPercent is the error-rate threshold (0-100) that trips
	// the breaker once MinRequestVolume is met.
	ErrorThresholdPercent float64
	// RollingWindow is the statistics window. While CLOSED, the breaker
	// clears all of its counts at once every RollingWindow; counts are not
	// kept per bucket and do not slide.
	RollingWindow time.Duration
	// BucketCount is carried with the policy (and bound from config) but
	// the breaker does not use it; see RollingWindow.
	BucketCount int
	// MinRequestVolume is the minimum number of events in the window
	// before the breaker will consider tripping.
	MinRequestVolume uint32
	// SleepWindow is how long the breaker stays OPEN before allowing a
	// single HALF_OPEN probe.
	SleepWindow time.Duration
	// ForcedOpen, if true, always short-circuits regardless of counters.
	ForcedOpen bool
	// ForcedClosed, if true, always allows regardless of counters.
	ForcedClosed bool
	// Classifier decides which errors count as a breaker failure. Errors
	// classified KindTimeout or KindRetryable count toward the failure
	// rate; KindNonRetryable does not.
	Classifier Classifier
	// OnStateChange is invoked (best-effort, side-effect only) whenever
	// the breaker transitions state.
	OnStateChange func(command string, from, to BreakerState)
	// Logger for breaker operations. Default slog.Default().
	Logger *slog.Logger
}

// DefaultBreakerPolicy returns the package's documented default breaker
// policy.
func DefaultBreakerPolicy() BreakerPolicy {
	return BreakerPolicy{
		Enabled:               true,
		ErrorThresholdPercent: 60,
		RollingWindow:         10000 * time.Millisecond,
		BucketCount:           10,
		MinRequestVolume:      3,
		SleepWindow:           5000 * time.Millisecond,
		Classifier:            DefaultClassifier(),
		Logger:                slog.Default(),
	}
}

// PoolPolicy bounds bulkhead concurrency.
type PoolPolicy struct {
	// MaxConcurrency is the bulkhead's slot count: the number of attempts
	// that may run at once, in either isolation mode. Default 5.
	MaxConcurrency int
	// MaxQueuedRequests bounds the thread-pool mode's request queue.
	// Ignored in semaphore mode. Default 0 (no queueing beyond
	// MaxConcurrency in-flight slots).
	MaxQueuedRequests int
	// QueueRejectionThreshold, if > 0 and less than MaxQueuedRequests,
	// rejects earlier than the hard queue capacity to leave headroom.
	QueueRejectionThreshold int
	// SmoothingRatePerSecond, if > 0, adds a token-bucket admission gate in
	// front of the slot semaphore so bursts are smoothed into a steady rate
	// instead of being admitted all at once. Zero disables smoothing.
	SmoothingRatePerSecond float64
}

// DefaultPoolPolicy returns the package's documented default pool policy.
func DefaultPoolPolicy() PoolPolicy {
	return PoolPolicy{MaxConcurrency: 5}
}

// RetryPolicy configures the retry driver.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Coerced to 1 by Builder.Build if <= 0. Default 3.
	MaxAttempts int
	// Strategy selects the backoff curve.
	Strategy BackoffStrategy
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps exponential/fibonacci growth.
	MaxDelay time.Duration
	// Multiplier controls exponential growth rate. Default 2.0.
	Multiplier float64
	// Classifier decides which errors are retryable. Consulted
	// most-specific-first.
	Classifier Classifier
	// Logger for retry operations. Default slog.Default().
	Logger *slog.Logger
}

// DefaultRetryPolicy returns the descriptor builder's documented defaults:
// exponential backoff, 500ms initial interval, 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		Strategy:     BackoffExponential,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Classifier:   DefaultClassifier(),
		Logger:       slog.Default(),
	}
}

// BreakerState mirrors gobreaker's three states under this package's own
// name, so callers never need to import gobreaker directly.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerCounts is a snapshot of a breaker's rolling counters.
type BreakerCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	TotalTimeouts        uint32
	TotalShortCircuited  uint32
	TotalRejected        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}
