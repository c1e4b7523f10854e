package command

import (
	"errors"
	"fmt"

	pkgerrors "github.com/JohnPlummer/jp-go-errors"
)

// Sentinel errors making up the command failure taxonomy. Every outcome
// of Execute is classifiable as exactly one of these (or wraps one
// of them via errors.Is/errors.As).
var (
	// ErrShortCircuited is returned when the circuit breaker was open at
	// submission time; the callback was never invoked.
	ErrShortCircuited = errors.New("command: short-circuited, breaker open")

	// ErrPoolRejected is returned when the bulkhead was at capacity (thread
	// pool queue full or semaphore exhausted) and the submission could not
	// be admitted.
	ErrPoolRejected = errors.New("command: pool rejected, bulkhead at capacity")

	// ErrNoInstance is returned by a discovery-backed URIProvider when its
	// instance pool has no available instance. It is retryable.
	ErrNoInstance = errors.New("command: no available instance")

	// ErrInvalidDescriptor is returned by Builder.Build when a required
	// field is missing.
	ErrInvalidDescriptor = errors.New("command: invalid descriptor")

	// ErrCancelled is returned when the outer future/stream was cancelled
	// before the retry loop completed.
	ErrCancelled = errors.New("command: cancelled")

	// ErrMaxAttemptsExhausted wraps the last attempt's cause when every
	// permitted attempt has been made and the final one still failed.
	ErrMaxAttemptsExhausted = errors.New("command: max attempts exhausted")
)

// Kind classifies a failed attempt outcome.
type Kind int

const (
	// KindSuccess represents a completed attempt with no error. Never
	// returned by a Classifier; used only on the Event an Engine emits
	// after a successful Execute.
	KindSuccess Kind = iota
	// KindRetryable represents a transient failure eligible for another
	// attempt.
	KindRetryable
	// KindNonRetryable represents a failure that must never be retried.
	KindNonRetryable
	// KindTimeout represents an attempt that exceeded its per-attempt
	// latency budget. Retryable, but the result (if any) is discarded.
	KindTimeout
	// KindShortCircuited represents a breaker-open rejection.
	KindShortCircuited
	// KindPoolRejected represents a bulkhead-capacity rejection.
	KindPoolRejected
	// KindCancelled represents outer cancellation of the retry loop.
	KindCancelled
	// KindInvalidDescriptor represents a builder validation failure.
	KindInvalidDescriptor
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindNonRetryable:
		return "non-retryable"
	case KindTimeout:
		return "timeout"
	case KindShortCircuited:
		return "short-circuited"
	case KindPoolRejected:
		return "pool-rejected"
	case KindCancelled:
		return "cancelled"
	case KindInvalidDescriptor:
		return "invalid-descriptor"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps a cause with the Kind the retry loop should treat
// it as. Command callbacks may return one of these directly to force a
// classification instead of relying on the descriptor's Classifier.
type ClassifiedError struct {
	Cause error
	Kind  Kind
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// NonRetryable wraps err so the retry driver aborts immediately regardless
// of attempts remaining.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Cause: err, Kind: KindNonRetryable}
}

// Retryable wraps err so the retry driver schedules another attempt (if
// any remain).
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Cause: err, Kind: KindRetryable}
}

// Classifier determines how a failed attempt's error should be treated.
// The default classifier's rule is: NonRetryable -> false, anything
// else -> true, with ClassifiedError and jp-go-errors sentinels
// consulted first, most-specific-first.
type Classifier interface {
	Classify(err error) Kind
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) Kind

func (f ClassifierFunc) Classify(err error) Kind { return f(err) }

// DefaultClassifier returns the standard classification: sentinel errors
// from this package and jp-go-errors are consulted first (most specific),
// then ClassifiedError wrappers, then the default "retryable" rule.
func DefaultClassifier() Classifier {
	return ClassifierFunc(defaultClassify)
}

func defaultClassify(err error) Kind {
	if err == nil {
		return KindRetryable
	}

	switch {
	case errors.Is(err, ErrShortCircuited):
		return KindShortCircuited
	case errors.Is(err, ErrPoolRejected):
		return KindPoolRejected
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrInvalidDescriptor):
		return KindInvalidDescriptor
	case errors.Is(err, ErrNoInstance):
		return KindRetryable
	case pkgerrors.IsTimeout(err):
		return KindTimeout
	case errors.Is(err, pkgerrors.ErrRateLimited):
		return KindRetryable
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind
	}

	// NonRetryable -> false is never reached here since NonRetryable
	// errors are wrapped in ClassifiedError above; anything else is
	// treated as retryable.
	return KindRetryable
}

// rootCause unwraps err to its innermost cause, for use in log messages.
func rootCause(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}
