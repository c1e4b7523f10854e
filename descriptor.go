package command

import (
	"context"
	"fmt"
	"log/slog"
)

// RemoteCallback performs the actual remote call for one attempt. It
// receives the shared Context and the base URI resolved by the
// descriptor's URIProvider for this attempt.
type RemoteCallback[T any] func(ctx context.Context, cmdCtx *Context, baseURI string) (T, error)

// CacheResult distinguishes an absent-miss from a present-value (which
// may itself hold a T representing "no value", e.g. a cached negative
// lookup), so a cached "no value" is never confused with there having
// been no entry at all. A get-hook's veto of a hit is reported as a miss.
type CacheResult[T any] struct {
	present bool
	value   T
}

// CacheHit wraps v as a present cache result.
func CacheHit[T any](v T) CacheResult[T] { return CacheResult[T]{present: true, value: v} }

// CacheMiss returns the absent-miss cache result.
func CacheMiss[T any]() CacheResult[T] { return CacheResult[T]{} }

// Present reports whether this result represents a hit.
func (r CacheResult[T]) Present() bool { return r.present }

// Value returns the cached value. Only meaningful when Present is true.
func (r CacheResult[T]) Value() T { return r.value }

// Cache is the read-through cache abstraction the engine drives. Key
// translation, TTL, eviction, and get/put hooks are backend concerns
// implemented by the cache subpackage; this interface is the minimal
// contract the engine needs.
type Cache[T any] interface {
	// Name uniquely identifies this cache.
	Name() string
	// Enabled reports whether this cache should be consulted at all.
	Enabled() bool
	// Get looks up key. A CacheMiss result and a nil error means no entry
	// (or a get-hook vetoed the hit); any non-nil error is logged by the
	// engine and treated as a miss without failing the command.
	Get(ctx context.Context, key any) (CacheResult[T], error)
	// Put stores value under key, honoring PutEnabled and any put-hook.
	// A returned error is swallowed by the engine (logged, never fatal to
	// the command).
	Put(ctx context.Context, key any, value T) error
}

// CacheInterceptor wraps the cache-get step of the retry loop, e.g. for
// timing or logging. It must invoke next exactly once and return its
// result.
type CacheInterceptor[T any] func(next func() (CacheResult[T], error)) (CacheResult[T], error)

// RetryInterceptor wraps one attempt's remote-call invocation (the
// URIProvider.Run call), e.g. for timing or logging.
type RetryInterceptor[T any] func(next func() (T, error)) (T, error)

// Descriptor is an immutable-after-Build command description: the four
// coordinated subsystems (bulkhead/breaker, retry, discovery, cache) plus
// the caller's remote callback.
type Descriptor[T any] struct {
	Name string

	URIProvider URIProvider[T]
	Callback    RemoteCallback[T]

	Execution ExecutionPolicy
	Breaker   BreakerPolicy
	Pool      PoolPolicy
	Retry     RetryPolicy

	Cache            Cache[T]
	CacheKey         any
	CacheInterceptor CacheInterceptor[T]
	RetryInterceptor RetryInterceptor[T]

	initialAttributes map[string]any
}

// UsesCache reports whether this descriptor is cache-bound with a
// non-nil key and an enabled backend.
func (d *Descriptor[T]) UsesCache() bool {
	return d.Cache != nil && d.CacheKey != nil && d.Cache.Enabled()
}

// Builder fluently constructs a Descriptor, applying validation and
// defaulting rules on Build.
type Builder[T any] struct {
	desc   Descriptor[T]
	logger *slog.Logger
}

// NewDescriptor starts a new Builder with the package's documented
// default policies applied.
func NewDescriptor[T any]() *Builder[T] {
	return &Builder[T]{
		desc: Descriptor[T]{
			Execution:         DefaultExecutionPolicy(),
			Breaker:           DefaultBreakerPolicy(),
			Pool:              DefaultPoolPolicy(),
			Retry:             DefaultRetryPolicy(),
			initialAttributes: make(map[string]any),
		},
		logger: slog.Default(),
	}
}

// WithName sets the logical command name used for breaker/pool identity
// and config lookups.
func (b *Builder[T]) WithName(name string) *Builder[T] {
	b.desc.Name = name
	return b
}

// WithURIProvider sets the required URIProvider.
func (b *Builder[T]) WithURIProvider(p URIProvider[T]) *Builder[T] {
	b.desc.URIProvider = p
	return b
}

// WithCallback sets the required remote callback.
func (b *Builder[T]) WithCallback(cb RemoteCallback[T]) *Builder[T] {
	b.desc.Callback = cb
	return b
}

// WithExecutionPolicy overrides the execution policy.
func (b *Builder[T]) WithExecutionPolicy(p ExecutionPolicy) *Builder[T] {
	b.desc.Execution = p
	return b
}

// WithBreakerPolicy overrides the breaker policy.
func (b *Builder[T]) WithBreakerPolicy(p BreakerPolicy) *Builder[T] {
	b.desc.Breaker = p
	return b
}

// WithPoolPolicy overrides the bulkhead/pool policy.
func (b *Builder[T]) WithPoolPolicy(p PoolPolicy) *Builder[T] {
	b.desc.Pool = p
	return b
}

// WithRetryPolicy overrides the retry policy.
func (b *Builder[T]) WithRetryPolicy(p RetryPolicy) *Builder[T] {
	b.desc.Retry = p
	return b
}

// WithCache binds a Cache and key. Both must be set for caching to take
// effect (see Descriptor.UsesCache).
func (b *Builder[T]) WithCache(c Cache[T], key any) *Builder[T] {
	b.desc.Cache = c
	b.desc.CacheKey = key
	return b
}

// WithCacheInterceptor sets an interceptor around the cache-get step.
func (b *Builder[T]) WithCacheInterceptor(fn CacheInterceptor[T]) *Builder[T] {
	b.desc.CacheInterceptor = fn
	return b
}

// WithRetryInterceptor sets an interceptor around each attempt's
// URIProvider.Run invocation.
func (b *Builder[T]) WithRetryInterceptor(fn RetryInterceptor[T]) *Builder[T] {
	b.desc.RetryInterceptor = fn
	return b
}

// WithAttribute seeds the per-invocation Context with an initial
// key/value pair, visible to the callback from the first attempt.
func (b *Builder[T]) WithAttribute(key string, val any) *Builder[T] {
	b.desc.initialAttributes[key] = val
	return b
}

// WithLogger sets the logger used for builder-time warnings (e.g. the
// MaxAttempts coercion warning).
func (b *Builder[T]) WithLogger(logger *slog.Logger) *Builder[T] {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build validates and finalizes the Descriptor. It fails with
// ErrInvalidDescriptor if URIProvider or Callback is unset; silently
// repairs MaxAttempts <= 0 to 1 with a logged warning; defaults Name to
// "ApiCommand" when unset.
func (b *Builder[T]) Build() (*Descriptor[T], error) {
	if b.desc.URIProvider == nil {
		return nil, fmt.Errorf("%w: URIProvider is required", ErrInvalidDescriptor)
	}
	if b.desc.Callback == nil {
		return nil, fmt.Errorf("%w: Callback is required", ErrInvalidDescriptor)
	}

	if b.desc.Name == "" {
		b.desc.Name = "ApiCommand"
	}

	if b.desc.Retry.MaxAttempts <= 0 {
		b.logger.Warn("number of attempts must be positive, coercing to 1",
			"command", b.desc.Name, "configured", b.desc.Retry.MaxAttempts)
		b.desc.Retry.MaxAttempts = 1
	}

	if b.desc.Retry.Classifier == nil {
		b.desc.Retry.Classifier = DefaultClassifier()
	}
	if b.desc.Breaker.Classifier == nil {
		b.desc.Breaker.Classifier = DefaultClassifier()
	}
	if b.desc.Retry.Logger == nil {
		b.desc.Retry.Logger = slog.Default()
	}
	if b.desc.Breaker.Logger == nil {
		b.desc.Breaker.Logger = slog.Default()
	}

	desc := b.desc
	return &desc, nil
}
