package command

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Event is emitted once per Execute call for observers (metrics,
// tracing, logging) to consume.
type Event struct {
	Command      string
	Kind         Kind
	Err          error
	CacheHit     bool
	BreakerState BreakerState
	Duration     time.Duration
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithLogger sets the Engine's logger. Default slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per Execute call. Only
// one observer is supported directly; compose multiple by wrapping.
func WithObserver(fn func(Event)) EngineOption {
	return func(e *Engine) { e.onObserve = fn }
}

// Engine is the command execution engine: it owns one breaker and one
// bulkhead per command name, shared across every Execute call for that
// name, and drives the cache-get, retry, and cache-put sequence around
// the caller-supplied URIProvider and callback.
type Engine struct {
	mu        sync.Mutex
	breakers  map[string]*breaker[any]
	bulkheads map[string]*bulkhead

	logger    *slog.Logger
	onObserve func(Event)
}

// NewEngine creates an Engine ready to execute descriptors.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		breakers:  make(map[string]*breaker[any]),
		bulkheads: make(map[string]*bulkhead),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) breakerFor(name string, policy BreakerPolicy) *breaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[name]
	if !ok {
		b = newBreaker[any](name, policy)
		e.breakers[name] = b
	}
	return b
}

func (e *Engine) bulkheadFor(name string, isolation IsolationMode, policy PoolPolicy) *bulkhead {
	e.mu.Lock()
	defer e.mu.Unlock()
	bh, ok := e.bulkheads[name]
	if !ok {
		bh = newBulkhead(name, isolation, policy)
		e.bulkheads[name] = bh
	}
	return bh
}

func (e *Engine) observe(ev Event) {
	if e.onObserve != nil {
		e.onObserve(ev)
	}
}

// BreakerState reports the current breaker state for a command name, or
// StateClosed if the command has never been executed.
func (e *Engine) BreakerState(name string) BreakerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[name]
	if !ok {
		return StateClosed
	}
	return b.State()
}

// BreakerCounts reports the current breaker counters for a command name.
func (e *Engine) BreakerCounts(name string) BreakerCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.breakers[name]
	if !ok {
		return BreakerCounts{}
	}
	return b.Counts()
}

// Execute runs one command invocation end to end: bulkhead admission,
// cache-get, the retry-driven attempt loop (each attempt gated by the
// command's breaker and dispatched through its URIProvider), and, on
// success, cache-put. Execute is a package-level generic function rather
// than a generic method because Go methods cannot carry their own type
// parameters; Engine itself stays non-generic so one Engine can drive
// commands of unrelated response types.
func Execute[T any](ctx context.Context, engine *Engine, desc *Descriptor[T]) (T, error) {
	var zero T
	if desc == nil {
		return zero, ErrInvalidDescriptor
	}

	start := time.Now()
	cmdCtx := newContext(desc.Name, desc.initialAttributes)

	bh := engine.bulkheadFor(desc.Name, desc.Execution.Isolation, desc.Pool)
	release, err := bh.Acquire(ctx)
	if err != nil {
		engine.observe(Event{Command: desc.Name, Kind: KindPoolRejected, Err: err, Duration: time.Since(start)})
		return zero, err
	}
	defer release()

	if desc.UsesCache() {
		res, cacheErr := getFromCache(ctx, desc)
		if cacheErr != nil {
			engine.logger.Warn("cache get failed, treating as miss", "command", desc.Name, "error", cacheErr)
		} else if res.Present() {
			engine.observe(Event{Command: desc.Name, Kind: KindSuccess, CacheHit: true, Duration: time.Since(start)})
			return res.Value(), nil
		}
	}

	br := engine.breakerFor(desc.Name, desc.Breaker)
	driver := newRetryDriver[T](desc.Retry)

	result, err := driver.Run(ctx, desc.Name, func(attemptCtx context.Context, attempt int) (T, error) {
		raw, execErr := br.Execute(attemptCtx, func(innerCtx context.Context) (any, error) {
			return runAttempt(innerCtx, cmdCtx, desc, attempt)
		})
		if execErr != nil {
			var z T
			return z, execErr
		}
		v, _ := raw.(T)
		return v, nil
	})

	if err != nil {
		classifier := desc.Retry.Classifier
		if classifier == nil {
			classifier = DefaultClassifier()
		}
		engine.observe(Event{
			Command:      desc.Name,
			Kind:         classifier.Classify(err),
			Err:          err,
			BreakerState: br.State(),
			Duration:     time.Since(start),
		})
		return zero, err
	}

	if desc.UsesCache() {
		if putErr := desc.Cache.Put(ctx, desc.CacheKey, result); putErr != nil {
			engine.logger.Warn("cache put failed", "command", desc.Name, "error", putErr)
		}
	}

	engine.observe(Event{Command: desc.Name, Kind: KindSuccess, BreakerState: br.State(), Duration: time.Since(start)})
	return result, nil
}

// Result carries the outcome of an Enqueue call.
type Result[T any] struct {
	Value T
	Err   error
}

// Enqueue runs Execute on a new goroutine and returns a channel that
// receives exactly one Result, for callers that want a non-blocking
// submission instead of calling Execute directly.
func Enqueue[T any](ctx context.Context, engine *Engine, desc *Descriptor[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := Execute(ctx, engine, desc)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

func runAttempt[T any](ctx context.Context, cmdCtx *Context, desc *Descriptor[T], attempt int) (T, error) {
	var zero T

	attemptCtx := ctx
	if desc.Execution.PerAttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, desc.Execution.PerAttemptTimeout)
		defer cancel()
	}

	run := func() (T, error) {
		return desc.URIProvider.Run(attemptCtx, func(callCtx context.Context, baseURI string) (T, error) {
			return desc.Callback(callCtx, cmdCtx, baseURI)
		})
	}

	var result T
	var err error
	if desc.RetryInterceptor != nil {
		result, err = desc.RetryInterceptor(run)
	} else {
		result, err = run()
	}

	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return zero, &ClassifiedError{Cause: err, Kind: KindTimeout}
	}
	return result, err
}

func getFromCache[T any](ctx context.Context, desc *Descriptor[T]) (CacheResult[T], error) {
	get := func() (CacheResult[T], error) {
		return desc.Cache.Get(ctx, desc.CacheKey)
	}
	if desc.CacheInterceptor != nil {
		return desc.CacheInterceptor(get)
	}
	return get()
}
