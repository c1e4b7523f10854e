package command

import (
	"context"
	"log/slog"

	"github.com/JohnPlummer/jp-go-command/discovery"
)

// URIProvider resolves a base endpoint for one attempt and invokes fn
// with it. It must not retry internally, that is the retry driver's job;
// a URIProvider only resolves and dispatches once per call.
type URIProvider[T any] interface {
	Run(ctx context.Context, fn func(ctx context.Context, baseURI string) (T, error)) (T, error)
}

// ConstantURIProvider always resolves to the same base URI. Stateless.
type ConstantURIProvider[T any] struct {
	baseURI string
}

// NewConstantURIProvider creates a URIProvider that always resolves to
// baseURI.
func NewConstantURIProvider[T any](baseURI string) *ConstantURIProvider[T] {
	return &ConstantURIProvider[T]{baseURI: baseURI}
}

// Run implements URIProvider.
func (p *ConstantURIProvider[T]) Run(ctx context.Context, fn func(ctx context.Context, baseURI string) (T, error)) (T, error) {
	return fn(ctx, p.baseURI)
}

// DiscoveryURIProvider resolves a base URI from a discovery.Pool on every
// call, marking the resolved instance on retryable/timeout failures so
// the next attempt (driven by the retry driver re-entering this
// provider) lands on a different instance.
type DiscoveryURIProvider[T any] struct {
	pool        discovery.Pool
	serviceName string
	logger      *slog.Logger
}

// NewDiscoveryURIProvider creates a discovery-backed URIProvider over
// pool. serviceName is used only for log/error context.
func NewDiscoveryURIProvider[T any](pool discovery.Pool, serviceName string, logger *slog.Logger) *DiscoveryURIProvider[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoveryURIProvider[T]{pool: pool, serviceName: serviceName, logger: logger}
}

// Run implements URIProvider. It fails with ErrNoInstance (retryable)
// when the pool has no available instance, and marks the resolved
// instance via NoteError when fn returns a retryable or timeout failure.
func (p *DiscoveryURIProvider[T]) Run(ctx context.Context, fn func(ctx context.Context, baseURI string) (T, error)) (T, error) {
	var zero T

	inst, err := p.pool.Next()
	if err != nil {
		p.logger.Debug("discovery pool has no available instance", "service", p.serviceName, "error", err)
		return zero, Retryable(ErrNoInstance)
	}

	p.logger.Debug("discovery provider selected instance", "service", p.serviceName, "instance", inst.ID)

	result, err := fn(ctx, inst.BaseURI)
	if err != nil {
		kind := defaultClassify(err)
		if kind == KindRetryable || kind == KindTimeout {
			p.logger.Debug("noting error on discovery instance", "instance", inst.ID, "kind", kind)
			p.pool.NoteError(inst.ID)
		}
		return zero, err
	}

	return result, nil
}
