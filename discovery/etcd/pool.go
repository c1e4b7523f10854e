// Package etcd adapts the discovery.Pool contract to an etcd v3-backed
// dynamic service registry, alongside the static in-memory case. Instances
// are registered as key/value pairs under a namespace prefix (value is the
// instance's base URI) and the pool keeps its membership in sync via a
// long-lived watch, the idiomatic etcd client-v3 pattern.
package etcd

import (
	"context"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/JohnPlummer/jp-go-command/discovery"
)

// Pool is a discovery.Pool backed by an etcd watch over a key prefix.
// Each key under the prefix is treated as one Instance, keyed by its
// etcd key and valued by its stored base URI.
type Pool struct {
	*discovery.StaticPool

	client *clientv3.Client
	prefix string
	logger *slog.Logger

	cancel context.CancelFunc
}

// Options configures a new etcd-backed Pool.
type Options struct {
	Prefix   string
	Strategy discovery.Strategy
	Cooldown time.Duration
	Logger   *slog.Logger
}

// NewPool creates a Pool, performs an initial listing of instances under
// opts.Prefix, and starts a background watch to keep membership current.
// Call Close to stop the watch.
func NewPool(ctx context.Context, client *clientv3.Client, opts Options) (*Pool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resp, err := client.Get(ctx, opts.Prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]discovery.Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		instances = append(instances, discovery.Instance{
			ID:      string(kv.Key),
			BaseURI: string(kv.Value),
		})
	}

	base := discovery.NewStaticPool(instances, opts.Strategy, opts.Cooldown)

	watchCtx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		StaticPool: base,
		client:     client,
		prefix:     opts.Prefix,
		logger:     logger,
		cancel:     cancel,
	}

	go p.watch(watchCtx)

	return p, nil
}

func (p *Pool) watch(ctx context.Context) {
	watchChan := p.client.Watch(ctx, p.prefix, clientv3.WithPrefix())
	for resp := range watchChan {
		if resp.Err() != nil {
			p.logger.Warn("etcd discovery watch error", "error", resp.Err(), "prefix", p.prefix)
			continue
		}
		p.refresh(ctx)
	}
}

func (p *Pool) refresh(ctx context.Context) {
	resp, err := p.client.Get(ctx, p.prefix, clientv3.WithPrefix())
	if err != nil {
		p.logger.Warn("etcd discovery refresh failed", "error", err, "prefix", p.prefix)
		return
	}

	instances := make([]discovery.Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		instances = append(instances, discovery.Instance{
			ID:      string(kv.Key),
			BaseURI: string(kv.Value),
		})
	}

	p.logger.Debug("etcd discovery membership refreshed", "prefix", p.prefix, "count", len(instances))
	p.Replace(instances)
}

// Close stops the background watch. The underlying etcd client is not
// closed; it is owned by the caller.
func (p *Pool) Close() {
	p.cancel()
}
