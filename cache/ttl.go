package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"

	command "github.com/JohnPlummer/jp-go-command"
)

// TTLOptions configures a TTL cache.
type TTLOptions struct {
	// MaximumSize bounds the number of entries; least-recently-used
	// entries are evicted once exceeded.
	MaximumSize int
	// TTL is the fixed time-to-live applied from write, per entry.
	TTL time.Duration
	// KeyFunc converts a Descriptor's CacheKey into the cache's internal
	// string key. Defaults to fmt.Sprintf("%v", key).
	KeyFunc func(key any) string
}

// TTL is a size- and time-bounded Cache backed by otter, for callers
// that need eviction and Map's unbounded growth is unacceptable.
type TTL[T any] struct {
	name       string
	enabled    bool
	putEnabled bool
	cache      *otter.Cache[string, T]
	keyFn      func(key any) string
}

// NewTTL creates an enabled, put-enabled TTL cache named name.
func NewTTL[T any](name string, opts TTLOptions) (*TTL[T], error) {
	keyFn := opts.KeyFunc
	if keyFn == nil {
		keyFn = func(key any) string { return fmt.Sprintf("%v", key) }
	}

	maxSize := opts.MaximumSize
	if maxSize <= 0 {
		maxSize = 10000
	}

	c, err := otter.New(&otter.Options[string, T]{
		MaximumSize:      maxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, T](opts.TTL),
	})
	if err != nil {
		return nil, fmt.Errorf("build otter cache %q: %w", name, err)
	}

	return &TTL[T]{
		name:       name,
		enabled:    true,
		putEnabled: true,
		cache:      c,
		keyFn:      keyFn,
	}, nil
}

// SetEnabled toggles whether Get/Put are consulted at all.
func (c *TTL[T]) SetEnabled(v bool) *TTL[T] { c.enabled = v; return c }

// SetPutEnabled toggles whether Put actually stores values.
func (c *TTL[T]) SetPutEnabled(v bool) *TTL[T] { c.putEnabled = v; return c }

// Name implements command.Cache.
func (c *TTL[T]) Name() string { return c.name }

// Enabled implements command.Cache.
func (c *TTL[T]) Enabled() bool { return c.enabled }

// Get implements command.Cache.
func (c *TTL[T]) Get(ctx context.Context, key any) (command.CacheResult[T], error) {
	if !c.enabled {
		return command.CacheMiss[T](), nil
	}
	v, ok := c.cache.GetIfPresent(c.keyFn(key))
	if !ok {
		return command.CacheMiss[T](), nil
	}
	return command.CacheHit(v), nil
}

// Put implements command.Cache.
func (c *TTL[T]) Put(ctx context.Context, key any, value T) error {
	if !c.putEnabled {
		return nil
	}
	c.cache.Set(c.keyFn(key), value)
	return nil
}

// Empty evicts every entry.
func (c *TTL[T]) Empty() {
	c.cache.InvalidateAll()
}
