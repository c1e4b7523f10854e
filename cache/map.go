// Package cache provides Cache implementations for the command engine:
// an in-memory map, a size/TTL-bounded backend, and a Redis-backed
// distributed adapter. Each satisfies command.Cache[T]; the in-memory Map
// also takes get/put hooks for observing or vetoing individual lookups.
package cache

import (
	"context"
	"fmt"
	"sync"

	command "github.com/JohnPlummer/jp-go-command"
)

// GetHook runs after a raw lookup and before the result is returned to
// the engine. It may translate the stored value or veto a hit by
// returning present=false, mirroring CacheGetHandler.afterCacheGet.
type GetHook[T any] func(ctx context.Context, key any, value T, present bool) (T, bool)

// PutHook runs before a value is stored. Returning ok=false vetoes the
// write entirely.
type PutHook[T any] func(ctx context.Context, key any, value T) (T, bool)

// Map is a plain in-memory Cache with no eviction, the direct successor
// of HashMapCommandCache: unbounded, fast, and suitable only for small,
// long-lived key sets.
type Map[T any] struct {
	name       string
	enabled    bool
	putEnabled bool
	getHook    GetHook[T]
	putHook    PutHook[T]

	mu   sync.RWMutex
	data map[any]T
}

// NewMap creates an enabled, put-enabled in-memory Cache named name.
func NewMap[T any](name string) *Map[T] {
	return &Map[T]{
		name:       name,
		enabled:    true,
		putEnabled: true,
		data:       make(map[any]T),
	}
}

// SetEnabled toggles whether Get/Put are consulted at all.
func (c *Map[T]) SetEnabled(v bool) *Map[T] { c.enabled = v; return c }

// SetPutEnabled toggles whether Put actually stores values.
func (c *Map[T]) SetPutEnabled(v bool) *Map[T] { c.putEnabled = v; return c }

// WithGetHook installs a GetHook.
func (c *Map[T]) WithGetHook(h GetHook[T]) *Map[T] { c.getHook = h; return c }

// WithPutHook installs a PutHook.
func (c *Map[T]) WithPutHook(h PutHook[T]) *Map[T] { c.putHook = h; return c }

// Name implements command.Cache.
func (c *Map[T]) Name() string { return c.name }

// Enabled implements command.Cache.
func (c *Map[T]) Enabled() bool { return c.enabled }

// Get implements command.Cache. A disabled cache always misses without
// consulting the get hook. Otherwise the get hook, when present, sees
// every lookup (hit or not) and decides the result: a vetoed hit and an
// actual miss are indistinguishable to the caller, both surfacing as
// CacheMiss.
func (c *Map[T]) Get(ctx context.Context, key any) (command.CacheResult[T], error) {
	if !c.enabled {
		return command.CacheMiss[T](), nil
	}

	c.mu.RLock()
	v, ok := c.data[key]
	c.mu.RUnlock()

	if c.getHook != nil {
		translated, present := c.getHook(ctx, key, v, ok)
		if !present {
			return command.CacheMiss[T](), nil
		}
		return command.CacheHit(translated), nil
	}

	if !ok {
		return command.CacheMiss[T](), nil
	}
	return command.CacheHit(v), nil
}

// Put implements command.Cache. The put hook, when present, runs before
// the put-enabled flag gate: a hook can veto a write outright, but a hook
// that approves one is still subject to putEnabled.
func (c *Map[T]) Put(ctx context.Context, key any, value T) error {
	if c.putHook != nil {
		translated, ok := c.putHook(ctx, key, value)
		if !ok {
			return nil
		}
		value = translated
	}
	if !c.putEnabled {
		return nil
	}
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
	return nil
}

// Empty clears every entry.
func (c *Map[T]) Empty() {
	c.mu.Lock()
	c.data = make(map[any]T)
	c.mu.Unlock()
}

// Dump renders the cache contents for diagnostics.
func (c *Map[T]) Dump() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%v", c.data)
}
