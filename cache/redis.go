package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	command "github.com/JohnPlummer/jp-go-command"
)

// Codec (de)serializes T for storage as a Redis string value.
type Codec[T any] struct {
	Marshal   func(T) ([]byte, error)
	Unmarshal func([]byte) (T, error)
}

// RedisOptions configures a Redis-backed Cache.
type RedisOptions[T any] struct {
	// Prefix is prepended to every key, namespacing this cache within a
	// shared Redis instance.
	Prefix string
	// TTL is the expiry set on every write. Zero means no expiry.
	TTL time.Duration
	// Codec is required: Redis stores bytes, not Go values.
	Codec Codec[T]
	// KeyFunc converts a Descriptor's CacheKey into the string key
	// suffix. Defaults to fmt.Sprintf("%v", key).
	KeyFunc func(key any) string
	// PutEnabled controls whether this cache writes back on success.
	// Defaults to false: a distributed cache is treated as a read-through
	// contract-only backend here unless a caller opts in, since sharing
	// write authority across instances needs a decision this package
	// cannot make on the caller's behalf.
	PutEnabled bool
}

// Redis is a distributed Cache backed by go-redis. It never fails
// Descriptor.UsesCache handling on a Redis error; callers see those
// surfaced as an error from Get/Put for the engine to log and treat as a
// miss.
type Redis[T any] struct {
	name       string
	enabled    bool
	putEnabled bool
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	codec      Codec[T]
	keyFn      func(key any) string
}

// NewRedis creates an enabled Redis-backed Cache named name over client.
func NewRedis[T any](name string, client *redis.Client, opts RedisOptions[T]) *Redis[T] {
	keyFn := opts.KeyFunc
	if keyFn == nil {
		keyFn = func(key any) string { return fmt.Sprintf("%v", key) }
	}
	return &Redis[T]{
		name:       name,
		enabled:    true,
		putEnabled: opts.PutEnabled,
		client:     client,
		prefix:     opts.Prefix,
		ttl:        opts.TTL,
		codec:      opts.Codec,
		keyFn:      keyFn,
	}
}

// SetEnabled toggles whether Get/Put are consulted at all.
func (c *Redis[T]) SetEnabled(v bool) *Redis[T] { c.enabled = v; return c }

// Name implements command.Cache.
func (c *Redis[T]) Name() string { return c.name }

// Enabled implements command.Cache.
func (c *Redis[T]) Enabled() bool { return c.enabled }

func (c *Redis[T]) key(key any) string {
	return c.prefix + c.keyFn(key)
}

// Get implements command.Cache.
func (c *Redis[T]) Get(ctx context.Context, key any) (command.CacheResult[T], error) {
	if !c.enabled {
		return command.CacheMiss[T](), nil
	}

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return command.CacheMiss[T](), nil
	}
	if err != nil {
		return command.CacheMiss[T](), err
	}

	v, err := c.codec.Unmarshal(raw)
	if err != nil {
		return command.CacheMiss[T](), err
	}
	return command.CacheHit(v), nil
}

// Put implements command.Cache. No-op unless PutEnabled was set.
func (c *Redis[T]) Put(ctx context.Context, key any, value T) error {
	if !c.putEnabled {
		return nil
	}
	raw, err := c.codec.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), raw, c.ttl).Err()
}
