// Package discovery provides pluggable service-instance pools for
// discovery-backed URI resolution: instance-level error marking plus a
// swappable selection strategy, without depending on any particular
// registry client.
package discovery

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrNoInstance is returned when a pool has no available instance to
// offer. Callers typically treat this as retryable.
var ErrNoInstance = errors.New("discovery: no available instance")

// Instance is one resolved service endpoint.
type Instance struct {
	// ID uniquely identifies the instance within its pool (e.g.
	// host:port, or a registry-assigned node id).
	ID string
	// BaseURI is the endpoint a UriProvider hands to the remote callback.
	BaseURI string
	// Weight is consulted by the weighted selection strategy. Ignored by
	// round-robin and random.
	Weight int
}

// Pool resolves and tracks the health of a set of service instances.
// Concrete pools may be static (fixed list) or dynamic (backed by a
// registry watch, e.g. the etcd subpackage).
type Pool interface {
	// Next selects one available instance using the pool's configured
	// strategy. Returns ErrNoInstance if none are available.
	Next() (Instance, error)
	// NoteError penalizes an instance after a retryable failure or
	// connection timeout was observed against it, so subsequent
	// selections deprioritize it for a cooldown window.
	NoteError(id string)
	// Instances returns a snapshot of the current instance set, including
	// unavailable ones, for health checks and diagnostics.
	Instances() []Instance
}

// Strategy selects one instance from a candidate slice.
type Strategy func(candidates []Instance) Instance

// RoundRobin returns a Strategy that cycles through candidates in order.
func RoundRobin() Strategy {
	var idx int
	var mu sync.Mutex
	return func(candidates []Instance) Instance {
		mu.Lock()
		defer mu.Unlock()
		i := idx % len(candidates)
		idx++
		return candidates[i]
	}
}

// Random returns a Strategy that picks a uniformly random candidate.
func Random() Strategy {
	return func(candidates []Instance) Instance {
		return candidates[rand.Intn(len(candidates))] //nolint:gosec // selection only, not security sensitive
	}
}

// Weighted returns a Strategy that favors higher-Weight candidates.
// Instances with Weight <= 0 are treated as weight 1.
func Weighted() Strategy {
	return func(candidates []Instance) Instance {
		total := 0
		for _, c := range candidates {
			w := c.Weight
			if w <= 0 {
				w = 1
			}
			total += w
		}
		r := rand.Intn(total) //nolint:gosec // selection only, not security sensitive
		for _, c := range candidates {
			w := c.Weight
			if w <= 0 {
				w = 1
			}
			if r < w {
				return c
			}
			r -= w
		}
		return candidates[len(candidates)-1]
	}
}

// errorMark tracks a penalized instance's cooldown expiry.
type errorMark struct {
	until time.Time
}

// StaticPool is a fixed-membership Pool: a caller-supplied list of
// instances selected via a pluggable Strategy, with cooldown-based
// penalization for instances NoteError was called against.
type StaticPool struct {
	strategy Strategy
	cooldown time.Duration

	mu        sync.Mutex
	instances []Instance
	penalties map[string]errorMark
}

// NewStaticPool creates a StaticPool over the given instances. cooldown
// controls how long a penalized instance is excluded from selection after
// NoteError; zero disables penalization (every call is eligible again
// immediately).
func NewStaticPool(instances []Instance, strategy Strategy, cooldown time.Duration) *StaticPool {
	if strategy == nil {
		strategy = RoundRobin()
	}
	cp := make([]Instance, len(instances))
	copy(cp, instances)
	return &StaticPool{
		strategy:  strategy,
		cooldown:  cooldown,
		instances: cp,
		penalties: make(map[string]errorMark),
	}
}

// Next implements Pool.
func (p *StaticPool) Next() (Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	candidates := make([]Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		mark, penalized := p.penalties[inst.ID]
		if penalized && now.Before(mark.until) {
			continue
		}
		candidates = append(candidates, inst)
	}

	if len(candidates) == 0 {
		// Every instance is penalized (or the pool is empty); fall back to
		// the full set rather than failing outright, matching a discovery
		// registry's typical "everything looks unhealthy, try anyway"
		// behavior. An empty pool still yields ErrNoInstance.
		candidates = p.instances
	}

	if len(candidates) == 0 {
		return Instance{}, ErrNoInstance
	}

	return p.strategy(candidates), nil
}

// NoteError implements Pool.
func (p *StaticPool) NoteError(id string) {
	if p.cooldown <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.penalties[id] = errorMark{until: time.Now().Add(p.cooldown)}
}

// Instances implements Pool.
func (p *StaticPool) Instances() []Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Instance, len(p.instances))
	copy(out, p.instances)
	return out
}

// Replace atomically swaps the pool's membership, e.g. after a discovery
// registry watch event. Existing penalties for instances no longer
// present are dropped.
func (p *StaticPool) Replace(instances []Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances = make([]Instance, len(instances))
	copy(p.instances, instances)

	live := make(map[string]struct{}, len(instances))
	for _, inst := range instances {
		live[inst.ID] = struct{}{}
	}
	for id := range p.penalties {
		if _, ok := live[id]; !ok {
			delete(p.penalties, id)
		}
	}
}
