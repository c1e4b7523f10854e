package command

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// bulkhead bounds the concurrency of one command's attempts, isolating
// callers so a slow dependency cannot starve every other caller of
// goroutines. It supports both a semaphore mode (reject immediately once
// full) and a thread-pool mode (queue up to a bound, then reject),
// expressed here with plain channels rather than a real worker pool
// since Go goroutines make a dedicated thread pool unnecessary.
type bulkhead struct {
	name      string
	slots     chan struct{}
	maxQueued int
	queued    int64
	limiter   *rate.Limiter
}

func newBulkhead(name string, isolation IsolationMode, policy PoolPolicy) *bulkhead {
	max := policy.MaxConcurrency
	if max <= 0 {
		max = 1
	}

	var maxQueued int
	if isolation == IsolationThreadPool {
		maxQueued = policy.MaxQueuedRequests
		if policy.QueueRejectionThreshold > 0 && policy.QueueRejectionThreshold < maxQueued {
			maxQueued = policy.QueueRejectionThreshold
		}
	}

	b := &bulkhead{
		name:      name,
		slots:     make(chan struct{}, max),
		maxQueued: maxQueued,
	}
	if policy.SmoothingRatePerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(policy.SmoothingRatePerSecond), max)
	}
	return b
}

// Acquire admits one caller into the bulkhead. In thread-pool mode
// (maxQueued > 0) a caller that finds every slot busy waits, bounded by
// ctx and the queue capacity; in semaphore mode (maxQueued == 0) a full
// bulkhead is rejected immediately. The returned release func must be
// called exactly once, regardless of the eventual outcome.
func (b *bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	select {
	case b.slots <- struct{}{}:
		return b.release, nil
	default:
	}

	if b.maxQueued <= 0 {
		return nil, fmt.Errorf("%w: command %q bulkhead at capacity", ErrPoolRejected, b.name)
	}

	n := atomic.AddInt64(&b.queued, 1)
	defer atomic.AddInt64(&b.queued, -1)
	if int(n) > b.maxQueued {
		return nil, fmt.Errorf("%w: command %q queue full", ErrPoolRejected, b.name)
	}

	select {
	case b.slots <- struct{}{}:
		return b.release, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

func (b *bulkhead) release() {
	<-b.slots
}

// InFlight reports the number of currently occupied slots, for health
// reporting.
func (b *bulkhead) InFlight() int {
	return len(b.slots)
}

// Capacity reports the total slot count.
func (b *bulkhead) Capacity() int {
	return cap(b.slots)
}
