// Package cache memoizes expensive reads for a bounded time.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Value holds one lazily loaded value until it expires. Concurrent callers
// share a single load; failed loads are not remembered.
type Value[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	value     T
	valid     bool
	expiresAt time.Time

	hits   int64
	misses int64
}

type Stats struct {
	Hits   int64
	Misses int64
}

// NewValue returns a cache that keeps a loaded value for ttl. A ttl of zero
// or less disables caching: every Get loads.
func NewValue[T any](ttl time.Duration) *Value[T] {
	return &Value[T]{ttl: ttl, now: time.Now}
}

func (v *Value[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if v.ttl <= 0 {
		atomic.AddInt64(&v.misses, 1)
		return load(ctx)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.valid && v.now().Before(v.expiresAt) {
		atomic.AddInt64(&v.hits, 1)
		return v.value, nil
	}
	atomic.AddInt64(&v.misses, 1)

	val, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.value, v.valid, v.expiresAt = val, true, v.now().Add(v.ttl)
	return val, nil
}

// Invalidate forces the next Get to load.
func (v *Value[T]) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.value, v.valid = zero, false
}

func (v *Value[T]) Stats() Stats {
	return Stats{Hits: atomic.LoadInt64(&v.hits), Misses: atomic.LoadInt64(&v.misses)}
}
