package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type counter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *counter) load(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return c.calls, nil
}

func TestValueExpiration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	v := NewValue[int](time.Minute)
	v.now = func() time.Time { return now }
	c := &counter{}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := v.Get(ctx, c.load)
		if err != nil || got != 1 {
			t.Fatalf("Get() = %d, %v; want 1, nil", got, err)
		}
	}

	now = now.Add(time.Minute + time.Second)
	if got, _ := v.Get(ctx, c.load); got != 2 {
		t.Errorf("Get() after expiry = %d, want 2", got)
	}

	stats := v.Stats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("Stats() = %+v, want 2 hits and 2 misses", stats)
	}
}

func TestValueInvalidate(t *testing.T) {
	v := NewValue[int](time.Hour)
	c := &counter{}
	ctx := context.Background()

	v.Get(ctx, c.load)
	v.Invalidate()
	if got, _ := v.Get(ctx, c.load); got != 2 {
		t.Errorf("Get() after Invalidate = %d, want 2", got)
	}
}

func TestValueDoesNotRememberErrors(t *testing.T) {
	v := NewValue[int](time.Hour)
	c := &counter{err: errors.New("quota exceeded")}
	ctx := context.Background()

	if _, err := v.Get(ctx, c.load); err == nil {
		t.Fatal("expected load error")
	}
	c.err = nil
	if got, err := v.Get(ctx, c.load); err != nil || got != 2 {
		t.Errorf("Get() = %d, %v; want 2, nil", got, err)
	}
}

func TestValueDisabled(t *testing.T) {
	v := NewValue[int](0)
	c := &counter{}
	ctx := context.Background()

	v.Get(ctx, c.load)
	v.Get(ctx, c.load)
	if c.calls != 2 {
		t.Errorf("loads = %d, want 2 with caching disabled", c.calls)
	}
}

func TestValueSharesConcurrentLoads(t *testing.T) {
	v := NewValue[int](time.Hour)
	c := &counter{}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Get(ctx, c.load)
		}()
	}
	wg.Wait()
	if c.calls != 1 {
		t.Errorf("loads = %d, want 1", c.calls)
	}
}
