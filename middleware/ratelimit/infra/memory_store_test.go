package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryCounterStore_IncrementStopsAtCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore()

	for i := int64(1); i <= 3; i++ {
		n, ok, err := s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 3)
		if err != nil || !ok || n != i {
			t.Fatalf("expected (%d, true, nil), got (%d, %v, %v)", i, n, ok, err)
		}
	}

	n, ok, _ := s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 3)
	if ok || n != 3 {
		t.Fatalf("expected refused increment at 3, got (%d, %v)", n, ok)
	}
	if got, _ := s.Get(ctx, "k"); got != 3 {
		t.Fatalf("expected count 3, got %d", got)
	}
}

func TestMemoryCounterStore_ExpiryOnlySetOnCreate(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_000, 0)}
	s := NewMemoryCounterStore(WithClock(clock.Now))

	_, _, _ = s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 10)
	clock.Advance(40 * time.Second)
	_, _, _ = s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 10)

	ttl, _ := s.TTL(ctx, "k")
	if ttl != 20*time.Second {
		t.Fatalf("expected ttl 20s (window not extended), got %s", ttl)
	}
}

func TestMemoryCounterStore_WindowRollover(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_000, 0)}
	s := NewMemoryCounterStore(WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		_, _, _ = s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 2)
	}
	clock.Advance(time.Minute)

	if got, _ := s.Get(ctx, "k"); got != 0 {
		t.Fatalf("expected expired counter to read 0, got %d", got)
	}
	if ttl, _ := s.TTL(ctx, "k"); ttl != 0 {
		t.Fatalf("expected ttl 0 for expired key, got %s", ttl)
	}
	n, ok, _ := s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 2)
	if !ok || n != 1 {
		t.Fatalf("expected fresh window starting at 1, got (%d, %v)", n, ok)
	}
}

func TestMemoryCounterStore_CleanupRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_000, 0)}
	s := NewMemoryCounterStore(WithClock(clock.Now), WithCleanupEvery(0))

	_, _, _ = s.IncrementAndExpireIfNew(ctx, "a", time.Second, 5)
	_, _, _ = s.IncrementAndExpireIfNew(ctx, "b", time.Hour, 5)
	clock.Advance(2 * time.Second)

	s.Cleanup()
	if s.Len() != 1 {
		t.Fatalf("expected 1 live entry after cleanup, got %d", s.Len())
	}
}

func TestMemoryCounterStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, admitted, _ := s.IncrementAndExpireIfNew(ctx, "k", time.Minute, 25); admitted {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 25 {
		t.Fatalf("expected exactly 25 increments, got %d", ok)
	}
}

func TestMemoryCounterStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore()
	_, _, _ = s.IncrementAndExpireIfNew(ctx, domain.Key("k"), time.Minute, 5)

	if err := s.Reset(ctx, "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := s.Get(ctx, "k"); got != 0 {
		t.Fatalf("expected 0 after reset, got %d", got)
	}
}
