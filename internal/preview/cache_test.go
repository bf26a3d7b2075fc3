package preview

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New[string](ttl, time.Hour, zerolog.Nop())
	c.now = clock.Now
	return c, clock
}

func TestTTLBoundary(t *testing.T) {
	const ttl = 10 * time.Second
	const eps = time.Millisecond
	c, clock := newTestCache(ttl)
	start := clock.Now()
	c.Set("k", "v")

	clock.Set(start.Add(ttl - eps))
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatal("expected entry just before ttl")
	}

	clock.Set(start.Add(ttl + eps))
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to be absent just after ttl")
	}
	// Lazy expiry does not remove; eviction does.
	if c.Len() != 1 {
		t.Fatalf("expected expired entry to remain until eviction, len=%d", c.Len())
	}
}

func TestEvictExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	start := clock.Now()
	c.Set("old", "1")
	clock.Set(start.Add(45 * time.Second))
	c.Set("new", "2")

	clock.Set(start.Add(90 * time.Second))
	if n := c.EvictExpired(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatal("fresh entry must survive eviction")
	}
}

func TestSetRefreshesAndClear(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	start := clock.Now()
	c.Set("k", "a")
	clock.Set(start.Add(50 * time.Second))
	c.Set("k", "b")
	clock.Set(start.Add(100 * time.Second))
	if v, ok := c.Get("k"); !ok || v != "b" {
		t.Fatalf("expected refreshed value, got %q %v", v, ok)
	}

	c.Clear()
	if _, ok := c.Get("k"); ok || c.Len() != 0 {
		t.Fatal("expected empty cache after clear")
	}
}

func TestBackgroundEviction(t *testing.T) {
	c := New[int](5*time.Millisecond, 5*time.Millisecond, zerolog.Nop())
	c.Set("k", 1)
	c.Start()
	c.Start() // idempotent
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background eviction did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := New[int](time.Second, 0, zerolog.Nop())
	c.Stop()
	c.Start()
	c.Stop()
	c.Stop()
	c.Start()
	c.Stop()
}
