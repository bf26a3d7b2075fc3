// Package preview provides a TTL cache for expensive derived artifacts.
package preview

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/metrics"
)

type entry[T any] struct {
	value     T
	writtenAt time.Time
}

// Cache holds values for a fixed TTL. Expired entries are never returned;
// a background task started with Start removes them periodically.
// The cache is unbounded in size.
type Cache[T any] struct {
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[T]

	runMu sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// New creates a Cache. interval is the eviction period; a non-positive
// interval defaults to ttl.
func New[T any](ttl, interval time.Duration, logger zerolog.Logger) *Cache[T] {
	if interval <= 0 {
		interval = ttl
	}
	return &Cache[T]{
		ttl:      ttl,
		interval: interval,
		logger:   logger.With().Str("component", "preview").Logger(),
		now:      time.Now,
		entries:  make(map[string]entry[T]),
	}
}

// Get returns the value for key if it is present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, writtenAt: c.now()}
}

// Clear removes all entries.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[T])
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictExpired removes expired entries and returns how many were removed.
func (c *Cache[T]) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		metrics.PreviewCacheEvictions.Add(float64(n))
	}
	return n
}

func (c *Cache[T]) expired(e entry[T]) bool {
	return c.now().Sub(e.writtenAt) > c.ttl
}

// Start launches the background eviction task. Calling Start on a running
// cache does nothing.
func (c *Cache[T]) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

// Stop halts the background task and waits for it to exit.
func (c *Cache[T]) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}

func (c *Cache[T]) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.EvictExpired(); n > 0 {
				c.logger.Debug().Int("evicted", n).Msg("evicted expired previews")
			}
		case <-stop:
			return
		}
	}
}
