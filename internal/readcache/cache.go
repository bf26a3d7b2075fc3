// Package readcache mirrors the relay's group logs for low-latency reads.
//
// Entries are immutable slices swapped under a lock, so a reader never
// observes a partially updated sequence. The cache may lag behind the relay
// until the next backfill but never holds a message the relay does not.
package readcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/metrics"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

const defaultTTL = 30 * time.Second

// Source is the canonical log the cache backfills from.
type Source interface {
	ReadSince(ctx context.Context, groupID string, afterID int64) ([]models.Message, error)
}

type key struct {
	collection string
	groupID    string
}

type entry struct {
	messages  []models.Message // never mutated after publication
	writtenAt time.Time
}

func (e *entry) lastID() int64 {
	if len(e.messages) == 0 {
		return 0
	}
	return e.messages[len(e.messages)-1].ID
}

// Cache is a TTL-bounded mirror keyed by (collection, group).
type Cache struct {
	source  Source
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time
	mu      sync.RWMutex
	entries map[key]*entry
	flight  singleflight.Group
}

// New creates a Cache over source.
func New(source Source, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		source:  source,
		ttl:     ttl,
		logger:  logger.With().Str("component", "readcache").Logger(),
		now:     time.Now,
		entries: make(map[key]*entry),
	}
}

func newKey(collection, groupID string) key {
	return key{collection: models.NormalizeAddress(collection), groupID: groupID}
}

// Read returns the group's messages in ascending id order. Fresh entries are
// served directly; a miss backfills the full log and an expired entry
// backfills from its last known id.
func (c *Cache) Read(ctx context.Context, collection, groupID string) ([]models.Message, error) {
	k := newKey(collection, groupID)

	c.mu.RLock()
	e := c.entries[k]
	c.mu.RUnlock()

	var after int64
	switch {
	case e == nil:
		metrics.ReadCacheLookups.WithLabelValues("miss").Inc()
	case c.now().Sub(e.writtenAt) <= c.ttl:
		metrics.ReadCacheLookups.WithLabelValues("hit").Inc()
		return e.messages, nil
	default:
		metrics.ReadCacheLookups.WithLabelValues("expired").Inc()
		after = e.lastID()
	}

	v, err, _ := c.flight.Do(k.collection+"|"+k.groupID, func() (interface{}, error) {
		return c.backfill(ctx, k, after)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Message), nil
}

func (c *Cache) backfill(ctx context.Context, k key, after int64) ([]models.Message, error) {
	fetched, err := c.source.ReadSince(ctx, k.groupID, after)
	if err != nil {
		c.logger.Warn().Err(err).Str("group_id", k.groupID).Int64("after", after).Msg("backfill failed")
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var base []models.Message
	if old := c.entries[k]; old != nil && after > 0 {
		base = old.messages
	}
	merged := merge(base, fetched)
	// Keep write-through messages that landed after the snapshot was taken.
	if old := c.entries[k]; old != nil {
		merged = merge(merged, old.messages)
	}

	c.entries[k] = &entry{messages: merged, writtenAt: c.now()}
	c.logger.Debug().Str("group_id", k.groupID).Int64("after", after).Int("fetched", len(fetched)).Int("total", len(merged)).Msg("backfilled")
	return merged, nil
}

// Append mirrors a successful relay append into an existing entry without
// refreshing its age. Without an entry it is a no-op; the next read
// backfills the full history.
func (c *Cache) Append(msg models.Message) {
	k := newKey(msg.CollectionAddress, msg.GroupID)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[k]
	if e == nil {
		return
	}
	c.entries[k] = &entry{messages: merge(e.messages, []models.Message{msg}), writtenAt: e.writtenAt}
}

// Invalidate drops the entry for a group.
func (c *Cache) Invalidate(collection, groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, newKey(collection, groupID))
}

// merge returns a new ascending slice containing the union of a and b by id.
// Inputs are not modified.
func merge(a, b []models.Message) []models.Message {
	out := make([]models.Message, 0, len(a)+len(b))
	out = append(out, a...)
	for _, m := range b {
		i := sort.Search(len(out), func(i int) bool { return out[i].ID >= m.ID })
		if i < len(out) && out[i].ID == m.ID {
			continue
		}
		out = append(out, models.Message{})
		copy(out[i+1:], out[i:])
		out[i] = m
	}
	return out
}
