// Package cache implements the in-memory response cache consulted by the
// fetch gateway according to the request's cache mode.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crawlkit/crawld/pkg/models"
)

// Cache stores fetch outcomes keyed by URL plus output format.
type Cache interface {
	// Get retrieves a cached outcome. The boolean reports whether the key
	// was present and unexpired.
	Get(key string) (*models.FetchOutcome, bool)

	// Set stores an outcome with the given TTL, evicting old entries as
	// needed.
	Set(key string, outcome *models.FetchOutcome, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key string) error

	// Clear removes every entry.
	Clear() error

	// Close stops background maintenance.
	Close()
}

// Key builds the cache key for a URL rendered in a given format.
func Key(url string, format models.OutputFormat) string {
	return url + "\x00" + string(format)
}

type entry struct {
	outcome   *models.FetchOutcome
	expiresAt time.Time
	key       string
	size      int64
}

// MemoryCache is an LRU cache with a byte-size bound and TTL expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	store   map[string]*list.Element
	lruList *list.List
	maxSize int64
	size    int64
	hits    uint64
	misses  uint64
	cancel  context.CancelFunc
}

// NewMemoryCache creates a cache bounded to maxSizeBytes, with a background
// sweep for expired entries.
func NewMemoryCache(maxSizeBytes int64) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 100 * 1024 * 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		cancel:  cancel,
	}
	go c.cleanupLoop(ctx)
	return c
}

// Get retrieves a cached outcome and promotes it in LRU order.
func (c *MemoryCache) Get(key string) (*models.FetchOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.store[key]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := elem.Value.(*entry)
	if time.Now().After(ent.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	c.hits++
	return ent.outcome, true
}

// Set stores an outcome, evicting least-recently-used entries until the
// cache fits its size bound.
func (c *MemoryCache) Set(key string, outcome *models.FetchOutcome, ttl time.Duration) error {
	if outcome == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.store[key]; ok {
		c.removeLocked(elem)
	}

	ent := &entry{
		outcome:   outcome,
		expiresAt: time.Now().Add(ttl),
		key:       key,
		size:      outcomeSize(outcome),
	}
	elem := c.lruList.PushFront(ent)
	c.store[key] = elem
	c.size += ent.size

	for c.size > c.maxSize {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.store[key]; ok {
		c.removeLocked(elem)
	}
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]*list.Element)
	c.lruList.Init()
	c.size = 0
	return nil
}

// Close stops the background sweeper.
func (c *MemoryCache) Close() {
	c.cancel()
}

// Stats returns hit and miss counters.
func (c *MemoryCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *MemoryCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.lruList.Remove(elem)
	delete(c.store, ent.key)
	c.size -= ent.size
}

func (c *MemoryCache) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *MemoryCache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []*list.Element
	for elem := c.lruList.Back(); elem != nil; elem = elem.Prev() {
		if now.After(elem.Value.(*entry).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.removeLocked(elem)
	}
	if len(expired) > 0 {
		log.Debug().Int("expired", len(expired)).Msg("Cache sweep removed entries")
	}
}

func outcomeSize(o *models.FetchOutcome) int64 {
	size := int64(len(o.URL)) + 256
	for _, body := range o.Content {
		size += int64(len(body))
	}
	for _, l := range o.Links {
		size += int64(len(l))
	}
	for _, im := range o.Images {
		size += int64(len(im))
	}
	for k, v := range o.Metadata {
		size += int64(len(k) + len(v))
	}
	return size
}
