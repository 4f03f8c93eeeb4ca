package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LRUCache is a size bounded cache whose entries also expire after a TTL.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
	stats   Stats
	loads   singleflight.Group

	// pending maps each key with a load in flight to the generation that
	// load was started under. Delete and DeletePrefix drop the entry so the
	// load's result is not stored.
	pending map[string]uint64
	gen     uint64
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		pending: make(map[string]uint64),
	}
}

// WithClock replaces the time source, for tests
func (c *LRUCache[T]) WithClock(now func() time.Time) *LRUCache[T] {
	c.now = now
	return c
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.stats.Misses++
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		c.stats.Misses++
		return zero, false
	}

	c.lru.MoveToFront(elem)
	c.stats.Hits++
	return item.data, true
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, data)
}

func (c *LRUCache[T]) setLocked(key string, data T) {
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
}

// GetOrLoad returns the cached value for key or calls load once, even when
// several goroutines miss the same key at the same time. Failed loads are not
// cached, and neither are loads that raced with a Delete or DeletePrefix of
// their key. hit reports whether the value came from the cache.
func (c *LRUCache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (v T, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	res, err, _ := c.loads.Do(key, func() (any, error) {
		gen := c.beginLoad(key)
		data, err := load(ctx)
		c.finishLoad(key, gen, data, err == nil)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

func (c *LRUCache[T]) beginLoad(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.pending[key] = c.gen
	return c.gen
}

// finishLoad stores data only when no invalidation happened since beginLoad.
func (c *LRUCache[T]) finishLoad(key string, gen uint64, data T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[key] != gen {
		return
	}
	delete(c.pending, key)
	if ok {
		c.setLocked(key, data)
	}
}

// invalidateLocked voids any load in flight for key and makes the next
// GetOrLoad start a fresh one instead of joining it.
func (c *LRUCache[T]) invalidateLocked(key string) {
	if _, ok := c.pending[key]; ok {
		delete(c.pending, key)
		c.loads.Forget(key)
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateLocked(key)
	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many were dropped
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.pending {
		if strings.HasPrefix(key, prefix) {
			c.invalidateLocked(key)
		}
	}
	n := 0
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(elem)
			n++
		}
	}
	return n
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a copy of the hit/miss counters
func (c *LRUCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
