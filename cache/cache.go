// Package cache provides the generic, thread-safe LRU cache used to keep
// parsed FHIRPath expressions across evaluations.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Cache is a generic LRU cache with O(1) lookup, insert and eviction.
// A Get moves the hit entry to the front of the recency list; a Set at
// capacity synchronously evicts the back entry. All methods are safe for
// concurrent use; hit/miss counters are lock-free atomics.
//
// The cache is purely an optimization: callers must behave identically
// whether or not it is populated.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*list.Element
	order    *list.List // front = most recently used
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

// entry is the recency-list payload.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 512

// New creates a cache holding at most capacity entries.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[K, V]{
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

// Get retrieves a value and refreshes its recency.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.order.MoveToFront(el)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return el.Value.(*entry[K, V]).value, true
}

// Set adds or updates a value, evicting the least-recently-used entry when
// at capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}
	if len(c.items) >= c.capacity {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// GetOrCompute returns the cached value for key, or calls fn to compute,
// store and return it. The computation runs under the cache lock so a key
// is computed at most once at a time; fn errors are returned uncached.
func (c *Cache[K, V]) GetOrCompute(key K, fn func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// re-check: another goroutine may have filled the slot
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		c.hits.Add(1)
		return el.Value.(*entry[K, V]).value, nil
	}

	value, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}
	if len(c.items) >= c.capacity {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	return value, nil
}

// evictOldest removes the back of the recency list. Callers hold mu.
func (c *Cache[K, V]) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	delete(c.items, back.Value.(*entry[K, V]).key)
	c.order.Remove(back)
	c.evicts.Add(1)
}

// Len returns the current entry count.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes every entry. Hit/miss counters are preserved.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Evicts  uint64  `json:"evicts"`
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	HitRate float64 `json:"hitRate"`
}

// Stats returns current cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	size := len(c.items)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Evicts:  c.evicts.Load(),
		Size:    size,
		MaxSize: c.capacity,
		HitRate: hitRate,
	}
}
