package ledger

import (
	"container/list"
	"sync"
)

// lru is a size-bounded least-recently-used cache.
//
// Every eviction by predicate bumps a generation counter. A caller that
// read the generation before fetching may only store its result if no
// eviction happened in between, so a computation racing an invalidation
// never writes a stale value back.
type lru[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	gen     uint64
	items   map[K]*list.Element
	order   *list.List
}

type lruItem[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](maxSize int) *lru[K, V] {
	return &lru[K, V]{
		maxSize: maxSize,
		items:   make(map[K]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value for key and marks it recently used.
func (c *lru[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem[K, V]).value, true
}

// Generation returns the current eviction generation.
func (c *lru[K, V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores value unless an eviction happened since gen was
// read. It reports whether the value was stored.
func (c *lru[K, V]) SetIfGeneration(key K, value V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.maxSize <= 0 {
		return false
	}

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*lruItem[K, V]).value = value
		return true
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	c.items[key] = c.order.PushFront(&lruItem[K, V]{key: key, value: value})
	return true
}

// DeleteFunc removes every key matching pred and returns how many went.
func (c *lru[K, V]) DeleteFunc(pred func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	removed := 0
	for key, elem := range c.items {
		if pred(key) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *lru[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lru[K, V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruItem[K, V]).key)
}
