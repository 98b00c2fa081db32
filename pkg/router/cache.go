package router

import (
	"container/list"
	"sync"
	"time"

	"github.com/redlance/redlance/pkg/llmprovider"
)

// Cache is a bounded LRU with per-entry TTL, keyed on (prompt fingerprint,
// mode). No pack dependency offers a bounded LRU+TTL cache without pulling
// in an unrelated dependency surface (the pack's caching-adjacent libs are
// all either distributed caches like redis or HTTP-response caches); this
// is one of the few components in redlance built directly on the standard
// library, using container/list for the LRU ordering the same way it is
// commonly used in hand-rolled Go LRUs.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[cacheKey]*list.Element
}

type cacheKey struct {
	promptFingerprint string
	mode              string
}

type cacheEntry struct {
	key      cacheKey
	value    llmprovider.ProviderResponse
	storedAt time.Time
}

// NewCache builds a cache holding at most capacity live entries, each
// valid for ttl after insertion.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[cacheKey]*list.Element),
	}
}

// Get returns the cached response for (promptFingerprint, mode) if present
// and not expired, promoting it to most-recently-used.
func (c *Cache) Get(promptFingerprint, mode string) (llmprovider.ProviderResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{promptFingerprint, mode}
	el, ok := c.items[key]
	if !ok {
		return llmprovider.ProviderResponse{}, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		c.removeElement(el)
		return llmprovider.ProviderResponse{}, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

// Put inserts or refreshes the cached response for (promptFingerprint, mode),
// evicting the least-recently-used entry if the cache is at capacity.
func (c *Cache) Put(promptFingerprint, mode string, value llmprovider.ProviderResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{promptFingerprint, mode}
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		el.Value.(*cacheEntry).storedAt = time.Now()
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, value: value, storedAt: time.Now()})
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}
