package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	id        string
	expiresAt time.Time
}

// MemoryCache is a bounded in-process cache. When full, the oldest mark is
// evicted first.
type MemoryCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	order      *list.List
	entries    map[string]*list.Element
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *MemoryCache) Seen(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return false, nil
	}
	if c.now().After(el.Value.(*memoryEntry).expiresAt) {
		c.remove(el)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Mark(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[id]; ok {
		c.remove(el)
	}
	for c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.remove(c.order.Front())
	}
	el := c.order.PushBack(&memoryEntry{id: id, expiresAt: c.now().Add(c.ttl)})
	c.entries[id] = el
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	return nil
}

func (c *MemoryCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*memoryEntry).id)
}
