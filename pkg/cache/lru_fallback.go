package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// lruFallback is the bounded in-process map used as a last resort when the
// sqlite-backed Backend is unavailable (spec §4.3: "If the cache backend
// fails, all layers fall through to a direct computation path" — this
// backend is the one exception, a small in-memory buffer that keeps the
// hierarchy useful across the brief window before the real backend comes
// back, per SPEC_FULL.md §12.5). Never persisted, never shared across
// process restarts.
type lruFallback struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func newLRUFallback(capacity int) *lruFallback {
	return &lruFallback{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *lruFallback) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false, nil
	}
	ent := el.Value.(*lruEntry)
	if time.Now().After(ent.expiresAt) {
		c.ll.Remove(el)
		delete(c.index, key)
		return nil, false, nil
	}
	c.ll.MoveToFront(el)
	return ent.value, true, nil
}

func (c *lruFallback) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		ent := el.Value.(*lruEntry)
		ent.value = value
		ent.expiresAt = time.Now().Add(ttl)
		c.ll.MoveToFront(el)
		return nil
	}

	ent := &lruEntry{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	el := c.ll.PushFront(ent)
	c.index[key] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*lruEntry).key)
		}
	}
	return nil
}

func (c *lruFallback) Close() error { return nil }
