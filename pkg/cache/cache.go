// Package cache provides a small TTL cache with bounded size.
//
// Instances are passed explicitly into the services that need them so tests
// can build isolated caches; there is no process-global cache state.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// TTL is a mutex-guarded TTL cache with LRU eviction once maxSize is
// reached. Zero value is not usable; construct with NewTTL.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// NewTTL creates a cache whose entries live for ttl and which never holds
// more than maxSize entries.
func NewTTL[V any](ttl time.Duration, maxSize int) *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value for key and whether it was present and fresh.
// Expired entries are removed on access.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.now().After(e.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, resetting its TTL. The least recently used
// entry is evicted if the cache is full.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expires = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.maxSize > 0 && c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[V]).key)
		}
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expires: c.now().Add(c.ttl)})
	c.entries[key] = el
}

// Delete removes key if present.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Clear drops every entry.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Keys returns the keys of all unexpired entries, in no particular order.
func (c *TTL[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	keys := make([]string, 0, len(c.entries))
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry[V])
		if now.After(e.expires) {
			continue
		}
		keys = append(keys, e.key)
	}
	return keys
}

// Len reports the number of entries, including any not yet purged expired
// ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
