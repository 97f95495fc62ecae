// Package cache provides the in-memory LRU result cache the filter engine
// consults before recomputing a filter pass.
package cache

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Key identifies one filter result: which pixel buffer revision it was
// computed from, with which filter configuration, under which selection.
// Any difference in any field is a different cache entry.
type Key struct {
	TargetID   string
	Revision   uint64
	Kind       string
	Params     string
	MaskDigest uint64
}

// Result is a cached filtered pixel buffer plus an integrity checksum taken
// at store time.
type Result struct {
	Pix      []uint8
	Width    int
	Height   int
	checksum uint64
}

// CorruptionError reports a cached buffer whose contents no longer match the
// checksum recorded when it was stored. The entry is evicted before the
// error is returned, so the caller can simply recompute.
type CorruptionError struct {
	Key Key
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("cache entry for target %q (kind %s) failed checksum verification", e.Key.TargetID, e.Key.Kind)
}

func checksum(pix []uint8) uint64 {
	h := fnv.New64a()
	h.Write(pix) // nolint:errcheck // fnv writes never fail
	return h.Sum64()
}

type entry struct {
	key    Key
	result *Result
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// Cache is a fixed-capacity LRU over filter results. Safe for concurrent
// use. Capacity counts entries, not bytes; results for large targets should
// go through the persistent store instead.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[Key]*list.Element
	byTarget map[string]map[Key]struct{}

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most capacity results.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Key]*list.Element),
		byTarget: make(map[string]map[Key]struct{}),
	}, nil
}

// Put stores a filtered buffer under key, recording a checksum of the bytes.
// The buffer is copied, so the caller may keep mutating its slice.
func (c *Cache) Put(key Key, pix []uint8, width, height int) {
	cp := make([]uint8, len(pix))
	copy(cp, pix)
	res := &Result{
		Pix:      cp,
		Width:    width,
		Height:   height,
		checksum: checksum(cp),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).result = res
		return
	}

	el := c.ll.PushFront(&entry{key: key, result: res})
	c.items[key] = el
	keys := c.byTarget[key.TargetID]
	if keys == nil {
		keys = make(map[Key]struct{})
		c.byTarget[key.TargetID] = keys
	}
	keys[key] = struct{}{}

	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Get returns the cached result for key, or nil on a miss. A hit whose
// buffer fails checksum verification is evicted and reported via
// CorruptionError; the caller should recompute as if it were a miss.
func (c *Cache) Get(key Key) (*Result, error) {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, nil
	}

	res := el.Value.(*entry).result
	if checksum(res.Pix) != res.checksum {
		c.removeElement(el)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, &CorruptionError{Key: key}
	}

	c.ll.MoveToFront(el)
	c.mu.Unlock()
	c.hits.Add(1)

	// Hand out a copy so callers cannot corrupt the cached bytes.
	cp := make([]uint8, len(res.Pix))
	copy(cp, res.Pix)
	return &Result{Pix: cp, Width: res.Width, Height: res.Height, checksum: res.checksum}, nil
}

// InvalidateTarget drops every cached result for the given target, returning
// how many entries were removed. Called when a target's pixel buffer is
// replaced outside the filter engine.
func (c *Cache) InvalidateTarget(targetID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byTarget[targetID]
	n := 0
	for key := range keys {
		if el, ok := c.items[key]; ok {
			c.removeElement(el)
			n++
		}
	}
	return n
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns a snapshot of the hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := c.ll.Len()
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   n,
	}
}

// evictOldest removes the least recently used entry. Caller holds c.mu.
func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.removeElement(el)
	c.evictions.Add(1)
}

// removeElement unlinks an entry from the list and both indexes. Caller
// holds c.mu.
func (c *Cache) removeElement(el *list.Element) {
	ent := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, ent.key)
	if keys := c.byTarget[ent.key.TargetID]; keys != nil {
		delete(keys, ent.key)
		if len(keys) == 0 {
			delete(c.byTarget, ent.key.TargetID)
		}
	}
}
