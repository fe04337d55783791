package cache

import (
	"sync"
)

// DefaultSeenCapacity bounds the number of remembered message ids.
// Oldest entries are evicted first once the bound is hit.
const DefaultSeenCapacity = 10000

// SeenCache remembers which inbound message ids the bot has already
// acted on. Membership must be exact: a false positive would silently
// drop a visitor's message forever, so this is a map with FIFO
// eviction rather than a probabilistic filter.
type SeenCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]struct{}
	order    []string
	head     int
}

// NewSeenCache creates a SeenCache holding at most capacity ids.
// A non-positive capacity falls back to DefaultSeenCapacity.
func NewSeenCache(capacity int) *SeenCache {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenCache{
		capacity: capacity,
		entries:  make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// MarkSeen records the message id and reports whether it was new.
// Marking happens before the caller acts on the message, so a failed
// action is not retried on the next cycle.
func (c *SeenCache) MarkSeen(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return false
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[id] = struct{}{}
	c.order = append(c.order, id)
	return true
}

// Seen reports whether the message id has been recorded.
func (c *SeenCache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Len returns the number of remembered ids.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SeenCache) evictOldestLocked() {
	for c.head < len(c.order) {
		oldest := c.order[c.head]
		c.head++
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			break
		}
	}

	// Compact the backing slice once the dead prefix dominates it.
	if c.head > c.capacity {
		c.order = append([]string(nil), c.order[c.head:]...)
		c.head = 0
	}
}
