package app

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// cacheEntry holds cached file bytes plus the fingerprint that produced them.
// A stale fingerprint is treated as a miss and evicted on sight.
type cacheEntry struct {
	path       string
	size       int64
	modTime    time.Time
	data       []byte
	lastAccess time.Time
}

// ContentCache is a bounded in-memory LRU cache of file bytes. Entries are
// keyed by path; (size, modTime) act as the fingerprint for staleness. Files
// above maxEntryBytes bypass the cache entirely and are streamed from disk.
type ContentCache struct {
	mu       sync.Mutex
	ll       *list.List               // front = most recently used
	items    map[string]*list.Element // path -> element holding *cacheEntry
	total    int64
	maxBytes int64

	maxEntryBytes int64
}

func NewContentCache(maxBytes, maxEntryBytes int64) *ContentCache {
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	if maxEntryBytes <= 0 {
		maxEntryBytes = 10 * 1024 * 1024
	}
	return &ContentCache{
		ll:            list.New(),
		items:         make(map[string]*list.Element),
		maxBytes:      maxBytes,
		maxEntryBytes: maxEntryBytes,
	}
}

// Cacheable reports whether a file of the given size may enter the cache.
func (c *ContentCache) Cacheable(size int64) bool {
	return size <= c.maxEntryBytes
}

// Get returns cached bytes for path if the fingerprint still matches.
// A mismatched fingerprint removes the stale entry and reports a miss.
func (c *ContentCache) Get(path string, size int64, modTime time.Time) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[path]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if entry.size != size || !entry.modTime.Equal(modTime) {
		c.removeElement(el)
		return nil, false
	}

	entry.lastAccess = time.Now()
	c.ll.MoveToFront(el)
	return entry.data, true
}

// Put inserts file bytes under path. Oversized files are rejected; otherwise
// least-recently-used entries are evicted until the byte budget holds.
func (c *ContentCache) Put(path string, data []byte, modTime time.Time) bool {
	size := int64(len(data))
	if size > c.maxEntryBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.removeElement(el)
	}

	for c.total+size > c.maxBytes && c.ll.Len() > 0 {
		c.removeElement(c.ll.Back())
	}

	el := c.ll.PushFront(&cacheEntry{
		path:       path,
		size:       size,
		modTime:    modTime,
		data:       data,
		lastAccess: time.Now(),
	})
	c.items[path] = el
	c.total += size
	return true
}

// Invalidate drops the entry for an exact path.
func (c *ContentCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.removeElement(el)
	}
}

// InvalidateTree drops the entry for path and every entry below it.
func (c *ContentCache) InvalidateTree(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.removeElement(el)
	}
	prefix := path + "/"
	for p, el := range c.items {
		if strings.HasPrefix(p, prefix) {
			c.removeElement(el)
		}
	}
}

// Stats returns the current entry count and total cached bytes.
func (c *ContentCache) Stats() (entries int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len(), c.total
}

func (c *ContentCache) removeElement(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.ll.Remove(el)
	delete(c.items, entry.path)
	c.total -= entry.size
}
