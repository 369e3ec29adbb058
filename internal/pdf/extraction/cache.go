package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/golang/groupcache/lru"
	"go.uber.org/atomic"
)

// DefaultCacheSize is the number of parsed documents kept when no size is given
const DefaultCacheSize = 16

// DocumentCache is a thread-safe LRU of parsed document snapshots keyed by
// the SHA-256 of the PDF bytes.
type DocumentCache struct {
	mutex  sync.Mutex
	lru    *lru.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
}

// NewDocumentCache creates a cache holding at most capacity documents
func NewDocumentCache(capacity int) *DocumentCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &DocumentCache{lru: lru.New(capacity)}
}

// DocumentKey returns the cache key for a PDF
func DocumentKey(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return hex.EncodeToString(sum[:])
}

// Get returns a cached snapshot and marks it recently used
func (c *DocumentCache) Get(key string) (*Document, bool) {
	c.mutex.Lock()
	v, ok := c.lru.Get(key)
	c.mutex.Unlock()

	if !ok {
		c.misses.Inc()
		return nil, false
	}
	c.hits.Inc()
	return v.(*Document), true
}

// Put stores a snapshot, evicting the least recently used one when full
func (c *DocumentCache) Put(key string, doc *Document) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lru.Add(key, doc)
}

// Remove drops a snapshot
func (c *DocumentCache) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lru.Remove(key)
}

// Len returns the number of cached snapshots
func (c *DocumentCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lru.Len()
}

// Stats returns cache statistics
func (c *DocumentCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	return CacheStats{
		Hits:     hits,
		Misses:   misses,
		HitRate:  hitRate,
		Size:     c.lru.Len(),
		Capacity: c.lru.MaxEntries,
	}
}
