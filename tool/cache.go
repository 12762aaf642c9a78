package tool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/rtcontext"
)

// cacheEntry holds a cached Result plus LRU/TTL bookkeeping. lastAccessed
// and hitCount are updated under the cache's lock rather than atomically:
// unlike a plain dedupe cache (which only ever stores a timestamp),
// entries here also store a Result value, so a single lock protects both.
type cacheEntry struct {
	value        Result
	createdAt    time.Time
	lastAccessed time.Time
	hitCount     uint64
}

// CacheStats are atomically updated counters, mirroring the
// hits/misses/size/hitRate contract in spec §4.3.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// HitRate returns hits/(hits+misses), or 0 when no calls have been made.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache wraps a Tool with a context-fingerprinted, LRU+TTL result cache.
// Key = SHA-256 of canonicalized (sorted params excluding "__"-prefixed
// keys) + "::" + context fingerprint (tenantId|userId|sessionId), unless a
// KeyBuilder override is supplied.
type Cache struct {
	inner   Tool
	maxSize int
	ttl     time.Duration

	KeyBuilder    func(ctx context.Context, params map[string]any) string
	RespectBypass bool

	mu      sync.Mutex
	entries map[string]*cacheEntry

	hits   uint64
	misses uint64
}

// NewCache wraps tool t with a cache bounded by maxSize entries and ttl
// expiry. ttl <= 0 means entries never expire by time (only by LRU
// eviction).
func NewCache(t Tool, maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		inner:   t,
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *Cache) Name() string        { return c.inner.Name() }
func (c *Cache) Description() string { return c.inner.Description() }
func (c *Cache) Schema() Schema      { return c.inner.Schema() }

// Execute serves from cache on a fresh hit, otherwise calls through to the
// wrapped tool and caches only StatusSuccess results.
func (c *Cache) Execute(ctx context.Context, params map[string]any) resultx.Result[Result] {
	if c.RespectBypass {
		if v, ok := params["bypass_cache"]; ok {
			if b, ok := v.(bool); ok && b {
				return c.inner.Execute(ctx, params)
			}
		}
	}

	key := c.key(ctx, params)

	c.mu.Lock()
	entry, found := c.entries[key]
	if found {
		if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
			delete(c.entries, key)
			found = false
		}
	}
	if found {
		entry.lastAccessed = time.Now()
		entry.hitCount++
		atomic.AddUint64(&c.hits, 1)
		value := entry.value
		c.mu.Unlock()
		return resultx.Ok(value)
	}
	atomic.AddUint64(&c.misses, 1)
	c.mu.Unlock()

	result := c.inner.Execute(ctx, params)
	value, ok := result.Value()
	if ok && value.Status == StatusSuccess {
		c.store(key, value)
	}
	return result
}

func (c *Cache) store(key string, value Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[key] = &cacheEntry{value: value, createdAt: now, lastAccessed: now}

	if c.maxSize > 0 {
		for len(c.entries) > c.maxSize {
			c.evictOldestLocked()
		}
	}
}

// evictOldestLocked removes the entry with the smallest lastAccessed,
// breaking ties by key for determinism.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastAccessed.Before(oldestAt) || (e.lastAccessed.Equal(oldestAt) && k < oldestKey) {
			oldestKey = k
			oldestAt = e.lastAccessed
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Stats returns a snapshot of hit/miss counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
	}
}

// Size returns the current number of cached entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear discards all cached entries without resetting hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

func (c *Cache) key(ctx context.Context, params map[string]any) string {
	if c.KeyBuilder != nil {
		return c.KeyBuilder(ctx, params)
	}
	return defaultCacheKey(ctx, params)
}

func defaultCacheKey(ctx context.Context, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "__") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, params[k])
	}
	b.WriteString("::")

	ec, _ := rtcontext.FromContext(ctx)
	if ec != nil {
		userID, _ := ec.Get("userId")
		sessionID, _ := ec.Get("sessionId")
		fmt.Fprintf(&b, "%s|%v|%v", ec.TenantID, userID, sessionID)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
