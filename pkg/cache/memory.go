package cache

import (
	"sync"
	"time"
)

type memoryItem struct {
	value    any
	expireAt time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return now.After(m.expireAt)
}

// MemoryCache is the fast tier: a mutex-guarded map with per-entry TTL.
// The lock is held only across individual map operations, never across
// I/O. Expired entries are dropped lazily on read and swept when the
// map grows past maxSize on write.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*memoryItem
	maxSize int
	ttl     time.Duration
}

// NewMemoryCache creates the fast tier.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:    1000,
		DefaultTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		ttl:     cfg.DefaultTTL,
	}
}

// Set stores value under key. A non-positive ttl falls back to the
// cache default.
func (mc *MemoryCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = mc.ttl
	}
	now := time.Now()

	mc.mu.Lock()
	if len(mc.data) >= mc.maxSize {
		mc.sweepLocked(now)
	}
	mc.data[key] = &memoryItem{value: value, expireAt: now.Add(ttl)}
	mc.mu.Unlock()
}

// Get returns the value for key, or ErrCacheMiss if absent or expired.
func (mc *MemoryCache) Get(key string) (any, error) {
	now := time.Now()

	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if item.expired(now) {
		mc.mu.Lock()
		if cur, ok := mc.data[key]; ok && cur.expired(now) {
			delete(mc.data, key)
		}
		mc.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Delete removes keys.
func (mc *MemoryCache) Delete(keys ...string) {
	mc.mu.Lock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	mc.mu.Unlock()
}

// Len reports the number of resident entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.data)
}

func (mc *MemoryCache) sweepLocked(now time.Time) {
	for key, item := range mc.data {
		if item.expired(now) {
			delete(mc.data, key)
		}
	}
}
