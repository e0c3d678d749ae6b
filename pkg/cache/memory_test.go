package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	mc := NewMemoryCache()
	mc.Set("key", "value", time.Minute)

	v, err := mc.Get("key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if v.(string) != "value" {
		t.Fatalf("expected value, got %v", v)
	}
}

func TestMemoryMiss(t *testing.T) {
	mc := NewMemoryCache()
	if _, err := mc.Get("absent"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	mc := NewMemoryCache()
	mc.Set("key", "value", 20*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	if _, err := mc.Get("key"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry, got err %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("expired entry not dropped on read")
	}
}

func TestMemoryDefaultTTL(t *testing.T) {
	mc := NewMemoryCache(WithMemoryTTL(20 * time.Millisecond))
	mc.Set("key", "value", 0) // falls back to the cache default

	if _, err := mc.Get("key"); err != nil {
		t.Fatalf("entry should still be live: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := mc.Get("key"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("default TTL not applied")
	}
}

func TestMemoryDelete(t *testing.T) {
	mc := NewMemoryCache()
	mc.Set("a", 1, time.Minute)
	mc.Set("b", 2, time.Minute)

	mc.Delete("a", "b")
	if mc.Len() != 0 {
		t.Fatalf("delete left %d entries", mc.Len())
	}
}

func TestMemorySweepOnWrite(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(4))
	for i := 0; i < 4; i++ {
		mc.Set(fmt.Sprintf("old-%d", i), i, 10*time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	mc.Set("fresh", "value", time.Minute)
	if mc.Len() != 1 {
		t.Fatalf("expired entries not swept at capacity: %d resident", mc.Len())
	}
}
