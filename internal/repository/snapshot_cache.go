package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"TickPulse/internal/domain/models"
	drepo "TickPulse/internal/domain/repository"
	"TickPulse/pkg/cache"
	"TickPulse/pkg/logger"
)

// ErrStaleSnapshot is returned by Set when the offered snapshot is not
// newer than the one already cached for that symbol.
var ErrStaleSnapshot = errors.New("snapshot cache: write older than cached snapshot")

// SnapshotStore is the two-tier snapshot cache: a TTL memory map for
// the sub-millisecond read path backed by an embedded bolt store for
// recovery and historical debugging. The store owns entry lifecycle;
// callers only Set and Get.
type SnapshotStore struct {
	mem     *cache.MemoryCache
	durable *cache.BoltStore
	ttl     time.Duration
	retain  time.Duration
	metrics drepo.Metrics
	log     *logger.Logger

	mu           sync.Mutex
	lastComputed map[string]time.Time
	persists     sync.WaitGroup
}

// NewSnapshotStore creates the cache over the given tiers.
func NewSnapshotStore(mem *cache.MemoryCache, durable *cache.BoltStore, ttl, retention time.Duration, metrics drepo.Metrics, log *logger.Logger) *SnapshotStore {
	return &SnapshotStore{
		mem:          mem,
		durable:      durable,
		ttl:          ttl,
		retain:       retention,
		metrics:      metrics,
		log:          log.With("snapshot_cache"),
		lastComputed: make(map[string]time.Time),
	}
}

// Set writes the snapshot to the fast tier and persists it to the
// durable tier asynchronously. A snapshot older than the currently
// cached one for the same symbol is rejected so a slow, stale cycle can
// never overwrite a newer result.
func (s *SnapshotStore) Set(_ context.Context, snap *models.SymbolSnapshot) error {
	if snap == nil || snap.Symbol == "" {
		return fmt.Errorf("snapshot cache: nil or unnamed snapshot")
	}

	s.mu.Lock()
	if last, ok := s.lastComputed[snap.Symbol]; ok && !snap.ComputedAt.After(last) {
		s.mu.Unlock()
		s.metrics.RecordError("stale_write")
		return ErrStaleSnapshot
	}
	s.lastComputed[snap.Symbol] = snap.ComputedAt
	s.mu.Unlock()

	s.mem.Set(snap.Symbol, snap, s.ttl)

	s.persists.Add(1)
	go s.persist(snap)
	return nil
}

// Get serves the fast tier first, falls back to the durable tier
// (marked stale), and otherwise returns a structured unavailable
// result. It performs no network I/O and never blocks on the write
// path beyond the map lock.
func (s *SnapshotStore) Get(_ context.Context, symbol string) models.SnapshotResult {
	if v, err := s.mem.Get(symbol); err == nil {
		if snap, ok := v.(*models.SymbolSnapshot); ok {
			s.metrics.RecordCacheHit("memory")
			return models.SnapshotResult{Snapshot: snap, State: models.StateFresh}
		}
	}

	data, _, err := s.durable.Latest(symbol)
	if err == nil {
		var snap models.SymbolSnapshot
		if uerr := json.Unmarshal(data, &snap); uerr == nil {
			s.metrics.RecordCacheHit("durable")
			return models.SnapshotResult{Snapshot: &snap, State: models.StateStale}
		}
		s.log.Warn("corrupt durable row",
			logger.String("symbol", symbol))
		s.metrics.RecordError("corrupt_row")
	}

	s.metrics.RecordCacheMiss()
	return models.SnapshotResult{
		State:  models.StateUnavailable,
		Reason: fmt.Sprintf("no snapshot for %s", symbol),
	}
}

// Cleanup drops durable rows older than the retention window. The
// generator invokes it on a cycle-tied cadence so durable-tier I/O
// stays predictable.
func (s *SnapshotStore) Cleanup(_ context.Context) error {
	cutoff := time.Now().Add(-s.retain)
	deleted, err := s.durable.DeleteOlderThan(cutoff)
	if err != nil {
		s.metrics.RecordError("cleanup")
		return fmt.Errorf("snapshot cache cleanup: %w", err)
	}
	if deleted > 0 {
		s.log.Debug("cleaned durable tier",
			logger.Int("deleted", deleted),
			logger.Time("cutoff", cutoff))
	}
	return nil
}

// Close waits for in-flight persists, then closes the durable tier.
func (s *SnapshotStore) Close() error {
	s.persists.Wait()
	return s.durable.Close()
}

// persist writes one row to the durable tier. Failures are logged and
// counted but never affect the fast tier, so the read path keeps
// working.
func (s *SnapshotStore) persist(snap *models.SymbolSnapshot) {
	defer s.persists.Done()

	data, err := json.Marshal(snap)
	if err != nil {
		s.metrics.RecordError("persist")
		s.log.Error("marshal snapshot", logger.String("symbol", snap.Symbol), logger.Error(err))
		return
	}
	if err := s.durable.Put(snap.Symbol, snap.ComputedAt, data); err != nil {
		s.metrics.RecordError("persist")
		s.log.Error("persist snapshot", logger.String("symbol", snap.Symbol), logger.Error(err))
	}
}

var _ drepo.SnapshotCache = (*SnapshotStore)(nil)
