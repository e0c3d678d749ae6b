package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"TickPulse/internal/domain/models"
	mid "TickPulse/internal/middleware"
	"TickPulse/pkg/logger"
	"TickPulse/pkg/metrics"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []fetchCall
	gen   func(symbol string, start, end time.Time) []models.Tick
	err   error
	block chan struct{} // when set, Fetch stalls here until closed or ctx ends
}

type fetchCall struct {
	symbol     string
	start, end time.Time
}

func (s *fakeSource) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{symbol: symbol, start: start, end: end})
	gen, err, block := s.gen, s.err, s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, nil
	}
	return gen(symbol, start, end), nil
}

type fakeBridge struct{ connected bool }

func (b *fakeBridge) Connect(context.Context) error   { b.connected = true; return nil }
func (b *fakeBridge) IsConnected() bool               { return b.connected }
func (b *fakeBridge) Reconnect(context.Context) error { return nil }
func (b *fakeBridge) FetchTicks(context.Context, string, time.Time, time.Time) ([]models.Tick, error) {
	return nil, nil
}
func (b *fakeBridge) Close() error { return nil }

type fakeCache struct {
	mu       sync.Mutex
	snaps    map[string]*models.SymbolSnapshot
	cleanups int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snaps: make(map[string]*models.SymbolSnapshot)}
}

func (c *fakeCache) Set(_ context.Context, snap *models.SymbolSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.Symbol] = snap
	return nil
}

func (c *fakeCache) Get(_ context.Context, symbol string) models.SnapshotResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.snaps[symbol]; ok {
		return models.SnapshotResult{Snapshot: snap, State: models.StateFresh}
	}
	return models.SnapshotResult{State: models.StateUnavailable, Reason: "no snapshot"}
}

func (c *fakeCache) Cleanup(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups++
	return nil
}

func (c *fakeCache) Close() error { return nil }

// buyTicks fills [start, end) with one buy tick per second.
func buyTicks(_ string, start, end time.Time) []models.Tick {
	var out []models.Tick
	for t := start; t.Before(end); t = t.Add(time.Second) {
		out = append(out, models.Tick{
			TimeMs:     t.UnixMilli(),
			Bid:        99.99,
			Ask:        100.01,
			Last:       100,
			VolumeReal: 1,
			Flags:      models.FlagBid | models.FlagAsk | models.FlagLast | models.FlagVolume | models.FlagBuy,
		})
	}
	return out
}

func testGenConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbols:         []string{"EURUSD"},
		UpdateInterval:  10 * time.Millisecond,
		PrevDayInterval: time.Hour,
		StopTimeout:     time.Second,
	}
}

func newTestGenerator(t *testing.T, src *fakeSource, bridge *fakeBridge, cache *fakeCache, cfg GeneratorConfig) *SnapshotGenerator {
	t.Helper()
	pool := mid.NewFetchPool(metrics.Noop{}, mid.WithWorkers(2))
	return NewSnapshotGenerator(src, bridge, cache, pool, metrics.Noop{}, logger.Nop(), cfg)
}

func TestEmptyFetchMarksMarketClosed(t *testing.T) {
	src := &fakeSource{}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()
	g := newTestGenerator(t, src, bridge, cache, testGenConfig())

	g.pool.Start()
	defer g.pool.Stop()
	g.runCycle(context.Background(), 1)

	res := g.GetLatestMetrics("EURUSD")
	if res.Snapshot == nil {
		t.Fatalf("expected an explicit snapshot, got none: %s", res.Reason)
	}
	if res.Snapshot.DataAvailable {
		t.Fatalf("empty fetch must not mark data available")
	}
	if res.Snapshot.MarketStatus != models.MarketClosed {
		t.Fatalf("expected closed market, got %v", res.Snapshot.MarketStatus)
	}
}

func TestEmptyFetchWhileDisconnectedIsUnknown(t *testing.T) {
	src := &fakeSource{}
	bridge := &fakeBridge{connected: false}
	cache := newFakeCache()
	g := newTestGenerator(t, src, bridge, cache, testGenConfig())

	g.pool.Start()
	defer g.pool.Stop()
	g.runCycle(context.Background(), 1)

	res := g.GetLatestMetrics("EURUSD")
	if res.Snapshot == nil || res.Snapshot.MarketStatus != models.MarketUnknown {
		t.Fatalf("expected unknown market status, got %+v", res.Snapshot)
	}
}

func TestCycleComputesRollingWindows(t *testing.T) {
	src := &fakeSource{gen: buyTicks}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()
	g := newTestGenerator(t, src, bridge, cache, testGenConfig())

	g.pool.Start()
	defer g.pool.Stop()
	g.runCycle(context.Background(), 1)

	res := g.GetLatestMetrics("EURUSD")
	if res.Snapshot == nil || !res.Snapshot.DataAvailable {
		t.Fatalf("expected available snapshot, got %+v", res.Snapshot)
	}
	snap := res.Snapshot
	if snap.MarketStatus != models.MarketOpen {
		t.Fatalf("expected open market, got %v", snap.MarketStatus)
	}

	for _, key := range []string{models.WindowM5, models.WindowM15, models.WindowH1} {
		w := snap.Windows[key]
		if w == nil || w.TickCount == 0 {
			t.Fatalf("window %s missing or empty", key)
		}
		if w.DominantSide != models.SideBuy {
			t.Fatalf("window %s: expected buy dominance, got %v", key, w.DominantSide)
		}
	}
	if m5, h1 := snap.Windows[models.WindowM5], snap.Windows[models.WindowH1]; m5.TickCount > h1.TickCount {
		t.Fatalf("m5 window larger than h1: %d > %d", m5.TickCount, h1.TickCount)
	}

	if snap.PrevHour == nil {
		t.Fatalf("previous clock hour not computed on first cycle")
	}
	if !snap.PrevDayLoading {
		t.Fatalf("previous day must report loading before the slow pass ran")
	}
	if snap.QualityRatio != 1.0 {
		t.Fatalf("all-trade input should give quality 1.0, got %v", snap.QualityRatio)
	}
}

func TestFetchErrorWritesUnavailable(t *testing.T) {
	src := &fakeSource{err: errors.New("history timeout")}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()
	g := newTestGenerator(t, src, bridge, cache, testGenConfig())

	g.pool.Start()
	defer g.pool.Stop()
	g.runCycle(context.Background(), 1)

	res := g.GetLatestMetrics("EURUSD")
	if res.Snapshot == nil || res.Snapshot.DataAvailable {
		t.Fatalf("fetch error must yield an unavailable snapshot")
	}
	if res.Snapshot.MarketStatus != models.MarketUnknown {
		t.Fatalf("expected unknown status, got %v", res.Snapshot.MarketStatus)
	}
	if !strings.Contains(res.Snapshot.StatusReason, "history timeout") {
		t.Fatalf("reason does not carry the cause: %q", res.Snapshot.StatusReason)
	}
}

func TestSymbolPanicContained(t *testing.T) {
	src := &fakeSource{gen: func(string, time.Time, time.Time) []models.Tick {
		panic("corrupt tick batch")
	}}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()
	cfg := testGenConfig()
	cfg.Symbols = []string{"EURUSD", "GBPUSD"}
	g := newTestGenerator(t, src, bridge, cache, cfg)

	g.pool.Start()
	defer g.pool.Stop()
	g.runCycle(context.Background(), 1)

	for _, symbol := range cfg.Symbols {
		res := g.GetLatestMetrics(symbol)
		if res.Snapshot == nil {
			t.Fatalf("panicking symbol %s left no snapshot", symbol)
		}
		if res.Snapshot.DataAvailable {
			t.Fatalf("panicking symbol %s marked available", symbol)
		}
	}
}

func TestCleanupRunsOnCadence(t *testing.T) {
	src := &fakeSource{}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()
	cfg := testGenConfig()
	cfg.CleanupEveryCycles = 2
	g := newTestGenerator(t, src, bridge, cache, cfg)

	g.pool.Start()
	defer g.pool.Stop()
	for cycle := 1; cycle <= 4; cycle++ {
		g.runCycle(context.Background(), cycle)
	}

	if cache.cleanups != 2 {
		t.Fatalf("expected cleanup on cycles 2 and 4, got %d runs", cache.cleanups)
	}
}

func TestPrevDayPassFillsAggregate(t *testing.T) {
	src := &fakeSource{gen: buyTicks}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()
	g := newTestGenerator(t, src, bridge, cache, testGenConfig())

	g.pool.Start()
	defer g.pool.Stop()

	g.refreshPrevDay(context.Background())
	g.runCycle(context.Background(), 1)

	res := g.GetLatestMetrics("EURUSD")
	if res.Snapshot == nil || res.Snapshot.PrevDay == nil {
		t.Fatalf("previous day aggregate missing after the slow pass")
	}
	if res.Snapshot.PrevDayLoading {
		t.Fatalf("loading flag still set after the slow pass completed")
	}
	if res.Snapshot.PrevDay.TickCount != 86_400 {
		t.Fatalf("previous day covers %d ticks, want 86400", res.Snapshot.PrevDay.TickCount)
	}
}

func TestStopReleasesQueuedFetches(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	bridge := &fakeBridge{connected: true}
	cache := newFakeCache()

	// More symbols than workers: with the first fetch stalled, the rest
	// of the cycle sits in the pool queue when Stop cancels the context.
	cfg := testGenConfig()
	cfg.Symbols = []string{"EURUSD", "GBPUSD", "XAUUSD"}
	cfg.UpdateInterval = time.Hour
	cfg.StopTimeout = 2 * time.Second
	pool := mid.NewFetchPool(metrics.Noop{}, mid.WithWorkers(1))
	g := NewSnapshotGenerator(src, bridge, cache, pool, metrics.Noop{}, logger.Nop(), cfg)

	if err := g.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the first fetch stall

	begun := time.Now()
	if err := g.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(begun); elapsed >= cfg.StopTimeout {
		t.Fatalf("stop burned its full timeout (%v), cycle did not unwind", elapsed)
	}

	// The loop exited cleanly, so a restart runs a single fresh loop.
	if err := g.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop after restart failed: %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	src := &fakeSource{}
	bridge := &fakeBridge{}
	cache := newFakeCache()
	g := newTestGenerator(t, src, bridge, cache, testGenConfig())

	if err := g.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("second start must be a no-op, got %v", err)
	}
	if !bridge.connected {
		t.Fatalf("start did not attempt the initial connect")
	}

	time.Sleep(50 * time.Millisecond)

	if err := g.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("second stop must be a no-op, got %v", err)
	}

	res := g.GetLatestMetrics("EURUSD")
	if res.Snapshot == nil {
		t.Fatalf("no snapshot written while running")
	}

	// The generator restarts cleanly after a full stop.
	if err := g.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop after restart failed: %v", err)
	}
}
