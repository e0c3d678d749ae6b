package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"TickPulse/internal/domain/models"
	drepo "TickPulse/internal/domain/repository"
	mid "TickPulse/internal/middleware"
	internalrepo "TickPulse/internal/repository"
	"TickPulse/internal/services/analytics"
	"TickPulse/pkg/logger"
	"TickPulse/pkg/util"
)

// Generator lifecycle states.
const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

// GeneratorConfig parameterizes the aggregation loop.
type GeneratorConfig struct {
	Symbols            []string
	UpdateInterval     time.Duration
	PrevDayInterval    time.Duration
	CleanupEveryCycles int
	StopTimeout        time.Duration

	AbsorptionVolumeMult  float64
	AbsorptionPriceTolPct float64
	SpreadWideningMult    float64
	VoidSpreadMult        float64
	CVDSlopePct           float64

	// Quality thresholds are independently configurable for the rolling
	// H1 window and the fixed previous-hour aggregate.
	MinQualityH1       float64
	MinQualityPrevHour float64
}

// SnapshotGenerator drives the aggregation loop: on a fixed cadence it
// pulls ticks per tracked symbol (offloaded to the fetch pool), derives
// the rolling and fixed MetricsWindows, and writes SymbolSnapshots into
// the cache. The synchronous read accessor only ever touches the cache.
type SnapshotGenerator struct {
	source  drepo.TickSource
	bridge  drepo.TerminalBridge
	cache   drepo.SnapshotCache
	pool    *mid.FetchPool
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     GeneratorConfig

	state  atomic.Int32
	cancel context.CancelFunc
	doneCh chan struct{}

	mu             sync.Mutex
	prevHour       map[string]*models.MetricsWindow
	prevHourKey    map[string]int64
	prevDay        map[string]*models.MetricsWindow
	prevDayDone    map[string]bool
	prevDayRunning bool
}

// NewSnapshotGenerator creates the generator. Start launches the loop.
func NewSnapshotGenerator(
	source drepo.TickSource,
	bridge drepo.TerminalBridge,
	cache drepo.SnapshotCache,
	pool *mid.FetchPool,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg GeneratorConfig,
) *SnapshotGenerator {
	return &SnapshotGenerator{
		source:      source,
		bridge:      bridge,
		cache:       cache,
		pool:        pool,
		metrics:     metrics,
		log:         log.With("generator"),
		cfg:         cfg,
		prevHour:    make(map[string]*models.MetricsWindow),
		prevHourKey: make(map[string]int64),
		prevDay:     make(map[string]*models.MetricsWindow),
		prevDayDone: make(map[string]bool),
	}
}

// Start launches the background loop. Idempotent while running. The
// generator becomes servable for rolling windows within the first
// cycle; the previous-day aggregates fill in asynchronously.
func (g *SnapshotGenerator) Start() error {
	if !g.state.CompareAndSwap(stateStopped, stateRunning) {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.doneCh = make(chan struct{})

	g.pool.Start()

	// Initial connection attempt is best-effort; the source adapter
	// reconnects on demand.
	if err := g.bridge.Connect(ctx); err != nil {
		g.log.Warn("initial terminal connect failed", logger.Error(err))
	}

	go g.run(ctx)
	g.log.Info("generator started",
		logger.Strings("symbols", g.cfg.Symbols),
		logger.Duration("interval", g.cfg.UpdateInterval))
	return nil
}

// Stop signals the loop and waits, bounded by StopTimeout, for the
// in-flight cycle to finish.
func (g *SnapshotGenerator) Stop() error {
	if !g.state.CompareAndSwap(stateRunning, stateStopping) {
		return nil
	}
	g.cancel()

	select {
	case <-g.doneCh:
	case <-time.After(g.cfg.StopTimeout):
		g.log.Warn("stop timeout, cycle still in flight",
			logger.Duration("timeout", g.cfg.StopTimeout))
	}

	g.pool.Stop()
	g.state.Store(stateStopped)
	g.log.Info("generator stopped")
	return nil
}

// GetLatestMetrics returns the latest cached snapshot for symbol, or a
// structured unavailable result. Cache-only: no network I/O, returns in
// well under a millisecond on a fast-tier hit.
func (g *SnapshotGenerator) GetLatestMetrics(symbol string) models.SnapshotResult {
	res := g.cache.Get(context.Background(), symbol)
	if res.Snapshot != nil {
		g.metrics.RecordSnapshotAge(symbol, time.Since(res.Snapshot.UpdatedAt).Seconds())
	}
	return res
}

func (g *SnapshotGenerator) run(ctx context.Context) {
	defer close(g.doneCh)

	ticker := time.NewTicker(g.cfg.UpdateInterval)
	defer ticker.Stop()

	// Kick the slow previous-day pass without delaying the first cycle.
	go g.refreshPrevDay(ctx)
	lastPrevDay := time.Now()

	cycle := 0
	for {
		cycle++
		g.runCycle(ctx, cycle)

		if time.Since(lastPrevDay) >= g.cfg.PrevDayInterval {
			lastPrevDay = time.Now()
			go g.refreshPrevDay(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runCycle processes all symbols once. A panic escaping the cycle body
// is caught here; the loop sleeps and retries instead of terminating.
func (g *SnapshotGenerator) runCycle(ctx context.Context, cycle int) {
	defer func() {
		if r := recover(); r != nil {
			g.metrics.RecordError("cycle_panic")
			g.log.Error("cycle panicked", logger.String("panic", fmt.Sprint(r)))
		}
	}()

	start := time.Now()
	var wg sync.WaitGroup
	for _, symbol := range g.cfg.Symbols {
		symbol := symbol
		wg.Add(1)
		err := g.pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			g.updateSymbol(ctx, symbol)
		})
		if err != nil {
			wg.Done()
			if ctx.Err() == nil {
				g.log.Warn("fetch pool rejected job",
					logger.String("symbol", symbol), logger.Error(err))
			}
		}
	}
	wg.Wait()

	if g.cfg.CleanupEveryCycles > 0 && cycle%g.cfg.CleanupEveryCycles == 0 {
		if err := g.cache.Cleanup(ctx); err != nil {
			g.log.Warn("cache cleanup failed", logger.Error(err))
		}
	}

	g.metrics.RecordCycle(time.Since(start).Seconds())
}

// updateSymbol fetches, computes, and caches one symbol. Failures are
// fully contained: the symbol gets an explicit unavailable snapshot and
// the cycle moves on.
func (g *SnapshotGenerator) updateSymbol(ctx context.Context, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			g.metrics.RecordError("symbol_panic")
			g.log.Error("symbol update panicked",
				logger.String("symbol", symbol),
				logger.String("panic", fmt.Sprint(r)))
			g.writeUnavailable(ctx, symbol, models.MarketUnknown, "internal computation error")
		}
	}()

	start := time.Now()
	now := time.Now()

	ticks, err := g.source.Fetch(ctx, symbol, now.Add(-time.Hour), now)
	if err != nil {
		g.metrics.RecordError("symbol_fetch")
		g.log.Warn("fetch failed", logger.String("symbol", symbol), logger.Error(err))
		g.writeUnavailable(ctx, symbol, models.MarketUnknown, err.Error())
		return
	}
	if len(ticks) == 0 {
		status := models.MarketClosed
		reason := "no ticks in range"
		if !g.bridge.IsConnected() {
			status = models.MarketUnknown
			reason = "terminal unavailable"
		}
		g.writeUnavailable(ctx, symbol, status, reason)
		return
	}

	baseline := g.baselineFor(symbol)
	snap := &models.SymbolSnapshot{
		Symbol:        symbol,
		Windows:       make(map[string]*models.MetricsWindow, 3),
		DataAvailable: true,
		MarketStatus:  models.MarketOpen,
		UpdatedAt:     now,
		ComputedAt:    now,
	}

	for _, tf := range drepo.RollingTimeframes() {
		sub := sliceSince(ticks, now.Add(-tf.Duration()).UnixMilli())
		w := analytics.Compute(sub, g.windowOpts(string(tf), tf.Duration(), baseline, now))
		snap.Windows[string(tf)] = &w
	}

	if h1 := snap.Windows[models.WindowH1]; h1 != nil {
		snap.QualityRatio = h1.QualityRatio
		if h1.QualityRatio < g.cfg.MinQualityH1 {
			g.log.Debug("low h1 data quality",
				logger.String("symbol", symbol),
				logger.Float64("quality", h1.QualityRatio))
		}
	}

	g.maybeRefreshPrevHour(ctx, symbol, now, baseline)

	g.mu.Lock()
	snap.PrevHour = g.prevHour[symbol]
	snap.PrevDay = g.prevDay[symbol]
	snap.PrevDayLoading = !g.prevDayDone[symbol]
	g.mu.Unlock()

	g.writeSnapshot(ctx, snap)
	g.metrics.RecordLatency("update_symbol", time.Since(start).Seconds())
}

// maybeRefreshPrevHour recomputes the fixed previous-clock-hour
// aggregate when the hour rolls over. Clock-aligned, unlike the rolling
// H1 window, and gated by its own quality threshold.
func (g *SnapshotGenerator) maybeRefreshPrevHour(ctx context.Context, symbol string, now time.Time, baseline float64) {
	key := util.HourKey(now)

	g.mu.Lock()
	if g.prevHourKey[symbol] == key {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	start, end := util.PreviousClockHour(now)
	ticks, err := g.source.Fetch(ctx, symbol, start, end)
	if err != nil {
		g.metrics.RecordError("prev_hour_fetch")
		g.log.Warn("previous hour fetch failed",
			logger.String("symbol", symbol), logger.Error(err))
		return
	}

	w := analytics.Compute(ticks, g.windowOpts("prev_hour", time.Hour, baseline, now))
	if w.TickCount > 0 && w.QualityRatio < g.cfg.MinQualityPrevHour {
		g.log.Debug("low previous-hour data quality",
			logger.String("symbol", symbol),
			logger.Float64("quality", w.QualityRatio))
	}

	g.mu.Lock()
	g.prevHour[symbol] = &w
	g.prevHourKey[symbol] = key
	g.mu.Unlock()
}

// refreshPrevDay recomputes the previous complete UTC day for every
// symbol. Runs on its own slow cadence and never blocks the cycle; the
// 24h fetch is chunked by the source adapter.
func (g *SnapshotGenerator) refreshPrevDay(ctx context.Context) {
	g.mu.Lock()
	if g.prevDayRunning {
		g.mu.Unlock()
		return
	}
	g.prevDayRunning = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.prevDayRunning = false
		g.mu.Unlock()
		if r := recover(); r != nil {
			g.metrics.RecordError("prev_day_panic")
			g.log.Error("previous day pass panicked", logger.String("panic", fmt.Sprint(r)))
		}
	}()

	for _, symbol := range g.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		now := time.Now()
		start, end := util.PreviousDay(now)

		ticks, err := g.source.Fetch(ctx, symbol, start, end)
		if err != nil {
			g.metrics.RecordError("prev_day_fetch")
			g.log.Warn("previous day fetch failed",
				logger.String("symbol", symbol), logger.Error(err))
			continue
		}

		w := analytics.Compute(ticks, g.windowOpts("prev_day", 24*time.Hour, 0, now))

		g.mu.Lock()
		g.prevDay[symbol] = &w
		g.prevDayDone[symbol] = true
		g.mu.Unlock()

		g.log.Debug("previous day refreshed",
			logger.String("symbol", symbol),
			logger.Int("ticks", w.TickCount),
			logger.Float64("volatility", w.Volatility))
	}
}

// baselineFor returns the previous-day realized volatility, or 0 when
// the slow pass has not produced one yet.
func (g *SnapshotGenerator) baselineFor(symbol string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.prevDay[symbol]; ok {
		return w.Volatility
	}
	return 0
}

func (g *SnapshotGenerator) windowOpts(timeframe string, window time.Duration, baseline float64, now time.Time) analytics.Options {
	return analytics.Options{
		Timeframe:             timeframe,
		Window:                window,
		BaselineVolatility:    baseline,
		AbsorptionVolumeMult:  g.cfg.AbsorptionVolumeMult,
		AbsorptionPriceTolPct: g.cfg.AbsorptionPriceTolPct,
		SpreadWideningMult:    g.cfg.SpreadWideningMult,
		VoidSpreadMult:        g.cfg.VoidSpreadMult,
		SlopePct:              g.cfg.CVDSlopePct,
		ComputedAt:            now,
	}
}

func (g *SnapshotGenerator) writeUnavailable(ctx context.Context, symbol string, status models.MarketStatus, reason string) {
	snap := models.NewUnavailableSnapshot(symbol, status, reason, time.Now())

	g.mu.Lock()
	snap.PrevHour = g.prevHour[symbol]
	snap.PrevDay = g.prevDay[symbol]
	snap.PrevDayLoading = !g.prevDayDone[symbol]
	g.mu.Unlock()

	g.writeSnapshot(ctx, snap)
}

func (g *SnapshotGenerator) writeSnapshot(ctx context.Context, snap *models.SymbolSnapshot) {
	err := g.cache.Set(ctx, snap)
	if err == nil {
		return
	}
	if errors.Is(err, internalrepo.ErrStaleSnapshot) {
		// A slower cycle lost the race against a newer write; the
		// cached snapshot is already the right one.
		g.log.Debug("stale snapshot dropped", logger.String("symbol", snap.Symbol))
		return
	}
	g.metrics.RecordError("cache_set")
	g.log.Warn("cache set failed",
		logger.String("symbol", snap.Symbol), logger.Error(err))
}

// sliceSince returns the suffix of the ascending tick sequence at or
// after cutoffMs. No copy: windows share the fetched batch, which is
// treated as immutable.
func sliceSince(ticks []models.Tick, cutoffMs int64) []models.Tick {
	i := sort.Search(len(ticks), func(i int) bool { return ticks[i].TimeMs >= cutoffMs })
	return ticks[i:]
}
