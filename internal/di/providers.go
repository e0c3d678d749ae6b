package di

import (
	"fmt"

	drepo "TickPulse/internal/domain/repository"
	mid "TickPulse/internal/middleware"
	internalrepo "TickPulse/internal/repository"
	"TickPulse/internal/service/mtbridge"
	"TickPulse/internal/service/ratelimit"
	"TickPulse/internal/usecase"
	"TickPulse/pkg/cache"
	"TickPulse/pkg/config"
	"TickPulse/pkg/logger"
	"TickPulse/pkg/metrics"
	"TickPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the metrics recorder; a no-op one when
// metrics are disabled.
func ProvideMetrics(cfg *config.Config) drepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Noop{}
	}
	return metrics.New()
}

// ProvideBridge creates the terminal bridge client.
func ProvideBridge(cfg *config.Config, log *logger.Logger) drepo.TerminalBridge {
	return mtbridge.New(
		cfg.Bridge.URL,
		cfg.Bridge.ConnectTimeout,
		cfg.Bridge.RequestTimeout,
		log,
	)
}

// ProvideLimiter creates the request pacing limiter shared by chunked
// fetches.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideTickSource creates the chunking source adapter.
func ProvideTickSource(bridge drepo.TerminalBridge, limiter *ratelimit.Limiter, m drepo.Metrics, log *logger.Logger, cfg *config.Config) drepo.TickSource {
	return internalrepo.NewTickSource(bridge, limiter, m, log, internalrepo.TickSourceConfig{
		TickLimit:         cfg.Bridge.TickLimit,
		TicksPerHourEst:   cfg.Bridge.TicksPerHourEst,
		ReconnectAttempts: cfg.Bridge.ReconnectAttempts,
		ReconnectDelay:    cfg.Bridge.ReconnectDelay,
		RequestsPerSec:    cfg.Bridge.RequestsPerSec,
	})
}

// ProvideSnapshotCache creates the two-tier snapshot cache, opening
// (and creating if absent) the durable store file.
func ProvideSnapshotCache(cfg *config.Config, m drepo.Metrics, log *logger.Logger) (drepo.SnapshotCache, error) {
	durable, err := cache.OpenBolt(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot cache: %w", err)
	}
	mem := cache.NewMemoryCache(
		cache.WithMemoryTTL(cfg.Cache.TTL),
		cache.WithMemoryMaxSize(4*len(cfg.Engine.Symbols)),
	)
	return internalrepo.NewSnapshotStore(mem, durable, cfg.Cache.TTL, cfg.Cache.Retention, m, log), nil
}

// ProvideFetchPool creates the bounded pool offloading blocking fetches.
func ProvideFetchPool(cfg *config.Config, m drepo.Metrics) *mid.FetchPool {
	return mid.NewFetchPool(m,
		mid.WithWorkers(cfg.Engine.FetchWorkers),
		mid.WithQueueSize(2*len(cfg.Engine.Symbols)+8),
	)
}

// ProvideGenerator creates the snapshot generator.
func ProvideGenerator(
	source drepo.TickSource,
	bridge drepo.TerminalBridge,
	snapCache drepo.SnapshotCache,
	pool *mid.FetchPool,
	m drepo.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.SnapshotGenerator {
	return usecase.NewSnapshotGenerator(source, bridge, snapCache, pool, m, log, usecase.GeneratorConfig{
		Symbols:               cfg.Engine.Symbols,
		UpdateInterval:        cfg.Engine.UpdateInterval,
		PrevDayInterval:       cfg.Engine.PrevDayInterval,
		CleanupEveryCycles:    cfg.Cache.CleanupEveryCycles,
		StopTimeout:           cfg.Engine.StopTimeout,
		AbsorptionVolumeMult:  cfg.Thresholds.AbsorptionVolumeMult,
		AbsorptionPriceTolPct: cfg.Thresholds.AbsorptionPriceTol,
		SpreadWideningMult:    cfg.Thresholds.SpreadWideningMult,
		VoidSpreadMult:        cfg.Thresholds.VoidSpreadMult,
		CVDSlopePct:           cfg.Thresholds.CVDSlopePct,
		MinQualityH1:          cfg.Engine.MinQualityH1,
		MinQualityPrevHour:    cfg.Engine.MinQualityPrevHr,
	})
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	gen *usecase.SnapshotGenerator,
	snapCache drepo.SnapshotCache,
	bridge drepo.TerminalBridge,
) *server.App {
	return server.New(cfg, log, gen, snapCache, bridge)
}
