package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "TickPulse/internal/domain/repository"
	"TickPulse/internal/usecase"
	"TickPulse/pkg/config"
	"TickPulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App encapsulates the engine lifecycle: the snapshot generator, the
// cache tiers, the terminal bridge, and the optional metrics listener.
type App struct {
	cfg    *config.Config
	log    *logger.Logger
	gen    *usecase.SnapshotGenerator
	cache  drepo.SnapshotCache
	bridge drepo.TerminalBridge

	metricsSrv *http.Server
}

// New creates the App.
func New(
	cfg *config.Config,
	log *logger.Logger,
	gen *usecase.SnapshotGenerator,
	cache drepo.SnapshotCache,
	bridge drepo.TerminalBridge,
) *App {
	return &App{
		cfg:    cfg,
		log:    log,
		gen:    gen,
		cache:  cache,
		bridge: bridge,
	}
}

// Generator exposes the engine handle consumers use for
// GetLatestMetrics. Passed explicitly; there is no package-level
// singleton.
func (a *App) Generator() *usecase.SnapshotGenerator { return a.gen }

// Run starts the engine and blocks until interrupted.
func (a *App) Run() error {
	if err := a.gen.Start(); err != nil {
		return err
	}

	if a.cfg.Metrics.Enabled {
		a.startMetricsListener()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) startMetricsListener() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{
		Addr:         a.cfg.Metrics.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		a.log.Info("metrics listener started", logger.String("addr", a.cfg.Metrics.Addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics listener error", logger.Error(err))
		}
	}()
}

// shutdown stops the loop, then closes the cache and the bridge.
func (a *App) shutdown() error {
	if err := a.gen.Stop(); err != nil {
		a.log.Warn("generator stop error", logger.Error(err))
	}

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.log.Warn("metrics listener shutdown error", logger.Error(err))
		}
	}

	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close error", logger.Error(err))
	}
	if err := a.bridge.Close(); err != nil {
		a.log.Warn("bridge close error", logger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
