package repository

import (
	"context"
	"time"

	"TickPulse/internal/domain/models"
)

// TerminalBridge is the live connection to the upstream market-data
// terminal. FetchTicks is a single provider call and is subject to the
// provider's per-call tick limit; range splitting is the TickSource's job.
type TerminalBridge interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Reconnect(ctx context.Context) error
	FetchTicks(ctx context.Context, symbol string, from, to time.Time) ([]models.Tick, error)
	Close() error
}

// TickSource fetches the ordered tick sequence for a symbol and time
// range. An empty slice with a nil error means "no data" (market closed
// or nothing traded); it is never an error condition.
type TickSource interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error)
}

// SnapshotCache stores the latest per-symbol snapshot across a fast
// in-memory tier and a durable embedded tier. The cache owns entry
// lifecycle; callers only ever Set and Get.
type SnapshotCache interface {
	Set(ctx context.Context, snap *models.SymbolSnapshot) error
	Get(ctx context.Context, symbol string) models.SnapshotResult
	Cleanup(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the engine.
type Metrics interface {
	RecordCycle(seconds float64)
	RecordError(kind string)
	RecordTicksFetched(symbol string, n int)
	RecordCacheHit(tier string)
	RecordCacheMiss()
	RecordLatency(op string, seconds float64)
	RecordSnapshotAge(symbol string, seconds float64)
}
