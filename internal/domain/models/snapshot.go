package models

import "time"

// MarketStatus describes what the engine currently knows about trading
// activity for a symbol.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "open"
	MarketClosed  MarketStatus = "closed"
	MarketUnknown MarketStatus = "unknown"
)

// Rolling window keys used in SymbolSnapshot.Windows.
const (
	WindowM5  = "m5"
	WindowM15 = "m15"
	WindowH1  = "h1"
)

// SymbolSnapshot is the full per-symbol record served to callers.
// Rolling windows cover "now minus N minutes"; PrevHour and PrevDay
// cover clock-aligned fixed periods and must not be conflated with
// the rolling ones.
type SymbolSnapshot struct {
	Symbol string `json:"symbol"`

	Windows  map[string]*MetricsWindow `json:"windows"`
	PrevHour *MetricsWindow            `json:"prev_hour,omitempty"`

	// PrevDay is computed on a slower, asynchronous cadence. Until it
	// has completed at least once the slot is nil and PrevDayLoading
	// is true.
	PrevDay        *MetricsWindow `json:"prev_day,omitempty"`
	PrevDayLoading bool           `json:"prev_day_loading"`

	DataAvailable bool         `json:"data_available"`
	MarketStatus  MarketStatus `json:"market_status"`
	StatusReason  string       `json:"status_reason,omitempty"`
	QualityRatio  float64      `json:"quality_ratio"`

	UpdatedAt  time.Time `json:"updated_at"`
	ComputedAt time.Time `json:"computed_at"`
}

// NewUnavailableSnapshot builds the explicit "no data" record written
// when a fetch returns nothing or fails. It is cached like any other
// snapshot so readers always get a structured answer.
func NewUnavailableSnapshot(symbol string, status MarketStatus, reason string, now time.Time) *SymbolSnapshot {
	return &SymbolSnapshot{
		Symbol:        symbol,
		Windows:       map[string]*MetricsWindow{},
		DataAvailable: false,
		MarketStatus:  status,
		StatusReason:  reason,
		UpdatedAt:     now,
		ComputedAt:    now,
	}
}

// CacheState is the freshness classification of a cache read.
type CacheState string

const (
	StateFresh       CacheState = "fresh"
	StateStale       CacheState = "stale"
	StateUnavailable CacheState = "unavailable"
)

// SnapshotResult is the structured answer of a cache read. Snapshot is
// nil only when State is StateUnavailable, in which case Reason says why.
type SnapshotResult struct {
	Snapshot *SymbolSnapshot `json:"snapshot,omitempty"`
	State    CacheState      `json:"state"`
	Reason   string          `json:"reason,omitempty"`
}
