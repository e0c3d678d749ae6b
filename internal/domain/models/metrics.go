package models

import "time"

// CVDSlope classifies the direction of cumulative volume delta over a window.
type CVDSlope string

const (
	SlopeUp   CVDSlope = "up"
	SlopeDown CVDSlope = "down"
	SlopeFlat CVDSlope = "flat"
)

// Side marks the dominant aggressor side of a window.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideNeutral Side = "neutral"
)

// SpreadStats summarizes bid/ask spread behavior over a window.
type SpreadStats struct {
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Max       float64 `json:"max"`
	Widenings int     `json:"widenings"` // spread observations above the widening threshold
}

// AbsorptionZone is a one-minute price level where high volume failed
// to move price.
type AbsorptionZone struct {
	Price     float64 `json:"price"`
	Strength  float64 `json:"strength"` // 0..1
	Volume    float64 `json:"volume"`
	TickCount int     `json:"tick_count"`
}

// MetricsWindow is the computed microstructure record for one
// (symbol, timeframe) pair. Instances are immutable once built; a new
// aggregation cycle replaces the previous one atomically.
type MetricsWindow struct {
	Timeframe string `json:"timeframe"`

	Volatility      float64 `json:"volatility"`
	VolatilityRatio float64 `json:"volatility_ratio"`

	Delta           float64  `json:"delta"`
	CumulativeDelta float64  `json:"cumulative_delta"`
	BuyVolume       float64  `json:"buy_volume"`
	SellVolume      float64  `json:"sell_volume"`
	CVDSlope        CVDSlope `json:"cvd_slope"`
	DominantSide    Side     `json:"dominant_side"`

	Spread SpreadStats `json:"spread"`

	AbsorptionZones       []AbsorptionZone `json:"absorption_zones,omitempty"`
	AbsorptionCount       int              `json:"absorption_count"`
	AbsorptionAvgStrength float64          `json:"absorption_avg_strength"`

	VoidCount        int     `json:"void_count"`
	VoidAvgMagnitude float64 `json:"void_avg_magnitude"`

	TickCount   int     `json:"tick_count"`
	TicksPerSec float64 `json:"ticks_per_sec"`
	MaxGapMs    int64   `json:"max_gap_ms"`

	QualityRatio float64 `json:"quality_ratio"` // trade ticks / total ticks

	ComputedAt time.Time `json:"computed_at"`
}
