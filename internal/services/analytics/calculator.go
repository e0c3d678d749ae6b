// Package analytics derives microstructure metrics from ordered tick
// sequences. Every function is pure and safe to call concurrently on
// immutable input; edge cases (empty input, single tick, zero
// baselines) degrade to defined zero values, never to errors.
package analytics

import (
	"math"
	"time"

	"TickPulse/internal/domain/models"
)

const zeroEps = 1e-9

// Options parameterizes one window computation. Zero-valued thresholds
// fall back to the defaults below.
type Options struct {
	Timeframe string
	Window    time.Duration

	// BaselineVolatility is the previous-day sigma used for the
	// volatility ratio. Non-positive means "no baseline yet".
	BaselineVolatility float64

	AbsorptionVolumeMult  float64 // bucket volume vs mean, default 2.0
	AbsorptionPriceTolPct float64 // max price range as % of mean price, default 0.05
	SpreadWideningMult    float64 // widening event threshold, default 2.0
	VoidSpreadMult        float64 // liquidity-void threshold, default 3.0
	SlopePct              float64 // CVD slope classification threshold, default 10.0

	ComputedAt time.Time
}

func (o Options) normalized() Options {
	if o.Window <= 0 {
		o.Window = time.Hour
	}
	if o.AbsorptionVolumeMult <= 1 {
		o.AbsorptionVolumeMult = 2.0
	}
	if o.AbsorptionPriceTolPct <= 0 {
		o.AbsorptionPriceTolPct = 0.05
	}
	if o.SpreadWideningMult <= 1 {
		o.SpreadWideningMult = 2.0
	}
	if o.VoidSpreadMult <= 1 {
		o.VoidSpreadMult = 3.0
	}
	if o.SlopePct <= 0 {
		o.SlopePct = 10.0
	}
	if o.ComputedAt.IsZero() {
		o.ComputedAt = time.Now()
	}
	return o
}

// Compute transforms an ordered tick sequence into a MetricsWindow.
// Empty input yields a zeroed window with neutral classifications.
func Compute(ticks []models.Tick, opts Options) models.MetricsWindow {
	opts = opts.normalized()

	w := models.MetricsWindow{
		Timeframe:    opts.Timeframe,
		CVDSlope:     models.SlopeFlat,
		DominantSide: models.SideNeutral,
		ComputedAt:   opts.ComputedAt,
	}
	if len(ticks) == 0 {
		return w
	}

	computeFlow(ticks, opts, &w)
	computeSpread(ticks, opts, &w)
	computeVolatility(ticks, opts, &w)
	computeAbsorption(ticks, opts, &w)
	computeActivity(ticks, opts, &w)
	return w
}

// computeFlow fills delta, CVD, slope, dominant side, and the data
// quality ratio. Ticks without an aggressor flag are excluded from the
// flow sums but still count toward the total for the quality ratio.
func computeFlow(ticks []models.Tick, opts Options, w *models.MetricsWindow) {
	var buyVol, sellVol float64
	tradeTicks := 0

	cumulative := cvdSeries(ticks)

	for i := range ticks {
		t := &ticks[i]
		if !t.Flags.IsTrade() {
			continue
		}
		tradeTicks++
		vol := t.EffectiveVolume()
		if t.Flags.Has(models.FlagBuy) {
			buyVol += vol
		}
		if t.Flags.Has(models.FlagSell) {
			sellVol += vol
		}
	}

	w.BuyVolume = buyVol
	w.SellVolume = sellVol
	w.Delta = buyVol - sellVol
	if n := len(cumulative); n > 0 {
		w.CumulativeDelta = cumulative[n-1]
	}
	w.CVDSlope = classifySlope(cumulative, opts.SlopePct)
	w.DominantSide = dominantSide(w.Delta)
	w.QualityRatio = float64(tradeTicks) / float64(len(ticks))
}

// cvdSeries buckets ticks into one-minute intervals and returns the
// running cumulative delta across them.
func cvdSeries(ticks []models.Tick) []float64 {
	var series []float64
	var bucket int64 = math.MinInt64
	cum := 0.0
	open := false

	for i := range ticks {
		t := &ticks[i]
		b := t.TimeMs / 60_000
		if b != bucket {
			if open {
				series = append(series, cum)
			}
			bucket = b
			open = true
		}
		if t.Flags.Has(models.FlagBuy) {
			cum += t.EffectiveVolume()
		}
		if t.Flags.Has(models.FlagSell) {
			cum -= t.EffectiveVolume()
		}
	}
	if open {
		series = append(series, cum)
	}
	return series
}

// classifySlope compares the first and last cumulative values. The
// percentage change is taken relative to the absolute first value; a
// near-zero first value degenerates to the sign of the last value.
func classifySlope(cumulative []float64, thresholdPct float64) models.CVDSlope {
	if len(cumulative) < 2 {
		return models.SlopeFlat
	}
	first := cumulative[0]
	last := cumulative[len(cumulative)-1]

	if math.Abs(first) < zeroEps {
		switch {
		case last > zeroEps:
			return models.SlopeUp
		case last < -zeroEps:
			return models.SlopeDown
		default:
			return models.SlopeFlat
		}
	}

	changePct := (last - first) / math.Abs(first) * 100
	switch {
	case changePct > thresholdPct:
		return models.SlopeUp
	case changePct < -thresholdPct:
		return models.SlopeDown
	default:
		return models.SlopeFlat
	}
}

func dominantSide(delta float64) models.Side {
	switch {
	case delta > zeroEps:
		return models.SideBuy
	case delta < -zeroEps:
		return models.SideSell
	default:
		return models.SideNeutral
	}
}

// computeActivity fills tick count, events/second, and the largest
// inter-tick gap.
func computeActivity(ticks []models.Tick, opts Options, w *models.MetricsWindow) {
	w.TickCount = len(ticks)
	if sec := opts.Window.Seconds(); sec > 0 {
		w.TicksPerSec = float64(len(ticks)) / sec
	}

	var maxGap int64
	for i := 1; i < len(ticks); i++ {
		if gap := ticks[i].TimeMs - ticks[i-1].TimeMs; gap > maxGap {
			maxGap = gap
		}
	}
	w.MaxGapMs = maxGap
}
