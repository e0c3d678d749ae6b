package analytics

import (
	"math"
	"testing"
	"time"

	"TickPulse/internal/domain/models"
)

func tradeTick(ms int64, price, vol float64, flags models.TickFlags) models.Tick {
	return models.Tick{TimeMs: ms, Last: price, VolumeReal: vol, Flags: models.FlagLast | models.FlagVolume | flags}
}

func quoteTick(ms int64, bid, ask float64) models.Tick {
	return models.Tick{TimeMs: ms, Bid: bid, Ask: ask, Flags: models.FlagBid | models.FlagAsk}
}

func baseOpts(window time.Duration) Options {
	return Options{Timeframe: "test", Window: window, ComputedAt: time.Unix(1700000000, 0)}
}

func TestComputeDeltaDominantBuy(t *testing.T) {
	start := int64(1700000000000)
	ticks := make([]models.Tick, 0, 1000)
	for i := 0; i < 1000; i++ {
		flags := models.FlagBuy
		if i >= 700 {
			flags = models.FlagSell
		}
		ticks = append(ticks, tradeTick(start+int64(i)*100, 100.0, 1.0, flags))
	}

	w := Compute(ticks, baseOpts(time.Hour))
	if w.Delta != 400 {
		t.Fatalf("expected delta +400, got %v", w.Delta)
	}
	if w.DominantSide != models.SideBuy {
		t.Fatalf("expected dominant side buy, got %v", w.DominantSide)
	}
	if w.BuyVolume != 700 || w.SellVolume != 300 {
		t.Fatalf("unexpected flow volumes: buy=%v sell=%v", w.BuyVolume, w.SellVolume)
	}
}

func TestComputeEmptyInput(t *testing.T) {
	w := Compute(nil, baseOpts(5*time.Minute))
	if w.TickCount != 0 || w.Delta != 0 || w.Volatility != 0 || w.QualityRatio != 0 {
		t.Fatalf("expected zeroed window, got %+v", w)
	}
	if w.CVDSlope != models.SlopeFlat {
		t.Fatalf("expected flat slope, got %v", w.CVDSlope)
	}
	if w.DominantSide != models.SideNeutral {
		t.Fatalf("expected neutral side, got %v", w.DominantSide)
	}
}

func TestFlowVolumeBounds(t *testing.T) {
	start := int64(1700000000000)
	ticks := []models.Tick{
		tradeTick(start, 100, 2.5, models.FlagBuy),
		tradeTick(start+100, 100, 1.5, models.FlagSell),
		// quote-only event: counts for activity, not for flow
		quoteTick(start+200, 99.9, 100.1),
		tradeTick(start+300, 100, 3.0, models.FlagBuy),
	}

	w := Compute(ticks, baseOpts(time.Minute))

	total := 0.0
	for i := range ticks {
		total += ticks[i].EffectiveVolume()
	}
	if w.BuyVolume < 0 || w.SellVolume < 0 {
		t.Fatalf("negative flow volumes: %+v", w)
	}
	if w.BuyVolume+w.SellVolume > total {
		t.Fatalf("flow volume %v exceeds total %v", w.BuyVolume+w.SellVolume, total)
	}
	if w.QualityRatio < 0 || w.QualityRatio > 1 {
		t.Fatalf("quality ratio out of [0,1]: %v", w.QualityRatio)
	}
	if w.QualityRatio != 0.75 {
		t.Fatalf("expected quality 0.75, got %v", w.QualityRatio)
	}
	if w.TickCount != 4 {
		t.Fatalf("quote-only tick dropped from activity count: %d", w.TickCount)
	}
}

func TestSlopeDeterministic(t *testing.T) {
	start := int64(1700000000000)
	var ticks []models.Tick
	for i := 0; i < 300; i++ {
		flags := models.FlagBuy
		if i%3 == 0 {
			flags = models.FlagSell
		}
		ticks = append(ticks, tradeTick(start+int64(i)*1000, 100, 1, flags))
	}

	first := Compute(ticks, baseOpts(5*time.Minute))
	second := Compute(ticks, baseOpts(5*time.Minute))
	if first.CVDSlope != second.CVDSlope {
		t.Fatalf("slope not deterministic: %v vs %v", first.CVDSlope, second.CVDSlope)
	}
	if first.Delta != second.Delta || first.CumulativeDelta != second.CumulativeDelta {
		t.Fatalf("flow not deterministic")
	}
}

func TestSlopeNearZeroFirstBucket(t *testing.T) {
	start := int64(1700000000000)
	ticks := []models.Tick{
		// first minute nets to zero
		tradeTick(start, 100, 1, models.FlagBuy),
		tradeTick(start+1000, 100, 1, models.FlagSell),
		// later minutes accumulate buys
		tradeTick(start+61_000, 100, 2, models.FlagBuy),
		tradeTick(start+121_000, 100, 2, models.FlagBuy),
	}

	w := Compute(ticks, baseOpts(5*time.Minute))
	if w.CVDSlope != models.SlopeUp {
		t.Fatalf("expected up slope from sign of last value, got %v", w.CVDSlope)
	}
}

func TestVolatilityRatioNeutralFallback(t *testing.T) {
	start := int64(1700000000000)
	ticks := []models.Tick{
		tradeTick(start, 100.00, 1, models.FlagBuy),
		tradeTick(start+1000, 100.10, 1, models.FlagBuy),
		tradeTick(start+2000, 99.95, 1, models.FlagSell),
		tradeTick(start+3000, 100.05, 1, models.FlagBuy),
	}

	opts := baseOpts(time.Minute)
	opts.BaselineVolatility = 0 // previous-day baseline unknown
	w := Compute(ticks, opts)

	if w.Volatility <= 0 {
		t.Fatalf("expected positive realized volatility, got %v", w.Volatility)
	}
	if w.VolatilityRatio != 1.0 {
		t.Fatalf("expected neutral ratio 1.0, got %v", w.VolatilityRatio)
	}

	opts.BaselineVolatility = w.Volatility * 2
	w2 := Compute(ticks, opts)
	if math.Abs(w2.VolatilityRatio-0.5) > 1e-9 {
		t.Fatalf("expected ratio 0.5 against doubled baseline, got %v", w2.VolatilityRatio)
	}
}

func TestAbsorptionZoneStrengthCapped(t *testing.T) {
	start := int64(1700000000000)
	var ticks []models.Tick

	// 19 quiet minutes with unit volume at distinct price levels.
	for i := 0; i < 19; i++ {
		ms := start + int64(i)*60_000
		ticks = append(ticks, tradeTick(ms, 100+float64(i), 1.0, models.FlagBuy))
	}
	// One heavy minute: volume 19 (10x the per-minute mean of 1.9) with
	// a price range of 0.02% around 100.
	heavy := start + 19*60_000
	ticks = append(ticks,
		tradeTick(heavy, 100.00, 9.5, models.FlagBuy),
		tradeTick(heavy+1000, 100.02, 9.5, models.FlagSell),
	)

	w := Compute(ticks, baseOpts(20*time.Minute))
	if w.AbsorptionCount != 1 {
		t.Fatalf("expected exactly one absorption zone, got %d", w.AbsorptionCount)
	}
	zone := w.AbsorptionZones[0]
	if zone.Strength != 1.0 {
		t.Fatalf("expected strength capped at 1.0, got %v", zone.Strength)
	}
	if zone.Volume != 19 {
		t.Fatalf("expected zone volume 19, got %v", zone.Volume)
	}
}

func TestSpreadStatsZeroObservations(t *testing.T) {
	start := int64(1700000000000)
	ticks := []models.Tick{
		tradeTick(start, 100, 1, models.FlagBuy),
		tradeTick(start+1000, 100, 1, models.FlagSell),
	}

	w := Compute(ticks, baseOpts(time.Minute))
	if w.Spread.Mean != 0 || w.Spread.Std != 0 || w.Spread.Max != 0 || w.Spread.Widenings != 0 {
		t.Fatalf("expected all-zero spread stats, got %+v", w.Spread)
	}
}

func TestSpreadWideningsCounted(t *testing.T) {
	start := int64(1700000000000)
	var ticks []models.Tick
	for i := 0; i < 50; i++ {
		ticks = append(ticks, quoteTick(start+int64(i)*1000, 100.00, 100.01))
	}
	// one jump well past 2x the mean spread
	ticks = append(ticks, quoteTick(start+51_000, 100.00, 100.10))

	w := Compute(ticks, baseOpts(time.Minute))
	if w.Spread.Widenings != 1 {
		t.Fatalf("expected 1 widening event, got %d", w.Spread.Widenings)
	}
	if w.VoidCount != 1 {
		t.Fatalf("expected 1 liquidity void, got %d", w.VoidCount)
	}
	if w.VoidAvgMagnitude <= 1 {
		t.Fatalf("expected void magnitude above 1, got %v", w.VoidAvgMagnitude)
	}
}

func TestActivityStats(t *testing.T) {
	start := int64(1700000000000)
	ticks := []models.Tick{
		tradeTick(start, 100, 1, models.FlagBuy),
		tradeTick(start+500, 100, 1, models.FlagBuy),
		tradeTick(start+10_500, 100, 1, models.FlagSell),
	}

	w := Compute(ticks, baseOpts(time.Minute))
	if w.TickCount != 3 {
		t.Fatalf("expected 3 ticks, got %d", w.TickCount)
	}
	if w.MaxGapMs != 10_000 {
		t.Fatalf("expected max gap 10000ms, got %d", w.MaxGapMs)
	}
	if math.Abs(w.TicksPerSec-0.05) > 1e-9 {
		t.Fatalf("expected 0.05 ticks/sec over 60s, got %v", w.TicksPerSec)
	}
}
