package analytics

import (
	"sort"

	"TickPulse/internal/domain/models"
)

type minuteBucket struct {
	volume    float64
	minPrice  float64
	maxPrice  float64
	sumPrice  float64
	tickCount int
}

// computeAbsorption buckets ticks into fixed one-minute intervals and
// flags buckets where unusually high volume failed to move price: a
// resting counter-order absorbing flow. A bucket qualifies when its
// volume exceeds the configured multiple of the window's mean
// per-minute volume while its price range stays under the tolerance,
// expressed as a percentage of the bucket's mean price.
func computeAbsorption(ticks []models.Tick, opts Options, w *models.MetricsWindow) {
	buckets := make(map[int64]*minuteBucket)
	var totalVolume float64

	for i := range ticks {
		t := &ticks[i]
		price := t.Last
		if price <= 0 {
			continue
		}
		vol := t.EffectiveVolume()

		key := t.TimeMs / 60_000
		b, ok := buckets[key]
		if !ok {
			b = &minuteBucket{minPrice: price, maxPrice: price}
			buckets[key] = b
		}
		if price < b.minPrice {
			b.minPrice = price
		}
		if price > b.maxPrice {
			b.maxPrice = price
		}
		b.volume += vol
		b.sumPrice += price
		b.tickCount++
		totalVolume += vol
	}

	if len(buckets) == 0 || totalVolume <= zeroEps {
		return
	}

	meanVolume := totalVolume / float64(len(buckets))
	volumeFloor := opts.AbsorptionVolumeMult * meanVolume

	var zones []models.AbsorptionZone
	var strengthSum float64

	for _, b := range buckets {
		if b.volume <= volumeFloor {
			continue
		}
		meanPrice := b.sumPrice / float64(b.tickCount)
		if meanPrice <= zeroEps {
			continue
		}
		rangePct := (b.maxPrice - b.minPrice) / meanPrice * 100
		if rangePct >= opts.AbsorptionPriceTolPct {
			continue
		}

		strength := b.volume / volumeFloor
		if strength > 1.0 {
			strength = 1.0
		}
		zones = append(zones, models.AbsorptionZone{
			Price:     meanPrice,
			Strength:  strength,
			Volume:    b.volume,
			TickCount: b.tickCount,
		})
		strengthSum += strength
	}

	if len(zones) == 0 {
		return
	}

	w.AbsorptionCount = len(zones)
	w.AbsorptionAvgStrength = strengthSum / float64(len(zones))

	sort.Slice(zones, func(i, j int) bool { return zones[i].Price < zones[j].Price })
	if len(zones) > 10 {
		zones = zones[:10]
	}
	w.AbsorptionZones = zones
}
