package analytics

import (
	"TickPulse/internal/domain/models"
)

// computeSpread fills spread statistics and liquidity-void detection.
// Only ticks carrying a usable two-sided quote (bid > 0, ask > bid) are
// considered; a window with zero valid observations keeps all-zero
// statistics.
func computeSpread(ticks []models.Tick, opts Options, w *models.MetricsWindow) {
	spreads := make([]float64, 0, len(ticks))
	for i := range ticks {
		if ticks[i].HasSpread() {
			spreads = append(spreads, ticks[i].SpreadValue())
		}
	}
	if len(spreads) == 0 {
		return
	}

	mean, std := meanStd(spreads)
	maxSpread := spreads[0]
	for _, s := range spreads[1:] {
		if s > maxSpread {
			maxSpread = s
		}
	}

	widenings := 0
	if mean > zeroEps {
		threshold := opts.SpreadWideningMult * mean
		for _, s := range spreads {
			if s > threshold {
				widenings++
			}
		}
	}

	w.Spread = models.SpreadStats{
		Mean:      mean,
		Std:       std,
		Max:       maxSpread,
		Widenings: widenings,
	}

	computeVoids(spreads, opts, w)
}

// computeVoids flags spreads jumping beyond a multiple of the rolling
// mean of the spreads seen so far. A short warm-up of observations is
// required before the rolling mean is trusted.
func computeVoids(spreads []float64, opts Options, w *models.MetricsWindow) {
	const warmup = 5

	var rollingSum float64
	var magnitudes float64
	count := 0

	for i, s := range spreads {
		if i >= warmup {
			rollingMean := rollingSum / float64(i)
			if rollingMean > zeroEps && s > opts.VoidSpreadMult*rollingMean {
				count++
				magnitudes += s / rollingMean
			}
		}
		rollingSum += s
	}

	w.VoidCount = count
	if count > 0 {
		w.VoidAvgMagnitude = magnitudes / float64(count)
	}
}
