package analytics

import (
	"math"

	"TickPulse/internal/domain/models"
)

// computeVolatility fills realized volatility (standard deviation of
// log returns between consecutive trade prices) and the ratio against
// the previous-day baseline. With no usable baseline the ratio is a
// neutral 1.0, never a division error.
func computeVolatility(ticks []models.Tick, opts Options, w *models.MetricsWindow) {
	returns := logReturns(ticks)
	if len(returns) >= 2 {
		_, std := meanStd(returns)
		w.Volatility = std
	}

	if opts.BaselineVolatility > zeroEps {
		w.VolatilityRatio = w.Volatility / opts.BaselineVolatility
	} else {
		w.VolatilityRatio = 1.0
	}
}

// logReturns computes r_i = ln(p_i / p_{i-1}) over consecutive positive
// trade prices. Returns nil when fewer than two prices are present.
func logReturns(ticks []models.Tick) []float64 {
	var out []float64
	prev := 0.0
	for i := range ticks {
		cur := ticks[i].Last
		if cur <= 0 {
			continue
		}
		if prev > 0 {
			out = append(out, math.Log(cur/prev))
		}
		prev = cur
	}
	return out
}

// meanStd returns the mean and sample standard deviation of values.
func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if n < 2 {
		return mean, 0
	}

	sum2 := 0.0
	for _, v := range values {
		d := v - mean
		sum2 += d * d
	}
	variance := sum2 / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
