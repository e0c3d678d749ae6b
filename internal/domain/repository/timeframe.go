package repository

import (
	"time"

	"TickPulse/internal/domain/models"
)

// Timeframe identifies one rolling aggregation window.
type Timeframe string

const (
	TFM5  Timeframe = models.WindowM5
	TFM15 Timeframe = models.WindowM15
	TFH1  Timeframe = models.WindowH1
)

// IsValidTimeframe returns true if tf is a supported rolling window.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TFM5, TFM15, TFH1:
		return true
	default:
		return false
	}
}

// RollingTimeframes lists the rolling windows recomputed every cycle,
// shortest first.
func RollingTimeframes() []Timeframe {
	return []Timeframe{TFM5, TFM15, TFH1}
}

// Duration returns the window length for a rolling timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TFM5:
		return 5 * time.Minute
	case TFM15:
		return 15 * time.Minute
	case TFH1:
		return time.Hour
	default:
		return time.Hour
	}
}
