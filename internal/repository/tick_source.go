package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"TickPulse/internal/domain/models"
	drepo "TickPulse/internal/domain/repository"
	"TickPulse/internal/service/ratelimit"
	"TickPulse/pkg/logger"
)

// TickSourceConfig bounds how the adapter talks to the terminal.
type TickSourceConfig struct {
	TickLimit         int           // provider per-call tick limit
	TicksPerHourEst   int           // conservative per-hour tick rate for chunk sizing
	ReconnectAttempts int           // bounded reconnects before giving up
	ReconnectDelay    time.Duration // pause between reconnect attempts
	RequestsPerSec    float64       // pacing for sequential chunk requests
}

// TickSource pulls raw ticks for one symbol over a requested range,
// splitting the request into sequential sub-ranges whenever the
// estimated tick volume would exceed the provider's per-call limit.
// "Market closed" and "no ticks in range" are empty results, never
// errors.
type TickSource struct {
	bridge  drepo.TerminalBridge
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     TickSourceConfig
}

// NewTickSource creates the source adapter.
func NewTickSource(bridge drepo.TerminalBridge, limiter *ratelimit.Limiter, metrics drepo.Metrics, log *logger.Logger, cfg TickSourceConfig) *TickSource {
	return &TickSource{
		bridge:  bridge,
		limiter: limiter,
		metrics: metrics,
		log:     log.With("tick_source"),
		cfg:     cfg,
	}
}

// Fetch returns the ordered tick sequence for [start, end). A live
// connection is verified first; after bounded reconnect attempts the
// adapter returns empty with a warning rather than failing the caller.
func (s *TickSource) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]models.Tick, error) {
	if !end.After(start) {
		return nil, nil
	}

	if !s.ensureConnected(ctx) {
		s.log.Warn("terminal unavailable, returning empty",
			logger.String("symbol", symbol))
		s.metrics.RecordError("bridge_unavailable")
		return []models.Tick{}, nil
	}

	var out []models.Tick
	for _, sub := range s.splitRange(start, end) {
		if err := s.pace(ctx); err != nil {
			return nil, err
		}
		ticks, err := s.bridge.FetchTicks(ctx, symbol, sub.from, sub.to)
		if err != nil {
			s.metrics.RecordError("fetch")
			return nil, fmt.Errorf("fetch %s [%s, %s): %w",
				symbol, sub.from.Format(time.RFC3339), sub.to.Format(time.RFC3339), err)
		}
		if len(ticks) >= s.cfg.TickLimit {
			// Estimate was too low for this sub-range; the provider may
			// have truncated silently.
			s.log.Warn("chunk hit provider tick limit",
				logger.String("symbol", symbol),
				logger.Int("ticks", len(ticks)))
		}
		out = append(out, ticks...)
	}

	ensureOrdered(out)
	s.metrics.RecordTicksFetched(symbol, len(out))
	return out, nil
}

type subRange struct {
	from, to time.Time
}

// chunkSafety undershoots the provider limit when sizing sub-ranges, so
// a symbol ticking right at the estimate still fits in one call.
const chunkSafety = 0.9

// splitRange sizes sequential half-open sub-ranges so each stays under
// the provider limit at the conservative per-hour estimate. Half-open
// boundaries keep chunk joins free of gaps and duplicates.
func (s *TickSource) splitRange(start, end time.Time) []subRange {
	duration := end.Sub(start)
	estimated := float64(s.cfg.TicksPerHourEst) * duration.Hours()
	if estimated <= float64(s.cfg.TickLimit) {
		return []subRange{{from: start, to: end}}
	}

	chunk := time.Duration(float64(duration) * chunkSafety * float64(s.cfg.TickLimit) / estimated)
	if chunk < time.Minute {
		chunk = time.Minute
	}

	var subs []subRange
	for from := start; from.Before(end); from = from.Add(chunk) {
		to := from.Add(chunk)
		if to.After(end) {
			to = end
		}
		subs = append(subs, subRange{from: from, to: to})
	}
	return subs
}

func (s *TickSource) ensureConnected(ctx context.Context) bool {
	if s.bridge.IsConnected() {
		return true
	}
	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		err := s.bridge.Reconnect(ctx)
		if err == nil {
			return true
		}
		s.log.Debug("reconnect failed",
			logger.Int("attempt", attempt),
			logger.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
	return false
}

// pace throttles sequential provider calls so a long chunked fetch
// cannot saturate the terminal.
func (s *TickSource) pace(ctx context.Context) error {
	if s.limiter == nil || s.cfg.RequestsPerSec <= 0 {
		return nil
	}
	for !s.limiter.Allow("bridge", s.cfg.RequestsPerSec, s.cfg.RequestsPerSec) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

// ensureOrdered restores chronological order if the provider returned
// any chunk out of order. Stable so same-millisecond events keep their
// arrival order.
func ensureOrdered(ticks []models.Tick) {
	if sort.SliceIsSorted(ticks, func(i, j int) bool { return ticks[i].TimeMs < ticks[j].TimeMs }) {
		return
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].TimeMs < ticks[j].TimeMs })
}
