package models

import "time"

// TickFlags is a bitset describing which tick fields changed and which
// side aggressed, as reported by the terminal.
type TickFlags uint8

const (
	FlagBid TickFlags = 1 << iota
	FlagAsk
	FlagLast
	FlagVolume
	FlagBuy
	FlagSell
)

// Has reports whether any bit of mask is set.
func (f TickFlags) Has(mask TickFlags) bool { return f&mask != 0 }

// IsTrade reports whether the tick carries an aggressor side. Ticks
// without an aggressor still count for spread and activity statistics
// but contribute nothing to delta/flow sums.
func (f TickFlags) IsTrade() bool { return f&(FlagBuy|FlagSell) != 0 }

// Tick is a single market event at millisecond resolution.
type Tick struct {
	TimeMs     int64     `json:"t"`
	Bid        float64   `json:"b"`
	Ask        float64   `json:"a"`
	Last       float64   `json:"l"`
	Volume     float64   `json:"v"`  // integer lot count from the provider
	VolumeReal float64   `json:"vr"` // fractional volume, preferred when populated
	Flags      TickFlags `json:"f"`
}

// Time returns the event time.
func (t *Tick) Time() time.Time { return time.UnixMilli(t.TimeMs) }

// EffectiveVolume prefers the fractional volume field over the lot count.
func (t *Tick) EffectiveVolume() float64 {
	if t.VolumeReal > 0 {
		return t.VolumeReal
	}
	return t.Volume
}

// SpreadValue returns ask-bid when both sides are quoted, else 0.
func (t *Tick) SpreadValue() float64 {
	if t.Bid > 0 && t.Ask > t.Bid {
		return t.Ask - t.Bid
	}
	return 0
}

// HasSpread reports whether the tick carries a usable two-sided quote.
func (t *Tick) HasSpread() bool {
	return t.Bid > 0 && t.Ask > t.Bid
}
