// Package cache provides the two storage tiers backing the snapshot
// cache: a TTL-bounded in-process map and a durable embedded bbolt
// store keyed by (symbol, timestamp).
package cache

import "errors"

var (
	// ErrCacheMiss is returned when a key is absent or expired.
	ErrCacheMiss = errors.New("cache: key not found")
)
