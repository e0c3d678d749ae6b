package cache

import (
	"io/fs"
	"time"
)

// MemoryOption configures the fast tier.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds fast-tier configuration.
type MemoryConfig struct {
	MaxSize    int
	DefaultTTL time.Duration
}

// WithMemoryMaxSize sets the max number of resident entries.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		if size > 0 {
			c.MaxSize = size
		}
	}
}

// WithMemoryTTL sets the default entry TTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		if ttl > 0 {
			c.DefaultTTL = ttl
		}
	}
}

// BoltOption configures the durable tier.
type BoltOption func(*BoltConfig)

// BoltConfig holds durable-tier configuration.
type BoltConfig struct {
	FileMode    fs.FileMode
	OpenTimeout time.Duration
}

// WithBoltFileMode sets the database file mode.
func WithBoltFileMode(mode fs.FileMode) BoltOption {
	return func(c *BoltConfig) {
		c.FileMode = mode
	}
}

// WithBoltOpenTimeout bounds how long Open waits for the file lock.
func WithBoltOpenTimeout(d time.Duration) BoltOption {
	return func(c *BoltConfig) {
		if d > 0 {
			c.OpenTimeout = d
		}
	}
}
