package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var snapshotsBucket = []byte("snapshots")

// BoltStore is the durable tier: an embedded bbolt file holding one
// sub-bucket per symbol, keyed by big-endian millisecond timestamp.
// Writes go through a single writer (the generator); readers are only
// used for fallback and cold-start recovery.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (and creates if absent) the store at path, including
// the parent directory.
func OpenBolt(path string, opts ...BoltOption) (*BoltStore, error) {
	cfg := &BoltConfig{
		FileMode:    0o600,
		OpenTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := bolt.Open(path, cfg.FileMode, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt store: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Put stores one serialized snapshot row under (symbol, ts).
func (bs *BoltStore) Put(symbol string, ts time.Time, data []byte) error {
	key := tsKey(ts)
	err := bs.db.Update(func(tx *bolt.Tx) error {
		sym, err := tx.Bucket(snapshotsBucket).CreateBucketIfNotExists([]byte(symbol))
		if err != nil {
			return err
		}
		return sym.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("bolt put %s: %w", symbol, err)
	}
	return nil
}

// Latest returns the newest row for symbol, or ErrCacheMiss.
func (bs *BoltStore) Latest(symbol string) ([]byte, time.Time, error) {
	var data []byte
	var ts time.Time

	err := bs.db.View(func(tx *bolt.Tx) error {
		sym := tx.Bucket(snapshotsBucket).Bucket([]byte(symbol))
		if sym == nil {
			return ErrCacheMiss
		}
		k, v := sym.Cursor().Last()
		if k == nil {
			return ErrCacheMiss
		}
		data = append([]byte(nil), v...)
		ts = keyTs(k)
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, ts, nil
}

// DeleteOlderThan removes all rows with timestamps before cutoff and
// reports how many were deleted.
func (bs *BoltStore) DeleteOlderThan(cutoff time.Time) (int, error) {
	limit := tsKey(cutoff)
	deleted := 0

	err := bs.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(snapshotsBucket)
		return root.ForEachBucket(func(name []byte) error {
			c := root.Bucket(name).Cursor()
			for k, _ := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, _ = c.Next() {
				if err := c.Delete(); err != nil {
					return err
				}
				deleted++
			}
			return nil
		})
	})
	if err != nil {
		return deleted, fmt.Errorf("bolt cleanup: %w", err)
	}
	return deleted, nil
}

// Close closes the underlying file.
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

func tsKey(ts time.Time) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(ts.UnixMilli()))
	return key[:]
}

func keyTs(key []byte) time.Time {
	if len(key) != 8 {
		return time.Time{}
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(key)))
}
