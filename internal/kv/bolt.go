package kv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

// stateBucket holds every key of the store.
var stateBucket = []byte("state")

// BoltStore implements Store on a single bbolt file.
// bbolt serializes write transactions, so Update and CreateIfAbsent are
// atomic across goroutines. The file is locked for the lifetime of the
// process; use RedisStore when several processes share state.
type BoltStore struct {
	db     *bolt.DB
	closed atomic.Bool
}

// NewBoltStore opens (or creates) the database at path.
// openTimeout bounds the wait for the file lock held by another process.
func NewBoltStore(path string, openTimeout time.Duration) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create state bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns the value for key.
func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.usable(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(stateBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid inside the transaction
		value = bytes.Clone(v)
		return nil
	})
	return value, err
}

// Put stores value. ttl is ignored; expiry is handled by DeleteFunc.
func (s *BoltStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.usable(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), value)
	})
}

// CreateIfAbsent stores value if key is missing.
func (s *BoltStore) CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := s.usable(ctx); err != nil {
		return false, err
	}

	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Update applies fn inside one write transaction.
func (s *BoltStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if err := s.usable(ctx); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)

		var current []byte
		if v := b.Get([]byte(key)); v != nil {
			current = bytes.Clone(v)
		}

		next, _, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return b.Put([]byte(key), next)
	})
}

// DeleteFunc deletes matching keys under prefix.
func (s *BoltStore) DeleteFunc(ctx context.Context, prefix string, match func(key string, value []byte) bool) (int, error) {
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(stateBucket)
		p := []byte(prefix)

		// Collect first: deleting through a live cursor skips entries.
		var doomed [][]byte
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			if match(string(k), v) {
				doomed = append(doomed, bytes.Clone(k))
			}
		}

		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		deleted = len(doomed)
		return nil
	})
	return deleted, err
}

// Ping verifies the database file is still present and open.
func (s *BoltStore) Ping(ctx context.Context) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if _, err := os.Stat(s.db.Path()); err != nil {
		return fmt.Errorf("stat bolt db: %w", err)
	}
	return nil
}

// Close closes the database and releases the file lock.
func (s *BoltStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func (s *BoltStore) usable(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}
