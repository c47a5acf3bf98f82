// Package kv provides the small key-value store that holds rate-limit state
// and unique-impression markers.
//
// Every implementation enforces the locking discipline itself: Update is an
// atomic read-modify-write of one key and CreateIfAbsent succeeds for exactly
// one caller. Call sites never lock.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrConflict is returned when an optimistic update kept losing races.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// UpdateFunc computes the next value from the current one.
// current is nil when the key does not exist. Returning a nil next leaves the
// stored value untouched. ttl is honoured by stores that support expiry.
type UpdateFunc func(current []byte) (next []byte, ttl time.Duration, err error)

// Store is a durable key-value store safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put unconditionally stores value.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CreateIfAbsent stores value only if key does not exist and reports
	// whether this call created it.
	CreateIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Update atomically applies fn to the value of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// DeleteFunc deletes keys under prefix for which match returns true and
	// returns how many were deleted.
	DeleteFunc(ctx context.Context, prefix string, match func(key string, value []byte) bool) (int, error)
	// Ping checks the store is usable.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}
