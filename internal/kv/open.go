package kv

import (
	"context"
	"fmt"
	"time"
)

// Supported backends.
const (
	BackendBolt  = "bolt"
	BackendRedis = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Path        string        // bolt database file
	OpenTimeout time.Duration // bolt file lock wait
	RedisURL    string
}

// Open returns the Store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendBolt, "":
		return NewBoltStore(opts.Path, opts.OpenTimeout)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown state backend %q", opts.Backend)
	}
}
