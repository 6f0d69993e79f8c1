// Package cache provides pluggable byte caches used to avoid recompiling
// batch manifests and re-exporting graph documents.
//
// Three backends are provided: FileCache for CLI usage, RedisCache for
// long-running servers, and NullCache to disable caching. All backends
// share the Cache interface and treat values as opaque bytes with an
// optional TTL.
package cache

import (
	"context"
	"time"
)

// Cache is the interface implemented by all cache backends.
//
// Get returns (data, true, nil) on a hit and (nil, false, nil) on a miss.
// Errors are reserved for backend failures (I/O, network), never for
// missing keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
