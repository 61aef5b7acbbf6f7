package cache

import (
	"context"
	"time"
)

// Backend is a generic key/value store with per-entry TTL, satisfied by
// the sqlite-backed store and by the in-process LRU fallback. Each cache
// layer (L1/L3/L4) is a Backend keyed differently per keys.go.
type Backend interface {
	Get(ctx context.Context, key string) (value []byte, hit bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
