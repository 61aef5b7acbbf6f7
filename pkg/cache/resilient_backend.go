package cache

import (
	"context"
	"log/slog"
	"time"
)

// resilientBackend wraps a primary Backend (sqlite) with the in-process
// lruFallback, so a primary-store failure degrades the layer to a small
// bounded memory cache instead of taking the layer fully offline (spec
// §4.3 / §7: persistence failures should degrade, not escalate to
// FatalError).
type resilientBackend struct {
	primary  Backend
	fallback *lruFallback
	logger   *slog.Logger
}

func newResilientBackend(primary Backend, fallbackCapacity int, logger *slog.Logger) *resilientBackend {
	return &resilientBackend{
		primary:  primary,
		fallback: newLRUFallback(fallbackCapacity),
		logger:   logger,
	}
}

func (b *resilientBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, hit, err := b.primary.Get(ctx, key)
	if err == nil {
		return v, hit, nil
	}
	b.logger.Warn("cache primary backend get failed, falling back to in-process cache", "error", err)
	return b.fallback.Get(ctx, key)
}

func (b *resilientBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.primary.Set(ctx, key, value, ttl); err != nil {
		b.logger.Warn("cache primary backend set failed, writing to in-process cache only", "error", err)
		return b.fallback.Set(ctx, key, value, ttl)
	}
	return nil
}

func (b *resilientBackend) Close() error {
	return b.primary.Close()
}
