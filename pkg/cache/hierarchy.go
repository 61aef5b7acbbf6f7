// Package cache implements the four-tier CacheHierarchy from spec §4.3:
// L1 exact-context match, L2 semantic similarity, L3 intent-only, L4
// knowledge retrieval. Layers are consulted in order; a miss at every
// layer leaves population to the caller.
package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/canadianpizza/orderbot-core/pkg/config"
)

// Layer identifies which tier served or should serve a lookup, used by
// callers to tag metrics (cache hit rate per layer, spec §4.3/§6).
type Layer string

const (
	LayerL1   Layer = "l1"
	LayerL2   Layer = "l2"
	LayerL3   Layer = "l3"
	LayerL4   Layer = "l4"
	LayerMiss Layer = "miss"
)

// Hierarchy composes all four layers plus the singleflight group that
// coalesces concurrent misses for the same key (SPEC_FULL.md §11: two
// goroutines computing the same L1 key at once should not both pay for an
// LLM call).
type Hierarchy struct {
	cfg config.CacheTTLConfig

	l1 *resilientBackend
	l3 *resilientBackend
	l4 *resilientBackend
	l2 *semanticStore

	sharedStore *sqliteBackend // backs l1/l3/l4; kept for Purge

	embedder Embedder
	sf       singleflight.Group

	logger *slog.Logger
}

// Options configures a Hierarchy's storage backends.
type Options struct {
	// SQLitePath is the file backing L1/L3/L4. All three layers share a
	// single table; their entries differ only by key prefix (see keys.go).
	SQLitePath string
	// FallbackCapacity bounds the in-process LRU used when the sqlite
	// backend is unreachable.
	FallbackCapacity int
	// SemanticMaxRecords bounds the in-memory L2 vector index.
	SemanticMaxRecords int
	// Embedder produces message embeddings for L2 lookups/inserts. May be
	// nil, in which case L2 is disabled and every lookup is a pass-through
	// miss (spec §9: "L2 is optional; implementations MAY ship without
	// it").
	Embedder Embedder
	Logger   *slog.Logger
}

// New constructs a Hierarchy backed by a single sqlite file for
// L1/L3/L4 and an in-memory vector index for L2.
func New(cfg config.CacheTTLConfig, opts Options) (*Hierarchy, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := newSQLiteBackend(opts.SQLitePath)
	if err != nil {
		return nil, err
	}

	fallbackCap := opts.FallbackCapacity
	if fallbackCap <= 0 {
		fallbackCap = 1000
	}

	h := &Hierarchy{
		cfg:         cfg,
		l1:          newResilientBackend(store, fallbackCap, logger),
		l3:          newResilientBackend(store, fallbackCap, logger),
		l4:          newResilientBackend(store, fallbackCap, logger),
		sharedStore: store,
		embedder:    opts.Embedder,
		logger:      logger,
	}
	if opts.Embedder != nil {
		maxRecords := opts.SemanticMaxRecords
		if maxRecords <= 0 {
			maxRecords = 5000
		}
		h.l2 = newSemanticStore(0.95, maxRecords)
	}
	return h, nil
}

// Close releases the sqlite connection shared by L1/L3/L4.
func (h *Hierarchy) Close() error {
	return h.l1.Close()
}

// Purge removes expired rows from the sqlite store backing L1/L3/L4.
// L1/L3/L4 share one underlying file (they differ only by key prefix),
// so this purges once rather than once per layer. Intended to be called
// periodically by pkg/cleanup. L2 needs no purge: semanticStore bounds
// itself by eviction on insert.
func (h *Hierarchy) Purge(ctx context.Context) (int64, error) {
	return h.sharedStore.Purge(ctx)
}

// PingL1 verifies the sqlite file backing L1/L3/L4 is reachable, used by
// the /health endpoint (spec §6.2).
func (h *Hierarchy) PingL1(ctx context.Context) error {
	return h.sharedStore.Ping(ctx)
}

// L2Enabled reports whether the semantic layer has an embedder configured
// (spec §9: "L2 is optional; implementations MAY ship without it").
func (h *Hierarchy) L2Enabled() bool {
	return h.l2 != nil && h.embedder != nil
}

// LookupL1 consults the exact-context layer.
func (h *Hierarchy) LookupL1(ctx context.Context, key string, dest any) (hit bool, err error) {
	return h.lookup(ctx, h.l1, key, dest)
}

// StoreL1 populates the exact-context layer.
func (h *Hierarchy) StoreL1(ctx context.Context, key string, value any) error {
	return h.store(ctx, h.l1, key, value, h.cfg.L1)
}

// LookupL3 consults the context-free intent cache.
func (h *Hierarchy) LookupL3(ctx context.Context, key string, dest any) (hit bool, err error) {
	return h.lookup(ctx, h.l3, key, dest)
}

// StoreL3 populates the context-free intent cache.
func (h *Hierarchy) StoreL3(ctx context.Context, key string, value any) error {
	return h.store(ctx, h.l3, key, value, h.cfg.L3)
}

// LookupL4 consults the knowledge-retrieval cache.
func (h *Hierarchy) LookupL4(ctx context.Context, key string, dest any) (hit bool, err error) {
	return h.lookup(ctx, h.l4, key, dest)
}

// StoreL4 populates the knowledge-retrieval cache.
func (h *Hierarchy) StoreL4(ctx context.Context, key string, value any) error {
	return h.store(ctx, h.l4, key, value, h.cfg.L4)
}

// LookupL2 embeds text and searches the semantic index for a paraphrase
// match. Returns a miss without error if L2 is disabled (no Embedder
// configured).
func (h *Hierarchy) LookupL2(ctx context.Context, text string, dest any) (hit bool, err error) {
	if h.l2 == nil || h.embedder == nil {
		return false, nil
	}
	vec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		h.logger.Warn("embedding request failed, treating as L2 miss", "error", err)
		return false, nil
	}
	value, hit := h.l2.Lookup(ctx, vec)
	if !hit {
		return false, nil
	}
	if err := unmarshalCachedResponse(value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// StoreL2 embeds text and inserts it into the semantic index. A no-op if
// L2 is disabled.
func (h *Hierarchy) StoreL2(ctx context.Context, key, text string, value any) error {
	if h.l2 == nil || h.embedder == nil {
		return nil
	}
	vec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		h.logger.Warn("embedding request failed, skipping L2 population", "error", err)
		return nil
	}
	data, err := marshalCachedResponse(value)
	if err != nil {
		return err
	}
	h.l2.Insert(ctx, key, vec, data, h.cfg.L2)
	return nil
}

// Coalesce collapses concurrent callers computing the same key into a
// single in-flight compute, per SPEC_FULL.md §11. fn is only invoked
// once per unique key among callers racing at the same instant.
func (h *Hierarchy) Coalesce(key string, fn func() (any, error)) (any, error, bool) {
	return h.sf.Do(key, fn)
}

func (h *Hierarchy) lookup(ctx context.Context, backend Backend, key string, dest any) (bool, error) {
	data, hit, err := backend.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !hit {
		return false, nil
	}
	if err := unmarshalCachedResponse(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Hierarchy) store(ctx context.Context, backend Backend, key string, value any, ttl time.Duration) error {
	data, err := marshalCachedResponse(value)
	if err != nil {
		return err
	}
	return backend.Set(ctx, key, data, ttl)
}
