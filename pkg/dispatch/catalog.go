package dispatch

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
)

var errNoEmbedder = errors.New("dispatch: catalog has no embedder configured")

// Product is a catalog entry eligible for semantic matching against a
// free-text product description (spec §4.8 stage 1).
type Product struct {
	SKU  string
	Name string
}

// ProductMatch is a scored catalog hit.
type ProductMatch struct {
	Product Product
	Score   float64
}

// ProductCatalog is the capability stage 1 depends on.
type ProductCatalog interface {
	Match(ctx context.Context, description string, k int) ([]ProductMatch, error)
}

type catalogEntry struct {
	product Product
	vector  cache.Embedding
}

// MemoryCatalog is an in-memory ProductCatalog, scored by cosine
// similarity against each product's embedded name — the same
// retrieval shape as pkg/knowledge's MemoryStore, applied to products
// instead of policy chunks.
type MemoryCatalog struct {
	mu       sync.RWMutex
	entries  []catalogEntry
	embedder cache.Embedder
}

func NewMemoryCatalog(embedder cache.Embedder) *MemoryCatalog {
	return &MemoryCatalog{embedder: embedder}
}

// Load embeds and stores every product in the catalog, replacing any
// prior contents.
func (c *MemoryCatalog) Load(ctx context.Context, products []Product, embedder cache.Embedder) error {
	entries := make([]catalogEntry, 0, len(products))
	for _, p := range products {
		vec, err := embedder.Embed(ctx, p.Name)
		if err != nil {
			return err
		}
		entries = append(entries, catalogEntry{product: p, vector: vec})
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Match scores description against every catalog entry and returns the
// top-k by cosine similarity. An empty catalog returns zero matches,
// which the dispatcher treats as the abort condition in spec §4.8.
func (c *MemoryCatalog) Match(ctx context.Context, description string, k int) ([]ProductMatch, error) {
	c.mu.RLock()
	entries := c.entries
	c.mu.RUnlock()

	if len(entries) == 0 {
		return nil, nil
	}

	vec, err := c.embedderVector(ctx, description)
	if err != nil {
		return nil, err
	}

	matches := make([]ProductMatch, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, ProductMatch{Product: e.product, Score: cosineSimilarity(vec, e.vector)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// embedderVector embeds text with the embedder passed to
// NewMemoryCatalog; catalogs constructed without one can still be Loaded
// but cannot Match.
func (c *MemoryCatalog) embedderVector(ctx context.Context, text string) (cache.Embedding, error) {
	if c.embedder == nil {
		return nil, errNoEmbedder
	}
	return c.embedder.Embed(ctx, text)
}

func cosineSimilarity(a, b cache.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ ProductCatalog = (*MemoryCatalog)(nil)
