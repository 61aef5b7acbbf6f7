// Package knowledge implements the KnowledgeRetriever contract from spec
// §4.6: embed a query, search a vector store for the top-k nearest
// policy/FAQ chunks in the right language, and return them with
// relevance scores. Chunk storage here is an in-memory VectorStore
// (the pack ships no vector-database client to adapt); the retrieval
// math mirrors pkg/cache/semantic.go's cosine-similarity scoring.
package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/canadianpizza/orderbot-core/pkg/cache"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// VectorStore is the capability KnowledgeRetriever depends on. Spec
// §4.6's concurrency note requires the backing client be thread-safe via
// a cached, initialization-locked singleton — satisfied here by
// singleflight-coalesced construction (see Singleton below) rather than
// a bare constructor call per request.
type VectorStore interface {
	Query(ctx context.Context, vector cache.Embedding, language models.Language, k int) ([]models.KnowledgeChunk, error)
}

type record struct {
	chunk  models.KnowledgeChunk
	vector cache.Embedding
}

// MemoryStore is an in-memory VectorStore, holding every chunk's
// precomputed embedding and filtering by language before scoring.
type MemoryStore struct {
	mu      sync.RWMutex
	records []record
}

// NewMemoryStore builds an empty store. Load populates it.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load replaces the store's contents, embedding each chunk's content
// with embedder. Intended to run once at startup against the policy/FAQ
// corpus.
func (s *MemoryStore) Load(ctx context.Context, chunks []models.KnowledgeChunk, embedder cache.Embedder) error {
	records := make([]record, 0, len(chunks))
	for _, c := range chunks {
		vec, err := embedder.Embed(ctx, c.Content)
		if err != nil {
			return err
		}
		records = append(records, record{chunk: c, vector: vec})
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Query returns the top-k chunks in language by cosine similarity to
// vector, highest first. An empty store returns an empty, non-error
// result (spec §4.6: "Empty results are valid").
func (s *MemoryStore) Query(_ context.Context, vector cache.Embedding, language models.Language, k int) ([]models.KnowledgeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk models.KnowledgeChunk
		score float64
	}
	candidates := make([]scored, 0, len(s.records))
	for _, r := range s.records {
		if r.chunk.Language != language {
			continue
		}
		sim := cosineSimilarity(vector, r.vector)
		candidates = append(candidates, scored{chunk: r.chunk, score: models.ClampedRelevance(float64(sim))})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]models.KnowledgeChunk, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].chunk
		out[i].RelevanceScore = candidates[i].score
	}
	return out, nil
}

// cosineSimilarity mirrors pkg/cache/semantic.go's scoring function;
// duplicated locally since that one is unexported and this package has
// no other reason to depend on pkg/cache beyond the shared Embedding
// type and Embedder interface.
func cosineSimilarity(a, b cache.Embedding) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}

var (
	singletonStore *MemoryStore
	singletonGroup singleflight.Group
	singletonMu    sync.Mutex
)

// Singleton returns the process-wide MemoryStore, building and loading
// it on first call. Concurrent first-callers coalesce into a single
// load via singleflight rather than each racing to construct their own
// store — the same stampede this package's sibling, pkg/cache, solves
// for cache misses (spec §4.6/§9: the vector store client must be a
// "cached, initialization-locked singleton").
func Singleton(ctx context.Context, chunks []models.KnowledgeChunk, embedder cache.Embedder) (*MemoryStore, error) {
	singletonMu.Lock()
	if singletonStore != nil {
		defer singletonMu.Unlock()
		return singletonStore, nil
	}
	singletonMu.Unlock()

	v, err, _ := singletonGroup.Do("vector-store-init", func() (any, error) {
		singletonMu.Lock()
		defer singletonMu.Unlock()
		if singletonStore != nil {
			return singletonStore, nil
		}
		store := NewMemoryStore()
		if err := store.Load(ctx, chunks, embedder); err != nil {
			return nil, err
		}
		singletonStore = store
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MemoryStore), nil
}

// ResetSingletonForTest clears the cached singleton. Test-only.
func ResetSingletonForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singletonStore = nil
	singletonGroup = singleflight.Group{}
}

var _ VectorStore = (*MemoryStore)(nil)
